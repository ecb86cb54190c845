// Package graphql bridges graphql-go schema construction for the read-only
// catalog query endpoint.
package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/tiendalabs/tienda/pkg/response"
)

// NewSchema creates a GraphQL schema from a root query object.
func NewSchema(query *graphql.Object) (graphql.Schema, error) {
	return graphql.NewSchema(graphql.SchemaConfig{
		Query: query,
	})
}

// request is the standard GraphQL HTTP POST body.
type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
	Operation string                 `json:"operationName"`
}

// Handler returns an http.HandlerFunc that executes queries against schema.
// Mount it on POST /graphql.
func Handler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "invalid GraphQL request body")
			return
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.Operation,
			Context:        r.Context(),
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result) //nolint:errcheck
	}
}
