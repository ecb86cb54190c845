package controllers

import (
	"net/http"

	gql "github.com/graphql-go/graphql"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/services"
	gqlhttp "github.com/tiendalabs/tienda/pkg/graphql"
)

// productType is the GraphQL shape of a catalog entry.
var productType = gql.NewObject(gql.ObjectConfig{
	Name: "Product",
	Fields: gql.Fields{
		"id": &gql.Field{
			Type: gql.String,
			Resolve: func(p gql.ResolveParams) (interface{}, error) {
				return p.Source.(models.Product).ID.Hex(), nil
			},
		},
		"title":       &gql.Field{Type: gql.String},
		"description": &gql.Field{Type: gql.String},
		"code":        &gql.Field{Type: gql.String},
		"price":       &gql.Field{Type: gql.Float},
		"stock":       &gql.Field{Type: gql.Int},
		"category":    &gql.Field{Type: gql.String},
		"status":      &gql.Field{Type: gql.Boolean},
		"owner":       &gql.Field{Type: gql.String},
	},
})

var listingType = gql.NewObject(gql.ObjectConfig{
	Name: "ProductListing",
	Fields: gql.Fields{
		"products":    &gql.Field{Type: gql.NewList(productType)},
		"total":       &gql.Field{Type: gql.Int},
		"page":        &gql.Field{Type: gql.Int},
		"totalPages":  &gql.Field{Type: gql.Int},
		"hasPrevPage": &gql.Field{Type: gql.Boolean},
		"hasNextPage": &gql.Field{Type: gql.Boolean},
	},
})

// NewGraphQLHandler builds the catalog read model endpoint. The products
// query takes the same {limit, page, sort, query} arguments as the REST
// listing and resolves through the same service.
func NewGraphQLHandler(products *services.ProductService) (http.HandlerFunc, error) {
	query := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"products": &gql.Field{
				Type: listingType,
				Args: gql.FieldConfigArgument{
					"limit": &gql.ArgumentConfig{Type: gql.Int},
					"page":  &gql.ArgumentConfig{Type: gql.Int, DefaultValue: 1},
					"sort":  &gql.ArgumentConfig{Type: gql.String, DefaultValue: ""},
					"query": &gql.ArgumentConfig{Type: gql.String, DefaultValue: ""},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					q := services.ListQuery{
						Page:  p.Args["page"].(int),
						Sort:  p.Args["sort"].(string),
						Query: p.Args["query"].(string),
					}
					if limit, ok := p.Args["limit"].(int); ok {
						q.Limit = limit
						q.LimitSet = true
					}
					return products.List(p.Context, q)
				},
			},
			"product": &gql.Field{
				Type: productType,
				Args: gql.FieldConfigArgument{
					"id": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					product, err := products.Get(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return *product, nil
				},
			},
		},
	})

	schema, err := gqlhttp.NewSchema(query)
	if err != nil {
		return nil, err
	}
	return gqlhttp.Handler(schema), nil
}
