package reqid_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendalabs/tienda/pkg/reqid"
	"github.com/tiendalabs/tienda/pkg/router"
)

func TestMiddlewareGeneratesAndPropagates(t *testing.T) {
	var seen string
	h := reqid.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqid.FromCtx(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, seen, 32)
	assert.Equal(t, seen, rec.Header().Get(reqid.Header))
}

func TestMiddlewareReusesUpstreamID(t *testing.T) {
	var seen string
	h := reqid.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqid.FromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(reqid.Header, "proxy-id-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "proxy-id-42", seen)
	assert.Equal(t, "proxy-id-42", rec.Header().Get(reqid.Header))
}

// Middleware() returns the handler wrapper the router consumes; mounting it
// globally must tag every routed response.
func TestMiddlewareMountsOnRouter(t *testing.T) {
	r := router.New()
	r.Use(reqid.Middleware())
	r.Get("/ping", "ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(reqid.Header))
}
