package ctx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendalabs/tienda/pkg/apperr"
)

func newTestContext(method, target, body string) (*Context, *httptest.ResponseRecorder) {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	return acquire(w, r), w
}

func TestQueryHelpers(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/products?limit=5&sort=asc&page=abc", "")

	assert.Equal(t, "5", c.Query("limit"))
	assert.Equal(t, "asc", c.DefaultQuery("sort", "desc"))
	assert.Equal(t, "desc", c.DefaultQuery("missing", "desc"))
	assert.Equal(t, 5, c.QueryInt("limit", 10))
	assert.Equal(t, 1, c.QueryInt("page", 1), "non-numeric falls back to default")
	assert.True(t, c.HasQuery("limit"))
	assert.False(t, c.HasQuery("query"))
}

func TestHasQueryDistinguishesExplicitZero(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/products?limit=0", "")
	assert.True(t, c.HasQuery("limit"))
	assert.Equal(t, 0, c.QueryInt("limit", 10))
}

func TestBindJSONValid(t *testing.T) {
	type loginReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	c, w := newTestContext(http.MethodPost, "/login", `{"email":"ana@example.com","password":"secret"}`)

	var req loginReq
	require.True(t, c.BindJSON(&req))
	assert.Equal(t, "ana@example.com", req.Email)
	assert.Equal(t, http.StatusOK, w.Code, "no response written on success")
}

func TestBindJSONValidationFailure(t *testing.T) {
	type loginReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	c, w := newTestContext(http.MethodPost, "/login", `{"email":"not-an-email"}`)

	var req loginReq
	assert.False(t, c.BindJSON(&req))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "email")
}

func TestBindJSONMalformedBody(t *testing.T) {
	c, w := newTestContext(http.MethodPost, "/login", `{"email":`)

	var req struct{}
	assert.False(t, c.BindJSON(&req))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuccessEnvelope(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/", "")
	c.Success(map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":200,"data":{"hello":"world"}}`, w.Body.String())
}

func TestFailMapsErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperr.E(apperr.NotFound, "cart not found"), http.StatusNotFound},
		{"invalid id", apperr.E(apperr.InvalidID, "bad id"), http.StatusBadRequest},
		{"forbidden", apperr.E(apperr.Forbidden, "premium role required"), http.StatusForbidden},
		{"conflict", apperr.E(apperr.Conflict, "email already registered"), http.StatusConflict},
		{"unknown", assertAnError(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(http.MethodGet, "/", "")
			c.Fail(tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestFailHidesInternalDetail(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/", "")
	c.Fail(apperr.Wrap(apperr.Internal, "mongo write failed", assertAnError()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "mongo")
	assert.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestClientIP(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/", "")
	c.R.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", c.ClientIP())
}

func TestStoreIsPerRequest(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/", "")
	c.Set("k", "v")
	assert.Equal(t, "v", c.GetString("k"))

	release(c)
	c2, _ := newTestContext(http.MethodGet, "/", "")
	_, ok := c2.Get("k")
	assert.False(t, ok, "recycled context must not leak values")
}

func assertAnError() error { return errTest }

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "boom" }
