package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bifrost-graphql/internal/usercontext"

	"github.com/stretchr/testify/assert"
)

func TestUserContextMiddleware_ParsesJSONHeader(t *testing.T) {
	var captured usercontext.Map
	handler := UserContextMiddleware("X-User-Context")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = usercontext.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("X-User-Context", `{"tenant_id": 42, "id": "u-7", "roles": ["admin", "editor"]}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.NotNil(t, captured)
	assert.Equal(t, float64(42), captured["tenant_id"])
	assert.Equal(t, "u-7", captured["id"])
	assert.True(t, captured.HasRole("admin"))
	assert.True(t, captured.HasRole("Editor"))
	assert.False(t, captured.HasRole("viewer"))
}

func TestUserContextMiddleware_MissingHeader(t *testing.T) {
	var captured usercontext.Map
	handler := UserContextMiddleware("X-User-Context")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = usercontext.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, captured)
}

func TestUserContextMiddleware_MalformedHeaderDropped(t *testing.T) {
	var captured usercontext.Map
	handler := UserContextMiddleware("X-User-Context")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = usercontext.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("X-User-Context", `{"tenant_id": `)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// Request proceeds; tenant-scoped tables will deny on their own.
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, captured)
}

func TestUserContextMiddleware_DisabledByEmptyName(t *testing.T) {
	var captured usercontext.Map
	handler := UserContextMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = usercontext.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("X-User-Context", `{"tenant_id": 42}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, captured)
}

func TestUserContextMiddleware_CustomHeaderName(t *testing.T) {
	var captured usercontext.Map
	handler := UserContextMiddleware("X-Gateway-Claims")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = usercontext.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("X-Gateway-Claims", `{"tenant_id": "acme"}`)
	req.Header.Set("X-User-Context", `{"tenant_id": "other"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.NotNil(t, captured)
	assert.Equal(t, "acme", captured["tenant_id"])
}
