package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldsphere/goldsphere/internal/domain"
)

func authProbe(t *testing.T) (http.Handler, *domain.Principal) {
	t.Helper()
	var captured domain.Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := Principal(r.Context()); ok {
			captured = p
		}
		w.WriteHeader(http.StatusOK)
	})
	return inner, &captured
}

func TestAuth_APIKey(t *testing.T) {
	inner, _ := authProbe(t)
	h := Auth("secret")(inner)

	// Missing key.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("X-API-Key", "wrong")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// X-API-Key header.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("X-API-Key", "secret")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Bearer token.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_SkipPaths(t *testing.T) {
	inner, _ := authProbe(t)
	h := Auth("secret", "/api/health", "/metrics")(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_PrincipalFromHeaders(t *testing.T) {
	inner, captured := authProbe(t)
	h := Auth("")(inner)

	req := httptest.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Email", "u1@example.com")
	req.Header.Set("X-User-Role", "admin")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "u1", captured.ID)
	assert.Equal(t, "u1@example.com", captured.Email)
	assert.Equal(t, domain.RoleAdmin, captured.Role)
}

func TestAuth_UnknownRoleDefaultsToUser(t *testing.T) {
	inner, captured := authProbe(t)
	h := Auth("")(inner)

	req := httptest.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Role", "superuser")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RoleUser, captured.Role)
}
