// Package middleware holds the HTTP middleware chain shared by all routes.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// ctxKey is a private context key type so values set here cannot collide
// with other packages.
type ctxKey int

const principalKey ctxKey = iota

// Auth returns middleware that validates API requests using either a Bearer
// token in the Authorization header or a static key in the X-API-Key header,
// then attaches the verified principal forwarded by the authentication
// gateway (X-User-ID, X-User-Email, X-User-Role headers) to the request
// context. If apiKey is empty, the key check is skipped but the principal is
// still extracted. Paths listed in skip bypass the key check entirely.
func Auth(apiKey string, skip ...string) func(http.Handler) http.Handler {
	skipSet := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipSet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey != "" && !skipSet[r.URL.Path] {
				token := extractToken(r)
				if token == "" {
					writeUnauthorized(w, "missing authentication token")
					return
				}

				// Constant-time comparison to prevent timing attacks.
				if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
					writeUnauthorized(w, "invalid authentication token")
					return
				}
			}

			if p, ok := principalFromHeaders(r); ok {
				r = r.WithContext(context.WithValue(r.Context(), principalKey, p))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Principal returns the verified principal attached to the request context.
func Principal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// principalFromHeaders builds a Principal from the identity headers set by
// the upstream gateway. The role defaults to user when absent or unknown.
func principalFromHeaders(r *http.Request) (domain.Principal, bool) {
	id := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if id == "" {
		return domain.Principal{}, false
	}

	role := domain.RoleUser
	if strings.EqualFold(strings.TrimSpace(r.Header.Get("X-User-Role")), string(domain.RoleAdmin)) {
		role = domain.RoleAdmin
	}

	return domain.Principal{
		ID:    id,
		Email: strings.TrimSpace(r.Header.Get("X-User-Email")),
		Role:  role,
	}, true
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	// Check Authorization: Bearer <token>
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Check X-API-Key header.
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}

	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
