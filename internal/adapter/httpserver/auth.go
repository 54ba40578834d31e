package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

type identityKey struct{}

// IdentityFrom returns the authenticated identity attached by RequireAuth.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}

// ContextWithIdentity attaches an identity, test support for handlers.
func ContextWithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// RequireAuth verifies the bearer token and attaches the resulting identity
// to the request context. Missing or invalid tokens end the request with 401.
func RequireAuth(verifier domain.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, r, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized), nil)
				return
			}
			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// RequirePermission gates a route on one permission. It runs inside
// RequireAuth.
func RequirePermission(p domain.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, r, domain.ErrUnauthorized, nil)
				return
			}
			if !identity.HasPermission(p) {
				writeError(w, r, fmt.Errorf("%w: requires %s", domain.ErrForbidden, p), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
