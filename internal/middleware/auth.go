package middleware

import (
	"context"
	"net/http"

	"github.com/knowreal/knowreal-backend/internal/services"
)

// LoginPath is where unauthenticated browser clients are sent.
const LoginPath = "/auth/login"

type identityKey struct{}

// RequireIdentity resolves the caller once per request. Requests without a
// valid session get 401 and never reach the wrapped handler.
func RequireIdentity(provider services.IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := provider.CurrentUser(r.Context(), r)
			if err != nil || identity.IsZero() {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"success":  false,
					"message":  "Authentication required",
					"redirect": LoginPath,
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity services.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the identity set by RequireIdentity, or the zero Identity.
func IdentityFrom(ctx context.Context) services.Identity {
	identity, _ := ctx.Value(identityKey{}).(services.Identity)
	return identity
}
