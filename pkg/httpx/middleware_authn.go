package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

// Authenticator decides whether a bearer token may be used right now. It is
// expected to cover signature, lifetime and revocation.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwtx.Claims, error)
}

// AuthnMiddleware rejects requests without a usable bearer token and puts
// the claims on the request context. Clients only learn that the token was
// rejected, never why.
func AuthnMiddleware(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := a.Authenticate(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Info("bearer token rejected", "err", err)
				writeBearerError(w, "token is not valid")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(ctx, claims, raw)))
		})
	}
}

// RequireAnyRole lets the request through when the caller holds at least
// one of roles. It must run after AuthnMiddleware.
func RequireAnyRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, ok := ClaimsFromContext(r.Context()); ok {
				for _, role := range roles {
					if c.HasRole(role) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
			WriteJSON(w, http.StatusForbidden, map[string]string{
				"error":             "insufficient_role",
				"error_description": "caller lacks a required role",
			})
		})
	}
}

// RFC 6750 error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
