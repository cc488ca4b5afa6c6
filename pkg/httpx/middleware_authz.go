package httpx

import (
	"net/http"

	"github.com/hashicorp/go-set/v3"
)

// RequireRole lets the request through only when the caller's role is one of
// roles. It must run after AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	allowed := set.From(roles)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				WriteError(w, http.StatusUnauthorized, CodeUnauthorized)
				return
			}

			if !allowed.Contains(id.Role) {
				WriteError(w, http.StatusForbidden, CodeForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
