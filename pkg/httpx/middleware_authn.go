package httpx

import (
	"net/http"
	"strings"

	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/jwtx"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/slogx"
)

// AuthnMiddleware requires a valid bearer access token. Refresh tokens are
// rejected even though they share the signing key.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			scheme, raw, ok := strings.Cut(authz, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(strings.TrimSpace(raw))
			if err != nil {
				log.Debug("jwt verify failed", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			if err := claims.ValidateType(jwtx.TokenTypeAccess); err != nil {
				log.Warn("non-access token presented as bearer", "sub", claims.Subject, "typ", claims.Type)
				writeBearerError(w, "not an access token")
				return
			}

			ctx = WithIdentity(ctx, Identity{
				ID:    claims.Subject,
				Role:  claims.Role,
				Email: claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized)
}
