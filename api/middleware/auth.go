package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/api/responses"
	pkgAuth "github.com/norberto-e-888/pos-app/pkg/auth"
	"github.com/norberto-e-888/pos-app/pkg/config"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the principal.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.UserID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject"))
				return
			}

			principal := claims.Principal()
			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				roles := make([]string, 0, len(principal.Roles))
				for _, role := range principal.Roles {
					roles = append(roles, string(role))
				}
				ctx = logg.WithUserID(ctx, principal.ID.String())
				ctx = logg.WithField(ctx, "actor_roles", roles)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
