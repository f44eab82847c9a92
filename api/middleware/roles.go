package middleware

import (
	"net/http"

	"github.com/norberto-e-888/pos-app/api/responses"
	"github.com/norberto-e-888/pos-app/pkg/auth"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

// RequireRoles admits callers holding at least one of roles. It must run after Auth.
func RequireRoles(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	required := append([]enums.Role(nil), roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !auth.Allowed(required, principal) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
