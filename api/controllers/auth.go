package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/norberto-e-888/pos-app/api/responses"
	"github.com/norberto-e-888/pos-app/api/validators"
	"github.com/norberto-e-888/pos-app/internal/users"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
	"github.com/norberto-e-888/pos-app/pkg/logger"
)

// SignUpService registers users and mints their tokens.
type SignUpService interface {
	SignUp(ctx context.Context, email string, role enums.Role) (*users.SignUpResult, error)
}

type signUpRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,role"`
}

// AuthSignUp creates a user and returns a bearer token. Mounted outside
// production only.
func AuthSignUp(svc SignUpService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var payload signUpRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SignUp(r.Context(), strings.TrimSpace(payload.Email), enums.Role(payload.Role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
