package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Roles  []enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID    `json:"id"`
	Roles  []enums.Role `json:"roles"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller as seen by handlers and services.
type Principal struct {
	ID    uuid.UUID
	Roles []enums.Role
}

// Principal converts validated claims into a Principal.
func (c *AccessTokenClaims) Principal() Principal {
	roles := make([]enums.Role, len(c.Roles))
	copy(roles, c.Roles)
	return Principal{ID: c.UserID, Roles: roles}
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role enums.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(enums.RoleAdmin).
func (p Principal) IsAdmin() bool {
	return p.HasRole(enums.RoleAdmin)
}

// Allowed reports whether any of the principal's roles is in required. An empty
// required list admits nobody; public routes do not go through the guard.
func Allowed(required []enums.Role, principal Principal) bool {
	for _, want := range required {
		if principal.HasRole(want) {
			return true
		}
	}
	return false
}
