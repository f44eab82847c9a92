package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/enums"
)

// Tokens are HS256 only. Anything else is rejected before the key is consulted.
var signingMethod = jwt.SigningMethodHS256

const clockLeeway = 30 * time.Second

var (
	errNoSecret  = errors.New("jwt secret is required")
	errNoSubject = errors.New("token has no user id")
	errNoRoles   = errors.New("at least one role is required")
)

// MintAccessToken signs a token for payload that expires after cfg.ExpirationMinutes.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errNoSecret
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case payload.UserID == uuid.Nil:
		return "", errNoSubject
	}
	roles, err := checkRoles(payload.Roles)
	if err != nil {
		return "", err
	}

	id := payload.JTI
	if id == "" {
		id = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        id,
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then checks that the
// token names a user and only carries known roles.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, errNoSubject
	}
	roles, err := checkRoles(claims.Roles)
	if err != nil {
		return nil, err
	}
	claims.Roles = roles
	return claims, nil
}

// checkRoles rejects unknown roles and drops repeats, keeping first-seen order.
func checkRoles(in []enums.Role) ([]enums.Role, error) {
	if len(in) == 0 {
		return nil, errNoRoles
	}
	out := make([]enums.Role, 0, len(in))
	seen := make(map[enums.Role]bool, len(in))
	for _, role := range in {
		if !role.IsValid() {
			return nil, fmt.Errorf("invalid role %q", role)
		}
		if !seen[role] {
			seen[role] = true
			out = append(out, role)
		}
	}
	return out, nil
}
