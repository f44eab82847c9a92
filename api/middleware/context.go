package middleware

import (
	"context"

	"github.com/norberto-e-888/pos-app/pkg/auth"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// WithPrincipal stores the authenticated caller on the context.
func WithPrincipal(ctx context.Context, principal auth.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, principal)
}

// PrincipalFromContext returns the caller set by Auth.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	if ctx == nil {
		return auth.Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(auth.Principal)
	return p, ok
}
