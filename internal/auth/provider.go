package auth

import (
	"context"
	"errors"
)

// ErrNoProvider is the panic value raised when the auth context is read
// outside the scope that established it. It signals a wiring defect.
var ErrNoProvider = errors.New("auth: context used outside of its provider")

type contextKey struct{}

// WithContext stores the Auth Context in ctx.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the Auth Context established for ctx. It panics with
// ErrNoProvider when none was established.
func FromContext(ctx context.Context) *Context {
	ac, ok := ctx.Value(contextKey{}).(*Context)
	if !ok || ac == nil {
		panic(ErrNoProvider)
	}
	return ac
}
