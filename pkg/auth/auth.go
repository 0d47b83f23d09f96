// Package auth guards the HTTP endpoint of the ND tools server with API
// keys. A client presents its key as a bearer token or in the X-API-Key
// header; the middleware resolves it to a Principal before the MCP handler
// sees the request.
package auth

import (
	"context"
	"errors"
)

// Headers that carry a credential
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-API-Key"
	bearerScheme        = "Bearer"
)

var (
	// ErrMissingCredential is returned when a request presents no key
	ErrMissingCredential = errors.New("authentication required")
	// ErrInvalidCredential is returned for a key no authenticator accepts
	ErrInvalidCredential = errors.New("invalid credential")
)

// Principal is the identity a credential resolved to
type Principal struct {
	ID string
}

// Authenticator resolves a credential to a principal
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator
type AuthenticatorFunc func(ctx context.Context, credential string) (*Principal, error)

// Authenticate implements Authenticator
func (f AuthenticatorFunc) Authenticate(ctx context.Context, credential string) (*Principal, error) {
	return f(ctx, credential)
}

type principalKey struct{}

// WithPrincipal returns a context carrying p
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal the middleware attached
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// BearerHeaders returns the request headers that present key
func BearerHeaders(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{HeaderAuthorization: bearerScheme + " " + key}
}
