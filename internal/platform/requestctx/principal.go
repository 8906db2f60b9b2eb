// Package requestctx carries per-request identity through context.
package requestctx

import "context"

// AuthMode records how a request's caller was admitted.
type AuthMode string

const (
	// AuthModeToken means a bearer token was verified.
	AuthModeToken AuthMode = "token"
	// AuthModeBypass means verification was skipped by a development bypass.
	AuthModeBypass AuthMode = "bypass"
)

// Principal identifies the caller of one request.
type Principal struct {
	Subject string
	Mode    AuthMode
}

type principalContextKey struct{}

type requestIDContextKey struct{}

// WithPrincipal stores the authenticated caller in context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the caller stored in context, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	value, ok := ctx.Value(principalContextKey{}).(Principal)
	return value, ok
}

// WithRequestID stores a request correlation identifier in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request identifier stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
