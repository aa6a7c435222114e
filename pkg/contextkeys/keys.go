// Package contextkeys holds the request-scoped values shared by the
// middleware, handlers and the logger. Keeping them here lets those
// packages agree on key identity without importing each other.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserKey holds the *auth.User placed by middleware.WithUser
	UserKey Key = "user"
	// PrincipalKey holds the Principal derived from that user, for logging
	PrincipalKey Key = "principal"
	// RequestIDKey holds the id assigned by httputil.RequestIDMiddleware
	RequestIDKey Key = "request_id"
	// LoggerKey holds the *observability.Logger of the request
	LoggerKey Key = "logger"
)

// Principal identifies the signed-in operator in log entries
type Principal struct {
	UserID     string
	AccessRole string
}

// WithUser stores the authenticated user. The value is untyped so this
// package does not depend on auth.
func WithUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// WithPrincipal stores p for the logger
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// PrincipalFrom returns the stored principal, if any
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok
}

// WithRequestID stores the request id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID returns the request id or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithLogger stores the request logger
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}
