// Package auth provides request identity context helpers.
//
// The service sits behind an API gateway that authenticates callers and
// forwards the caller's id in a trusted header. This package is imported by
// both middleware and handler packages without causing import cycles.
package auth

import (
	"context"
	"net/http"
)

// UserIDHeader is the gateway-injected header carrying the caller's id.
const UserIDHeader = "X-User-ID"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// userIDContextKey is the key used to store the caller's id in context.
	userIDContextKey contextKey = "user_id"
)

// UserID retrieves the caller's id from the context.
//
// Returns the empty string if no identity was established.
//
// Usage:
//
//	userID := auth.UserID(r.Context())
//	if userID == "" {
//	    // Handle unauthenticated request
//	}
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}

// UserIDFromRequest retrieves the caller's id from the request context,
// falling back to the identity header when middleware has not run.
func UserIDFromRequest(r *http.Request) string {
	if id := UserID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get(UserIDHeader)
}

// WithUserID stores a caller id in the context.
//
// This is typically called by identity middleware after reading the
// gateway header.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDContextKey, id)
}
