package auth

import (
	"context"

	"github.com/gatehouse/gatehouse/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// sessionContextKey is the context key for the per-connection session.
	sessionContextKey contextKey = "session"
)

// ContextWithSession adds the connection's session to the context.
func ContextWithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext retrieves the session from the context.
// Returns nil if not present.
func SessionFromContext(ctx context.Context) *session.Session {
	s, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return s
}

// MustSessionFromContext retrieves the session from the context.
// Panics if not present (use only when the session middleware has run).
func MustSessionFromContext(ctx context.Context) *session.Session {
	s := SessionFromContext(ctx)
	if s == nil {
		panic("session not found - ensure session middleware is applied")
	}
	return s
}

// IdentityFromContext is a convenience function to get the authenticated
// identity. Returns empty string if the session is anonymous.
func IdentityFromContext(ctx context.Context) string {
	s := SessionFromContext(ctx)
	if s == nil {
		return ""
	}
	id, _ := s.Identity()
	return id
}
