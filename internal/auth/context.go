package auth

import (
	"context"
	"slices"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      string
	DisplayName string
	Email       string
	Roles       []string
	// AccessToken is the caller's bearer token, forwarded to the CRM backend
	AccessToken string
}

type contextKey string

const (
	userContextKey contextKey = "userContext"
	observerKey    contextKey = "userObserver"
)

// WithUserContext adds user context to the context and reports it to an
// observer registered further up the chain
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	if observe, ok := ctx.Value(observerKey).(func(*UserContext)); ok {
		observe(user)
	}
	return context.WithValue(ctx, userContextKey, user)
}

// WithObserver lets outer middleware learn who the request was authenticated as
func WithObserver(ctx context.Context, observe func(*UserContext)) context.Context {
	return context.WithValue(ctx, observerKey, observe)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}
