package auth

import (
	"context"

	"github.com/tagdesk/tagdesk/internal/model"
)

type contextKey struct{}

// ContextWithAuth stores the authenticated caller on ctx.
func ContextWithAuth(ctx context.Context, auth *model.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, auth)
}

// AuthFromContext returns the authenticated caller, or nil.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	auth, _ := ctx.Value(contextKey{}).(*model.AuthContext)
	return auth
}
