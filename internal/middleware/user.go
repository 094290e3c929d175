package middleware

import (
	"context"

	"github.com/Strob0t/taskpad/internal/domain/user"
	"github.com/Strob0t/taskpad/internal/logger"
)

type authUserCtxKey struct{}

// WithUser returns a copy of ctx carrying u as the authenticated user.
// Records logged with the returned ctx carry u's ID.
func WithUser(ctx context.Context, u *user.User) context.Context {
	ctx = logger.WithUserID(ctx, u.ID)
	return context.WithValue(ctx, authUserCtxKey{}, u)
}

// UserFromContext returns the authenticated user from the request context, or nil.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}

// UserIDFromContext returns the ID of the user in ctx, or user.LocalUserID if absent.
func UserIDFromContext(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil && u.ID != "" {
		return u.ID
	}
	return user.LocalUserID
}
