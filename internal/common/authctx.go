package common

import "context"

type ctxKey string

const (
	userIDKey   ctxKey = "auth/user-id"
	userNameKey ctxKey = "auth/user-name"
	userRoleKey ctxKey = "auth/user-role"
)

// WithUser stores the authenticated user's identity on the context. The
// display name is carried so payment records can snapshot the collector's
// name at write time.
func WithUser(ctx context.Context, id, name, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id)
	ctx = context.WithValue(ctx, userNameKey, name)
	return context.WithValue(ctx, userRoleKey, role)
}

// UserID extracts the authenticated user identifier from the context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// UserName extracts the authenticated user's display name from the context.
func UserName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(userNameKey).(string)
	return name, ok && name != ""
}

// UserRole extracts the authenticated user's role from the context.
func UserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(userRoleKey).(string)
	return role, ok && role != ""
}
