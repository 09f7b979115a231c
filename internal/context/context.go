// Package context defines typed context keys shared between middleware and
// handlers, so that packages do not depend on each other for key definitions.
package context

import "context"

type contextKey string

const (
	// AccountIDKey is the context key for the authenticated account ID
	AccountIDKey contextKey = "account_id"
	// UsernameKey is the context key for the authenticated username
	UsernameKey contextKey = "username"
	// IsAdminKey is the context key for the authenticated admin flag
	IsAdminKey contextKey = "is_admin"
)

// WithAccount returns a context carrying the authenticated account identity.
func WithAccount(ctx context.Context, accountID, username string, isAdmin bool) context.Context {
	ctx = context.WithValue(ctx, AccountIDKey, accountID)
	ctx = context.WithValue(ctx, UsernameKey, username)
	return context.WithValue(ctx, IsAdminKey, isAdmin)
}

// ExtractAccountID extracts the authenticated account ID from the context.
func ExtractAccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountIDKey).(string)
	return id, ok
}

// ExtractUsername extracts the authenticated username from the context.
func ExtractUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// ExtractIsAdmin extracts the authenticated admin flag from the context.
func ExtractIsAdmin(ctx context.Context) bool {
	isAdmin, _ := ctx.Value(IsAdminKey).(bool)
	return isAdmin
}
