// Package usercontext carries the acting user identity through request
// scopes. A single fixed user is assumed; the context plumbing keeps the
// services free of global state.
package usercontext

import "context"

type contextKey struct{}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}
