package shared

import (
	"context"
	"strings"
)

// CallerHeader names the request header carrying the opaque caller id.
// The gateway in front of this service authenticates callers; the id is
// recorded for audit fields only.
const CallerHeader = "X-User-ID"

type callerContextKey struct{}

// ContextWithCaller stores the caller id in context.
func ContextWithCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, strings.TrimSpace(id))
}

// CallerFromContext extracts the caller id from context.
func CallerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(callerContextKey{}).(string)
	return id
}
