package logging

import (
	"context"

	"github.com/google/uuid"
)

type debugKey struct{}

// EnableDebugMode returns a context under which CDebugw logs regardless of level. The key tags
// the request; an empty key gets a random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = uuid.NewString()[:8]
	}
	return context.WithValue(ctx, debugKey{}, key)
}

// IsDebugMode returns whether the context has debug logging enabled.
func IsDebugMode(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	key, _ := ctx.Value(debugKey{}).(string)
	return key != ""
}
