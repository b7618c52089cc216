// Package agentctx threads ambient per-request data (session id and the
// spawn nesting stack) through the async call chain on context.Context,
// so nested spawns can be depth-accounted without explicit parameters.
package agentctx

import "context"

type ctxKey int

const (
	keySessionID ctxKey = iota
	keyStack
)

// WithSessionID binds the owning session id to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, keySessionID, sessionID)
}

// SessionID returns the bound session id, or "" when none is set.
func SessionID(ctx context.Context) string {
	if v, ok := ctx.Value(keySessionID).(string); ok {
		return v
	}
	return ""
}

// Push appends an agent id to the nesting stack. Each executing agent pushes
// itself before running a cycle; a spawn issued from inside that cycle sees
// the ancestor chain and is rejected when it is already MaxDepth deep.
func Push(ctx context.Context, agentID string) context.Context {
	stack := Stack(ctx)
	next := make([]string, len(stack), len(stack)+1)
	copy(next, stack)
	return context.WithValue(ctx, keyStack, append(next, agentID))
}

// Stack returns the current nesting stack, outermost first.
func Stack(ctx context.Context) []string {
	if v, ok := ctx.Value(keyStack).([]string); ok {
		return v
	}
	return nil
}

// Depth returns the number of agents currently on the nesting stack.
func Depth(ctx context.Context) int {
	return len(Stack(ctx))
}
