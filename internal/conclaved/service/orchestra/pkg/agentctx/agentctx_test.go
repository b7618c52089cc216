package agentctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, SessionID(ctx))

	ctx = WithSessionID(ctx, "sess-1")
	assert.Equal(t, "sess-1", SessionID(ctx))
}

func TestPushAndDepth(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 0, Depth(ctx))
	assert.Nil(t, Stack(ctx))

	ctx = Push(ctx, "root")
	ctx = Push(ctx, "child")
	ctx = Push(ctx, "grandchild")

	assert.Equal(t, 3, Depth(ctx))
	assert.Equal(t, []string{"root", "child", "grandchild"}, Stack(ctx))
}

func TestPushDoesNotMutateParent(t *testing.T) {
	parent := Push(context.Background(), "root")

	// Two siblings branching from the same parent must not see each
	// other through the shared backing array.
	left := Push(parent, "left")
	right := Push(parent, "right")

	assert.Equal(t, []string{"root"}, Stack(parent))
	assert.Equal(t, []string{"root", "left"}, Stack(left))
	assert.Equal(t, []string{"root", "right"}, Stack(right))
}
