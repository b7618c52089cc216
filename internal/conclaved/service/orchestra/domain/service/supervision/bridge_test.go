package supervision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
)

func resolveWhenPending(t *testing.T, r *BridgeRegistry, callID string, approved bool, reason string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Error("approval request never registered")
			return
		default:
		}
		if r.PendingCount() > 0 {
			require.NoError(t, r.Resolve(callID, approved, reason))
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBridgeRequestResolved(t *testing.T) {
	r := NewBridgeRegistry()

	go resolveWhenPending(t, r, "call-1", true, "looks safe")

	ack, err := r.Request(context.Background(), "call-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, AckSuccess, ack.Status)
	assert.True(t, ack.Approved)
	assert.Equal(t, "looks safe", ack.Reason)
	assert.Equal(t, 0, r.PendingCount())
}

func TestBridgeRequestTimesOut(t *testing.T) {
	r := NewBridgeRegistry()

	ack, err := r.Request(context.Background(), "call-2", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, AckTimeout, ack.Status)

	// the timed-out call is unregistered, a late resolve is rejected
	assert.ErrorIs(t, r.Resolve("call-2", true, ""), errno.ErrDuplicateApproval)
}

func TestBridgeResolveUnknownCall(t *testing.T) {
	r := NewBridgeRegistry()
	assert.ErrorIs(t, r.Resolve("never-registered", true, ""), errno.ErrDuplicateApproval)
}

func TestBridgeRequestCancelled(t *testing.T) {
	r := NewBridgeRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Request(ctx, "call-3", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
