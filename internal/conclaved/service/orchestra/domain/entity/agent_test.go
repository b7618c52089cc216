package entity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentStatusIsTerminal(t *testing.T) {
	assert.False(t, AgentStatusPending.IsTerminal())
	assert.False(t, AgentStatusRunning.IsTerminal())
	assert.True(t, AgentStatusCompleted.IsTerminal())
	assert.True(t, AgentStatusFailed.IsTerminal())
	assert.True(t, AgentStatusShutdown.IsTerminal())
	assert.False(t, AgentStatusNotFound.IsTerminal())
}

func TestTransitionNotifiesSubscribers(t *testing.T) {
	a := NewManagedAgent("a1", "worker", "do work", 0)
	assert.Equal(t, AgentStatusPending, a.Status())

	ch, cancel := a.Subscribe()
	defer cancel()

	a.Transition(AgentStatusRunning)
	select {
	case st := <-ch:
		assert.Equal(t, AgentStatusRunning, st)
	case <-time.After(time.Second):
		t.Fatal("no status notification delivered")
	}

	// After cancel, transitions no longer reach the channel.
	cancel()
	a.Transition(AgentStatusCompleted)
	select {
	case st := <-ch:
		t.Fatalf("unexpected notification %q after cancel", st)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTakePrefaceIsOneShot(t *testing.T) {
	a := NewManagedAgent("a1", "worker", "do work", 0)
	assert.Empty(t, a.TakePreface())

	a.SetPreface("I'll start with the layout.")
	assert.Equal(t, "I'll start with the layout.", a.TakePreface())
	assert.Empty(t, a.TakePreface(), "the preface is injected at most once")
	assert.Equal(t, "I'll start with the layout.", a.Preface(), "peeking does not consume")
}

func TestMarkFirstCycleDoneReturnsTrueOnce(t *testing.T) {
	a := NewManagedAgent("a1", "worker", "do work", 0)
	assert.True(t, a.MarkFirstCycleDone())
	assert.False(t, a.MarkFirstCycleDone())
}

func TestInputQueueIsFIFO(t *testing.T) {
	a := NewManagedAgent("a1", "worker", "do work", 0)

	_, ok := a.DequeueInput()
	assert.False(t, ok)

	a.EnqueueInput("first")
	a.EnqueueInput("second")

	msg, ok := a.DequeueInput()
	require.True(t, ok)
	assert.Equal(t, "first", msg)
	msg, ok = a.DequeueInput()
	require.True(t, ok)
	assert.Equal(t, "second", msg)
	_, ok = a.DequeueInput()
	assert.False(t, ok)
}

func TestReplaceAbortIsolatesNewCycle(t *testing.T) {
	a := NewManagedAgent("a1", "worker", "do work", 0)
	stale := a.AbortContext()

	a.ReplaceAbort()
	select {
	case <-stale.Done():
	case <-time.After(time.Second):
		t.Fatal("replacing the token must cancel the old context")
	}

	fresh := a.AbortContext()
	select {
	case <-fresh.Done():
		t.Fatal("the fresh token must not be cancelled")
	default:
	}

	a.Abort()
	select {
	case <-fresh.Done():
	case <-time.After(time.Second):
		t.Fatal("abort must cancel the current context")
	}
}

func TestTakeInterruptConsumesReplacementMarker(t *testing.T) {
	a := NewManagedAgent("a1", "worker", "do work", 0)
	assert.False(t, a.TakeInterrupt(), "a fresh agent has no pending interrupt")

	a.ReplaceAbort()
	assert.True(t, a.TakeInterrupt(), "replacing the token marks the cycle as interrupted")
	assert.False(t, a.TakeInterrupt(), "the marker is one-shot")
}

func TestHasInputTracksQueue(t *testing.T) {
	a := NewManagedAgent("a1", "worker", "do work", 0)
	assert.False(t, a.HasInput())

	a.EnqueueInput("follow up")
	assert.True(t, a.HasInput())

	_, ok := a.DequeueInput()
	require.True(t, ok)
	assert.False(t, a.HasInput())
}

func TestExecGateSerializesCycles(t *testing.T) {
	a := NewManagedAgent("a1", "worker", "do work", 0)

	require.NoError(t, a.AcquireExec(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.AcquireExec(ctx), context.DeadlineExceeded)

	a.ReleaseExec()
	require.NoError(t, a.AcquireExec(context.Background()))
	a.ReleaseExec()
}
