package entity

import (
	"context"
	"sync"
)

// AbortController manages cooperative cancellation for one agent.
//
// It wraps context.WithCancel:
//   - Explicit Abort() for external cancellation
//   - Thread-safe abort state tracking
//
// Interrupting an agent replaces its controller entirely so a stale
// cancellation can never leak into a later execution cycle.
type AbortController struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	down   bool
}

// NewAbortController creates a new AbortController derived from parent.
func NewAbortController(parent context.Context) *AbortController {
	ctx, cancel := context.WithCancel(parent)
	return &AbortController{ctx: ctx, cancel: cancel}
}

// Context returns the controlled context.
// Use this context for all downstream operations of the current cycle.
func (ac *AbortController) Context() context.Context {
	return ac.ctx
}

// Abort cancels the agent's current work.
// It is safe to call Abort multiple times.
func (ac *AbortController) Abort() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.down {
		return
	}
	ac.down = true
	ac.cancel()
}

// IsAborted returns true if the controller has been cancelled.
func (ac *AbortController) IsAborted() bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.down {
		return true
	}
	select {
	case <-ac.ctx.Done():
		return true
	default:
		return false
	}
}
