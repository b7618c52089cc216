// Package safego launches goroutines that cannot take the process down.
package safego

import (
	"context"
	"runtime/debug"

	"github.com/mellis-dev/conclave/pkg/logger"
)

// Go runs fn in a new goroutine, recovering and logging any panic.
// The context is accepted so call sites document what scopes the work,
// even though cancellation is the callee's responsibility.
func Go(_ context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[safego] recovered panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
