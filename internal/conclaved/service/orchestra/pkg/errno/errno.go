package errno

import (
	"errors"
)

var (
	// ErrAgentNotFound is returned when an agent is neither resident in
	// memory nor recoverable from the history log.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrMaxDepthExceeded rejects a spawn whose nesting depth would exceed
	// the configured limit. Checked at spawn time only.
	ErrMaxDepthExceeded = errors.New("max spawn depth exceeded")

	// ErrConcurrencyLimit rejects a spawn when the manager is already
	// running the maximum number of concurrent agents.
	ErrConcurrencyLimit = errors.New("max concurrent agents reached")

	// ErrAborted indicates the agent's cancellation token fired mid-cycle.
	ErrAborted = errors.New("agent aborted")

	// ErrApprovalTimeout indicates the human reviewer did not answer within
	// the bounded wait. Distinct from an explicit denial.
	ErrApprovalTimeout = errors.New("approval request timed out")

	// ErrApprovalBridge indicates the approval transport itself broke.
	ErrApprovalBridge = errors.New("approval bridge failure")

	// ErrApprovalDenied indicates the reviewer (or the gate) explicitly
	// rejected the tool call.
	ErrApprovalDenied = errors.New("tool call denied")

	// ErrDuplicateApproval is returned when a decision arrives for a call id
	// with no pending request.
	ErrDuplicateApproval = errors.New("no pending approval for call id")

	// ErrSessionClosed is returned by a registry that has been shut down.
	ErrSessionClosed = errors.New("session registry closed")
)
