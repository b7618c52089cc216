package supervision

import (
	"context"
	"sync"
	"time"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
	"github.com/mellis-dev/conclave/pkg/logger"
)

// AckStatus is the transport-level outcome of an approval request.
type AckStatus string

const (
	AckSuccess AckStatus = "success"
	AckTimeout AckStatus = "timeout"
	AckError   AckStatus = "error"
)

// Ack is the resolution delivered by a reviewer through the bridge.
type Ack struct {
	Status    AckStatus `json:"status"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	ErrorText string    `json:"error_text,omitempty"`
}

// ApprovalBridge delivers an approval request to a human reviewer and
// blocks until a decision, a timeout, or a transport failure.
type ApprovalBridge interface {
	Request(ctx context.Context, callID string, timeout time.Duration) (*Ack, error)
}

// BridgeRegistry is the in-process ApprovalBridge: a typed oneshot
// channel per call id. Request parks the caller on the channel; Resolve
// (driven by the transport, e.g. the approvals HTTP handler) delivers
// exactly one Ack. A timed-out request unregisters itself, so a late
// Resolve gets ErrDuplicateApproval instead of leaking a channel.
type BridgeRegistry struct {
	mu      sync.Mutex
	pending map[string]chan *Ack
}

// NewBridgeRegistry creates an empty registry.
func NewBridgeRegistry() *BridgeRegistry {
	return &BridgeRegistry{
		pending: make(map[string]chan *Ack),
	}
}

// Request registers callID and blocks for an Ack, the timeout, or ctx.
func (r *BridgeRegistry) Request(ctx context.Context, callID string, timeout time.Duration) (*Ack, error) {
	ch := make(chan *Ack, 1)

	r.mu.Lock()
	if _, exists := r.pending[callID]; exists {
		r.mu.Unlock()
		return &Ack{Status: AckError, ErrorText: "duplicate approval request for call id " + callID}, nil
	}
	r.pending[callID] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, callID)
		r.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		return ack, nil
	case <-timer.C:
		logger.Warn("[ApprovalBridge] call %s timed out after %s", callID, timeout)
		return &Ack{Status: AckTimeout}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve delivers a reviewer decision for a pending call id.
func (r *BridgeRegistry) Resolve(callID string, approved bool, reason string) error {
	r.mu.Lock()
	ch, ok := r.pending[callID]
	if ok {
		delete(r.pending, callID)
	}
	r.mu.Unlock()

	if !ok {
		return errno.ErrDuplicateApproval
	}
	ch <- &Ack{Status: AckSuccess, Approved: approved, Reason: reason}
	return nil
}

// PendingCount returns the number of unresolved approval requests.
func (r *BridgeRegistry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
