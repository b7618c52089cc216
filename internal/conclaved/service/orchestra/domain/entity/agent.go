package entity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// AgentStatus represents the lifecycle state of a managed agent.
//
// State machine: pending → running → completed | failed | shutdown.
// completed/failed → running on new input; shutdown → running on resume.
// Terminal states are otherwise absorbing.
type AgentStatus string

const (
	AgentStatusPending   AgentStatus = "pending"
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusFailed    AgentStatus = "failed"
	AgentStatusShutdown  AgentStatus = "shutdown"

	// AgentStatusNotFound is a query result for unknown agents,
	// never a stored state.
	AgentStatusNotFound AgentStatus = "not_found"
)

// IsTerminal returns true if the status is a terminal state.
func (s AgentStatus) IsTerminal() bool {
	return s == AgentStatusCompleted || s == AgentStatusFailed || s == AgentStatusShutdown
}

// ManagedAgent is one sub-agent's runtime state: status, conversation
// history, follow-up input queue, cancellation token, and the execution
// gate that serializes cycles.
//
// All mutable state is guarded by mu; the exec gate is acquired for the
// whole duration of an execution cycle so cycles triggered by spawn,
// input, and resume never run concurrently for the same agent.
type ManagedAgent struct {
	ID        string
	Name      string
	Task      string
	Depth     int
	CreatedAt time.Time

	// ResumedFromLog is set when this agent was reconstructed by replaying
	// its persisted history rather than spawned fresh.
	ResumedFromLog bool

	mu              sync.Mutex
	status          AgentStatus
	result          string
	errMsg          string
	messages        []*Message
	inputQueue      []string
	outputText      strings.Builder
	lastParts       []*Part
	preface         string
	prefaceInjected bool
	firstCycleDone  bool
	interrupted     bool
	abort           *AbortController
	listeners       map[chan AgentStatus]struct{}

	execGate chan struct{}
}

// NewManagedAgent creates a pending agent with a fresh cancellation token.
func NewManagedAgent(id, name, task string, depth int) *ManagedAgent {
	return &ManagedAgent{
		ID:        id,
		Name:      name,
		Task:      task,
		Depth:     depth,
		CreatedAt: time.Now(),
		status:    AgentStatusPending,
		abort:     NewAbortController(context.Background()),
		listeners: make(map[chan AgentStatus]struct{}),
		execGate:  make(chan struct{}, 1),
	}
}

// AcquireExec takes the execution gate, blocking until the previous cycle
// releases it or ctx is cancelled.
func (a *ManagedAgent) AcquireExec(ctx context.Context) error {
	select {
	case a.execGate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReleaseExec releases the execution gate.
func (a *ManagedAgent) ReleaseExec() {
	select {
	case <-a.execGate:
	default:
	}
}

// Status returns the current lifecycle state.
func (a *ManagedAgent) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// IsTerminal reports whether the agent is in a terminal state.
func (a *ManagedAgent) IsTerminal() bool {
	return a.Status().IsTerminal()
}

// Transition sets the status and notifies all listeners.
// Each listener is delivered to at most once per terminal transition;
// a stuck or closed listener cannot break notification to the rest.
func (a *ManagedAgent) Transition(status AgentStatus) {
	a.mu.Lock()
	a.status = status
	listeners := make([]chan AgentStatus, 0, len(a.listeners))
	for ch := range a.listeners {
		listeners = append(listeners, ch)
	}
	a.mu.Unlock()

	for _, ch := range listeners {
		notify(ch, status)
	}
}

// notify sends without blocking and swallows a send on a closed channel.
func notify(ch chan AgentStatus, status AgentStatus) {
	defer func() { _ = recover() }()
	select {
	case ch <- status:
	default:
	}
}

// Subscribe registers a status listener. The returned cancel function
// unregisters it; the channel is buffered so notification never blocks.
func (a *ManagedAgent) Subscribe() (<-chan AgentStatus, func()) {
	ch := make(chan AgentStatus, 1)
	a.mu.Lock()
	a.listeners[ch] = struct{}{}
	a.mu.Unlock()

	return ch, func() {
		a.mu.Lock()
		delete(a.listeners, ch)
		a.mu.Unlock()
	}
}

// SetResult records the final result text.
func (a *ManagedAgent) SetResult(result string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = result
}

// Result returns the final result text, if any.
func (a *ManagedAgent) Result() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// SetError records the captured failure message.
func (a *ManagedAgent) SetError(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errMsg = msg
}

// Err returns the captured failure message, if any.
func (a *ManagedAgent) Err() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errMsg
}

// AppendMessage appends one message to the conversation history.
func (a *ManagedAgent) AppendMessage(msg *Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, msg)
}

// SetMessages replaces the conversation history (used by log replay).
func (a *ManagedAgent) SetMessages(msgs []*Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = msgs
}

// Messages returns a snapshot of the conversation history.
func (a *ManagedAgent) Messages() []*Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// LastMessage returns the most recent message, or nil for an empty history.
func (a *ManagedAgent) LastMessage() *Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.messages) == 0 {
		return nil
	}
	return a.messages[len(a.messages)-1]
}

// EnqueueInput appends a follow-up message to the FIFO input queue.
func (a *ManagedAgent) EnqueueInput(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inputQueue = append(a.inputQueue, msg)
}

// HasInput reports whether any follow-ups are queued.
func (a *ManagedAgent) HasInput() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inputQueue) > 0
}

// DequeueInput pops the oldest queued follow-up, strictly in arrival order.
func (a *ManagedAgent) DequeueInput() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.inputQueue) == 0 {
		return "", false
	}
	msg := a.inputQueue[0]
	a.inputQueue = a.inputQueue[1:]
	return msg, true
}

// AppendOutput accumulates streamed text into the agent's output buffer.
func (a *ManagedAgent) AppendOutput(delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outputText.WriteString(delta)
}

// ResetOutput clears the accumulated output (start of a new model turn).
func (a *ManagedAgent) ResetOutput() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outputText.Reset()
}

// Output returns the text accumulated so far in the current turn.
func (a *ManagedAgent) Output() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outputText.String()
}

// SetLastParts records the parts of the latest assistant response.
func (a *ManagedAgent) SetLastParts(parts []*Part) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastParts = parts
}

// LastParts returns the parts of the latest assistant response.
func (a *ManagedAgent) LastParts() []*Part {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastParts
}

// SetPreface installs the one-time introductory text.
func (a *ManagedAgent) SetPreface(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.preface = text
}

// TakePreface returns the preface exactly once; later calls return "".
func (a *ManagedAgent) TakePreface() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.preface == "" || a.prefaceInjected {
		return ""
	}
	a.prefaceInjected = true
	return a.preface
}

// Preface returns the stored preface text without consuming it.
func (a *ManagedAgent) Preface() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.preface
}

// MarkFirstCycleDone records that initial persistence has happened.
// Returns true exactly once, on the very first call.
func (a *ManagedAgent) MarkFirstCycleDone() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.firstCycleDone {
		return false
	}
	a.firstCycleDone = true
	return true
}

// Abort fires the current cancellation token.
func (a *ManagedAgent) Abort() {
	a.mu.Lock()
	ac := a.abort
	a.mu.Unlock()
	ac.Abort()
}

// AbortContext returns the context of the current cancellation token.
func (a *ManagedAgent) AbortContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.abort.Context()
}

// ReplaceAbort cancels the current token and installs a fresh one, so a
// stale cancellation cannot affect a later cycle.
func (a *ManagedAgent) ReplaceAbort() {
	a.mu.Lock()
	old := a.abort
	a.abort = NewAbortController(context.Background())
	a.interrupted = true
	a.mu.Unlock()
	old.Abort()
}

// TakeInterrupt reports whether the abort token was replaced since the
// last call, clearing the marker. A cycle cut short by the superseded
// token's cancellation was interrupted, not failed.
func (a *ManagedAgent) TakeInterrupt() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.interrupted
	a.interrupted = false
	return v
}
