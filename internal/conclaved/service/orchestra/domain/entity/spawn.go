package entity

import "time"

// SpawnContext carries the per-spawn collaborators and identifiers.
//
// The ambient request context (session id + nesting stack) travels on the
// context.Context passed alongside; SpawnContext holds what must outlive a
// single call: the output sink and the session binding.
type SpawnContext struct {
	// SessionID is the owning session.
	SessionID string

	// ParentMessageID links the spawn to the parent conversation entry
	// that requested it, if any.
	ParentMessageID string

	// ModelRef names the model the sub-agent should run against.
	// Opaque to the orchestration engine.
	ModelRef string

	// Writer receives all lifecycle and stream events for live display.
	// Nil means events are discarded.
	Writer EventSink
}

// Sink returns the configured writer, or a NullSink when absent.
func (c *SpawnContext) Sink() EventSink {
	if c == nil || c.Writer == nil {
		return NullSink{}
	}
	return c.Writer
}

// AgentMeta is the durable metadata persisted alongside an agent's history
// log, read back during resume to restore name, task, and preface.
type AgentMeta struct {
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Task      string    `json:"task"`
	Preface   string    `json:"preface,omitempty"`
	ModelRef  string    `json:"model_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
