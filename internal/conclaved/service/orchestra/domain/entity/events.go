package entity

// EventType identifies the type of a streaming agent event.
type EventType string

const (
	// EventStart opens a streamed response or tool call, keyed by CallID.
	EventStart EventType = "start"

	// EventTextDelta is a chunk of assistant text being streamed.
	EventTextDelta EventType = "text_delta"

	// EventToolCall announces a tool call proposed by the assistant.
	EventToolCall EventType = "tool_call"

	// EventAgentStatus indicates an agent lifecycle transition.
	EventAgentStatus EventType = "agent_status"

	// EventError indicates an error surfaced during a cycle.
	EventError EventType = "error"

	// EventDone closes a stream cycle; Message carries the final
	// assistant message assembled by the runner.
	EventDone EventType = "done"
)

// AgentEvent is a streaming event emitted during agent execution.
//
// Events flow from the tool-loop runner through the manager to the
// session's output sink verbatim; the manager only inspects them for
// text deltas and the terminal message.
type AgentEvent struct {
	// Type identifies which kind of event this is.
	Type EventType `json:"type"`

	// AgentID is the agent this event belongs to.
	AgentID string `json:"agent_id,omitempty"`

	// CallID keys start/delta/done/error groups for live display.
	CallID string `json:"call_id,omitempty"`

	// Delta contains the text chunk for EventTextDelta events.
	Delta string `json:"delta,omitempty"`

	// ToolCall contains the proposed call for EventToolCall events.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// Message is the final assistant message for EventDone events.
	Message *Message `json:"message,omitempty"`

	// Status contains the new status for EventAgentStatus events.
	Status AgentStatus `json:"status,omitempty"`

	// Error contains the error message for EventError events.
	Error string `json:"error,omitempty"`
}

// EventSink receives agent events for live display.
//
// Implementations must not block for long: the execution cycle forwards
// events inline. Send is called from the agent's execution goroutine.
type EventSink interface {
	Send(event *AgentEvent)
}

// NullSink discards all events.
type NullSink struct{}

func (NullSink) Send(*AgentEvent) {}
