package entity

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies the kind of a message part.
type PartType string

const (
	PartText     PartType = "text"
	PartToolCall PartType = "tool_call"
)

// ApprovalOutcome is the resolution state of a gated tool call.
type ApprovalOutcome string

const (
	ApprovalPending  ApprovalOutcome = "pending"
	ApprovalApproved ApprovalOutcome = "approved"
	ApprovalDenied   ApprovalOutcome = "denied"
)

// ApprovalState tracks the supervision outcome attached to a gated tool call.
// A nil ApprovalState means the call is not gated at all.
type ApprovalState struct {
	Outcome ApprovalOutcome `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
}

// ToolCall is a tool invocation proposed by the assistant.
type ToolCall struct {
	// ID is the call id, also the key for approval bridge correlation.
	ID string `json:"id"`

	// Name is the tool name.
	Name string `json:"name"`

	// Args are the invocation arguments as decoded JSON.
	Args map[string]interface{} `json:"args,omitempty"`

	// Approval is set when this call is gated by supervision.
	Approval *ApprovalState `json:"approval,omitempty"`
}

// PendingApproval returns true if this call is gated and still unresolved.
func (tc *ToolCall) PendingApproval() bool {
	return tc.Approval != nil && tc.Approval.Outcome == ApprovalPending
}

// Part is one ordered segment of a message: plain text or a tool call.
type Part struct {
	Type     PartType  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// Message is a single entry in an agent's conversation history.
//
// Replay order after a restart is CreatedAt ascending with ID as tiebreak,
// so IDs must be generated monotonically enough to break same-instant ties.
type Message struct {
	// ID is the unique message identifier.
	ID string `json:"id"`

	// Role is the sender role (system/user/assistant/tool).
	Role Role `json:"role"`

	// Parts is the ordered content of the message.
	Parts []*Part `json:"parts"`

	// CreatedAt is when this message was created.
	CreatedAt time.Time `json:"created_at"`
}

// Text concatenates all text parts of the message.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// PendingToolCall returns the first gated, unresolved tool call part,
// or nil when the message carries none.
func (m *Message) PendingToolCall() *ToolCall {
	for _, p := range m.Parts {
		if p.Type == PartToolCall && p.ToolCall != nil && p.ToolCall.PendingApproval() {
			return p.ToolCall
		}
	}
	return nil
}

// IsEmpty reports whether the message has no content at all.
func (m *Message) IsEmpty() bool {
	for _, p := range m.Parts {
		if p.Type == PartToolCall && p.ToolCall != nil {
			return false
		}
		if p.Type == PartText && p.Text != "" {
			return false
		}
	}
	return true
}

// NewSystemMessage creates a system message with a single text part.
func NewSystemMessage(content string) *Message {
	return newTextMessage(RoleSystem, content)
}

// NewUserMessage creates a user message with a single text part.
func NewUserMessage(content string) *Message {
	return newTextMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message from its parts.
func NewAssistantMessage(parts []*Part) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Parts:     parts,
		CreatedAt: time.Now(),
	}
}

func newTextMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      role,
		Parts:     []*Part{{Type: PartText, Text: content}},
		CreatedAt: time.Now(),
	}
}
