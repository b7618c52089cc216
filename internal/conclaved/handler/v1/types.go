package v1

import (
	"time"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
)

// SpawnAgentRequest is the request body for POST /v1/sessions/:sid/agents.
type SpawnAgentRequest struct {
	// Task is the instruction for the new agent. Required.
	Task string `json:"task" binding:"required"`

	// Items are optional enumerated sub-points appended to the task.
	Items []string `json:"items,omitempty"`

	// Name is the display name; derived from the task when empty.
	Name string `json:"name,omitempty"`

	// ParentMessageID attributes the spawn to a message in the caller's
	// transcript.
	ParentMessageID string `json:"parent_message_id,omitempty"`

	// ModelRef selects the model the agent runs with. Opaque to the
	// engine.
	ModelRef string `json:"model_ref,omitempty"`
}

// SpawnAgentResponse returns the new agent id.
type SpawnAgentResponse struct {
	AgentID string `json:"agent_id"`
}

// AgentResponse is the wire shape of one managed agent.
type AgentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Task      string `json:"task"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// SendInputRequest is the request body for POST .../agents/:id/input.
type SendInputRequest struct {
	Message string `json:"message" binding:"required"`

	// Interrupt cancels the in-flight cycle before delivering the
	// message.
	Interrupt bool `json:"interrupt,omitempty"`
}

// WaitRequest is the request body for POST /v1/sessions/:sid/wait.
type WaitRequest struct {
	AgentIDs []string `json:"agent_ids" binding:"required"`

	// TimeoutSec bounds the wait; defaults to 60.
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// WaitResponse reports the first-past-the-post outcome.
type WaitResponse struct {
	TimedOut bool              `json:"timed_out"`
	Statuses map[string]string `json:"statuses"`
}

// AbortResponse carries the partial output captured before the abort.
type AbortResponse struct {
	AgentID string `json:"agent_id"`
	Output  string `json:"output,omitempty"`
}

// ResolveApprovalRequest is the request body for POST /v1/approvals/:call_id.
type ResolveApprovalRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// FormatTime renders timestamps in RFC3339.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func toAgentResponse(a *entity.ManagedAgent) AgentResponse {
	return AgentResponse{
		ID:        a.ID,
		Name:      a.Name,
		Task:      a.Task,
		Status:    string(a.Status()),
		Result:    a.Result(),
		Error:     a.Err(),
		CreatedAt: FormatTime(a.CreatedAt),
	}
}
