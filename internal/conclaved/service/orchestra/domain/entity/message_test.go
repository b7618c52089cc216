package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageText(t *testing.T) {
	m := NewAssistantMessage([]*Part{
		{Type: PartText, Text: "before "},
		{Type: PartToolCall, ToolCall: &ToolCall{ID: "tc1", Name: "read"}},
		{Type: PartText, Text: "after"},
	})
	assert.Equal(t, "before after", m.Text())
}

func TestMessagePendingToolCall(t *testing.T) {
	resolved := &ToolCall{ID: "tc1", Name: "bash", Approval: &ApprovalState{Outcome: ApprovalApproved}}
	ungated := &ToolCall{ID: "tc2", Name: "read"}
	pending := &ToolCall{ID: "tc3", Name: "write_file", Approval: &ApprovalState{Outcome: ApprovalPending}}

	m := NewAssistantMessage([]*Part{
		{Type: PartToolCall, ToolCall: resolved},
		{Type: PartToolCall, ToolCall: ungated},
		{Type: PartToolCall, ToolCall: pending},
	})
	assert.Same(t, pending, m.PendingToolCall(), "only a gated unresolved call counts")

	pending.Approval.Outcome = ApprovalDenied
	assert.Nil(t, m.PendingToolCall())
}

func TestMessageIsEmpty(t *testing.T) {
	assert.True(t, NewAssistantMessage(nil).IsEmpty())
	assert.True(t, NewAssistantMessage([]*Part{{Type: PartText, Text: ""}}).IsEmpty())
	assert.False(t, NewUserMessage("hi").IsEmpty())
	assert.False(t, NewAssistantMessage([]*Part{
		{Type: PartToolCall, ToolCall: &ToolCall{ID: "tc1", Name: "read"}},
	}).IsEmpty())
}
