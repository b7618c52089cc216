package supervision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		verdict Verdict
		reason  string
	}{
		{
			name:    "plain approve object",
			text:    `{"decision": "approve", "reason": "read only"}`,
			verdict: VerdictApprove,
			reason:  "read only",
		},
		{
			name:    "reject object",
			text:    `{"decision": "reject", "reason": "destructive"}`,
			verdict: VerdictReject,
			reason:  "destructive",
		},
		{
			name:    "object embedded in prose",
			text:    "Let me review this.\n\n```json\n{\"decision\": \"approve\", \"reason\": \"within task\"}\n```\nDone.",
			verdict: VerdictApprove,
			reason:  "within task",
		},
		{
			name:    "uppercase verdict",
			text:    `{"decision": "APPROVE", "reason": "ok"}`,
			verdict: VerdictApprove,
			reason:  "ok",
		},
		{
			name:    "explicit escalate",
			text:    `{"decision": "escalate", "reason": "unsure"}`,
			verdict: VerdictEscalate,
			reason:  "unsure",
		},
		{
			name:    "unknown verdict value",
			text:    `{"decision": "maybe", "reason": "?"}`,
			verdict: VerdictEscalate,
			reason:  defaultEscalateReason,
		},
		{
			name:    "no json at all",
			text:    "I think this looks fine, go ahead.",
			verdict: VerdictEscalate,
			reason:  defaultEscalateReason,
		},
		{
			name:    "empty response",
			text:    "",
			verdict: VerdictEscalate,
			reason:  defaultEscalateReason,
		},
		{
			name:    "malformed json",
			text:    `{"decision": approve}`,
			verdict: VerdictEscalate,
			reason:  defaultEscalateReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseDecision(tt.text)
			assert.Equal(t, tt.verdict, d.Verdict)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}
