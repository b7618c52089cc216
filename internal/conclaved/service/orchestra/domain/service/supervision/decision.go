package supervision

import (
	"regexp"
	"strings"

	"github.com/mellis-dev/conclave/pkg/utils/json"
)

// Verdict is the gate's decision for a candidate tool call.
type Verdict string

const (
	VerdictApprove  Verdict = "approve"
	VerdictReject   Verdict = "reject"
	VerdictEscalate Verdict = "escalate"
)

// Decision is a verdict plus its human-readable reason.
type Decision struct {
	Verdict Verdict `json:"decision"`
	Reason  string  `json:"reason"`
}

// defaultEscalateReason is used when a model response cannot be parsed.
const defaultEscalateReason = "unable to parse supervision response, escalating to human review"

// decisionPattern finds a flat JSON object mentioning "decision" anywhere
// in free text. Models wrap the object in prose or code fences more often
// than not, so a full-response unmarshal would be too brittle.
var decisionPattern = regexp.MustCompile(`\{[^{}]*"decision"[^{}]*\}`)

// ParseDecision extracts a {"decision": ..., "reason": ...} object from a
// model response. Parsing failure or an unrecognized decision value yields
// escalate, never approve.
func ParseDecision(text string) Decision {
	raw := decisionPattern.FindString(text)
	if raw == "" {
		return Decision{Verdict: VerdictEscalate, Reason: defaultEscalateReason}
	}

	var parsed struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := json.UnmarshalString(raw, &parsed); err != nil {
		return Decision{Verdict: VerdictEscalate, Reason: defaultEscalateReason}
	}

	reason := parsed.Reason
	switch Verdict(strings.ToLower(strings.TrimSpace(parsed.Decision))) {
	case VerdictApprove:
		return Decision{Verdict: VerdictApprove, Reason: reason}
	case VerdictReject:
		return Decision{Verdict: VerdictReject, Reason: reason}
	case VerdictEscalate:
		return Decision{Verdict: VerdictEscalate, Reason: reason}
	default:
		return Decision{Verdict: VerdictEscalate, Reason: defaultEscalateReason}
	}
}
