package supervision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
	"github.com/mellis-dev/conclave/pkg/logger"
	"github.com/mellis-dev/conclave/pkg/utils/json"
)

const moduleName = "supervision"

// DefaultApprovalTimeout bounds the tier-3 human wait when the request
// does not carry its own timeout.
const DefaultApprovalTimeout = 60 * time.Second

// Request describes one candidate tool call under review.
type Request struct {
	// CallID correlates the request with the approval bridge.
	CallID string

	// ToolName and ToolArgs identify the candidate invocation.
	ToolName string
	ToolArgs map[string]interface{}

	// AgentID, AgentName, and Task describe who is asking and why.
	AgentID   string
	AgentName string
	Task      string

	// TimeoutSec bounds the human wait; 0 means DefaultApprovalTimeout.
	TimeoutSec int
}

// Supervisor is the tiered decision engine for gated tool calls:
// deterministic rules, then optional model judgment, then human review.
type Supervisor struct {
	rules          RuleSet
	judge          model.BaseChatModel // nil skips tier 2
	bridge         ApprovalBridge
	defaultTimeout time.Duration
}

// NewSupervisor creates a Supervisor. judge may be nil, in which case
// unmatched calls escalate straight to the bridge. defaultTimeout bounds
// the human wait for requests that carry no timeout of their own; zero
// means DefaultApprovalTimeout.
func NewSupervisor(rules RuleSet, judge model.BaseChatModel, bridge ApprovalBridge, defaultTimeout time.Duration) *Supervisor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultApprovalTimeout
	}
	return &Supervisor{
		rules:          rules,
		judge:          judge,
		bridge:         bridge,
		defaultTimeout: defaultTimeout,
	}
}

// Evaluate runs the three-tier pipeline for one candidate tool call.
//
// The error return is reserved for broken supervision (bridge timeout or
// transport failure): an explicit rejection comes back as a Decision with
// VerdictReject and a nil error, so callers can distinguish "denied" from
// "broke".
func (s *Supervisor) Evaluate(ctx context.Context, req *Request) (Decision, error) {
	// Tier 1: deterministic rules.
	if d, ok := s.rules.Match(req.ToolName, req.ToolArgs); ok {
		logger.DebugX(moduleName, "[Supervisor] tier1 auto-approve %s: %s", req.ToolName, d.Reason)
		return d, nil
	}

	// Tier 2: model judgment.
	if s.judge != nil {
		d, err := s.judgeRequest(ctx, req)
		if err != nil {
			// A broken judge never blocks the pipeline; it escalates.
			logger.WarnX(moduleName, "[Supervisor] tier2 judge error for %s, escalating: %v", req.ToolName, err)
			d = Decision{Verdict: VerdictEscalate, Reason: fmt.Sprintf("supervision model error: %v", err)}
		}
		if d.Verdict != VerdictEscalate {
			logger.InfoX(moduleName, "[Supervisor] tier2 %s for %s: %s", d.Verdict, req.ToolName, d.Reason)
			return d, nil
		}
	}

	// Tier 3: human escalation over the approval bridge.
	return s.escalate(ctx, req)
}

func (s *Supervisor) escalate(ctx context.Context, req *Request) (Decision, error) {
	timeout := s.defaultTimeout
	if req.TimeoutSec > 0 {
		timeout = time.Duration(req.TimeoutSec) * time.Second
	}

	logger.InfoX(moduleName, "[Supervisor] escalating call %s (%s) to human review, timeout=%s",
		req.CallID, req.ToolName, timeout)

	ack, err := s.bridge.Request(ctx, req.CallID, timeout)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", errno.ErrApprovalBridge, err)
	}

	switch ack.Status {
	case AckSuccess:
		verdict := VerdictReject
		if ack.Approved {
			verdict = VerdictApprove
		}
		reason := ack.Reason
		if reason == "" {
			reason = "resolved by human reviewer"
		}
		return Decision{Verdict: verdict, Reason: reason}, nil
	case AckTimeout:
		return Decision{}, fmt.Errorf("%w: call %s after %s", errno.ErrApprovalTimeout, req.CallID, timeout)
	default:
		return Decision{}, fmt.Errorf("%w: %s", errno.ErrApprovalBridge, ack.ErrorText)
	}
}

// judgeRequest asks the supervision model for a verdict.
func (s *Supervisor) judgeRequest(ctx context.Context, req *Request) (Decision, error) {
	resp, err := s.judge.Generate(ctx, []*schema.Message{
		schema.SystemMessage(judgeSystemPrompt),
		schema.UserMessage(buildJudgePrompt(req)),
	})
	if err != nil {
		return Decision{}, err
	}
	return ParseDecision(resp.Content), nil
}

func buildJudgePrompt(req *Request) string {
	var sb strings.Builder

	sb.WriteString("TOOL CALL REVIEW REQUEST\n\n")
	sb.WriteString(fmt.Sprintf("AGENT: %s (%s)\n", req.AgentName, req.AgentID))
	sb.WriteString(fmt.Sprintf("TASK: %s\n\n", req.Task))

	sb.WriteString("TOOL CALL:\n")
	sb.WriteString(fmt.Sprintf("Tool: %s\n", req.ToolName))
	args, err := json.MarshalString(req.ToolArgs)
	if err != nil {
		args = fmt.Sprintf("%v", req.ToolArgs)
	}
	sb.WriteString(fmt.Sprintf("Arguments: %s\n\n", args))

	sb.WriteString("EVALUATE:\n")
	sb.WriteString("1. Is this tool call a natural step toward the agent's stated task?\n")
	sb.WriteString("2. Could it exfiltrate data, destroy state, or contact unexpected hosts?\n")
	sb.WriteString("3. Would a careful operator approve it without further context?\n")

	return sb.String()
}

const judgeSystemPrompt = `You are a supervision gate reviewing tool calls proposed by autonomous sub-agents.

Each request names the agent, its delegated task, and the exact tool invocation it wants to make. Decide whether the call should proceed.

Respond with a JSON object anywhere in your reply:
{"decision": "approve", "reason": "..."}
{"decision": "reject", "reason": "..."}
{"decision": "escalate", "reason": "..."}

Guidelines:
- approve: the call is clearly within the task and low risk
- reject: the call is clearly outside the task or clearly destructive
- escalate: anything you are not certain about; a human will review it

When in doubt, escalate. Never approve credential access, bulk deletion, or outbound transfers you cannot tie directly to the task.`
