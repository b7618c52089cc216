package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/service/supervision"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/agentctx"
	"github.com/mellis-dev/conclave/pkg/logger"
)

// cycleKind distinguishes why a cycle was scheduled.
type cycleKind int

const (
	// cycleInitial runs a model turn from the current history, then
	// drains the input queue. Used by spawn and resume.
	cycleInitial cycleKind = iota

	// cycleDrainInput only processes queued follow-ups; when the queue is
	// already empty (an earlier cycle drained it), the cycle is a no-op.
	cycleDrainInput
)

// executeAgent is one full execution cycle.
//
// The agent pushes itself onto the ambient nesting stack so any spawn
// issued from inside its tool loop is depth-accounted. On the very first
// cycle of a fresh agent, metadata and the initial message are persisted
// and a preface is generated best-effort. Queued follow-ups are drained
// strictly in arrival order, each with its own stream cycle.
func (m *AgentManager) executeAgent(ctx context.Context, agent *entity.ManagedAgent, kind cycleKind) error {
	ctx = agentctx.Push(ctx, agent.ID)

	if agent.MarkFirstCycleDone() {
		if err := m.persistInitialState(ctx, agent); err != nil {
			return fmt.Errorf("failed to persist initial agent state: %w", err)
		}
		m.generatePreface(ctx, agent)
	}

	if kind == cycleInitial {
		if err := m.runAgentStreamWithApproval(ctx, agent); err != nil {
			return err
		}
	}

	// A follow-up can race the previous cycle's completion: enqueued and
	// scheduled after that cycle passed its drain loop but before it
	// completed the agent. The gate serializes us behind it, so re-arm
	// here when work is actually queued.
	if kind == cycleDrainInput && agent.IsTerminal() {
		if !agent.HasInput() {
			return nil
		}
		agent.ResetOutput()
		agent.Transition(entity.AgentStatusRunning)
	}

	for {
		input, ok := agent.DequeueInput()
		if !ok {
			break
		}
		msg := entity.NewUserMessage(input)
		agent.AppendMessage(msg)
		if err := m.deps.History.Append(ctx, m.sessionID, agent.ID, msg); err != nil {
			return fmt.Errorf("failed to persist follow-up input: %w", err)
		}
		if err := m.runAgentStreamWithApproval(ctx, agent); err != nil {
			return err
		}
	}

	if agent.Status() == entity.AgentStatusRunning {
		m.complete(agent, agent.Output())
	}
	return nil
}

// persistInitialState writes the agent's metadata and initial messages to
// the durable stores so a crash before the first response is recoverable.
func (m *AgentManager) persistInitialState(ctx context.Context, agent *entity.ManagedAgent) error {
	meta := &entity.AgentMeta{
		AgentID:   agent.ID,
		SessionID: m.sessionID,
		Name:      agent.Name,
		Task:      agent.Task,
		CreatedAt: agent.CreatedAt,
	}
	if err := m.deps.Meta.Save(ctx, meta); err != nil {
		return err
	}
	for _, msg := range agent.Messages() {
		if err := m.deps.History.Append(ctx, m.sessionID, agent.ID, msg); err != nil {
			return err
		}
	}
	return nil
}

// generatePreface asks the preface generator for introductory text.
// Failure degrades silently: execution proceeds without a preface.
func (m *AgentManager) generatePreface(ctx context.Context, agent *entity.ManagedAgent) {
	if m.deps.Preface == nil {
		return
	}
	text, err := m.deps.Preface.Generate(ctx, agent.Name, agent.Task)
	if err != nil {
		logger.WarnX(moduleName, "[AgentManager] preface generation failed for agent %s: %v", agent.ID, err)
		return
	}
	agent.SetPreface(text)

	meta := &entity.AgentMeta{
		AgentID:   agent.ID,
		SessionID: m.sessionID,
		Name:      agent.Name,
		Task:      agent.Task,
		Preface:   text,
		CreatedAt: agent.CreatedAt,
	}
	if err := m.deps.Meta.Save(ctx, meta); err != nil {
		logger.WarnX(moduleName, "[AgentManager] failed to persist preface for agent %s: %v", agent.ID, err)
	}
}

// runAgentStreamWithApproval interleaves model turns with supervision.
//
// After each stream cycle, the latest response parts are inspected for an
// unresolved gated tool call. If one is found it is resolved through the
// tiered gate, the decision is applied in place on that part, the updated
// message is persisted, the output buffer resets, and another stream
// cycle runs. The loop ends when a turn carries no pending gate.
func (m *AgentManager) runAgentStreamWithApproval(ctx context.Context, agent *entity.ManagedAgent) error {
	for {
		if err := m.runAgentStream(ctx, agent); err != nil {
			return err
		}

		pending := pendingToolCall(agent.LastParts())
		if pending == nil {
			return nil
		}

		decision, err := m.deps.Supervisor.Evaluate(ctx, &supervision.Request{
			CallID:    pending.ID,
			ToolName:  pending.Name,
			ToolArgs:  pending.Args,
			AgentID:   agent.ID,
			AgentName: agent.Name,
			Task:      agent.Task,
		})
		if err != nil {
			return fmt.Errorf("approval failed for call %s: %w", pending.ID, err)
		}

		if decision.Verdict == supervision.VerdictApprove {
			pending.Approval.Outcome = entity.ApprovalApproved
		} else {
			pending.Approval.Outcome = entity.ApprovalDenied
		}
		pending.Approval.Reason = decision.Reason

		if last := agent.LastMessage(); last != nil {
			if err := m.deps.History.UpdateMessage(ctx, m.sessionID, agent.ID, last); err != nil {
				logger.WarnX(moduleName, "[AgentManager] failed to persist approval decision for call %s: %v", pending.ID, err)
			}
		}

		m.sink(agent.ID).Send(&entity.AgentEvent{
			Type:     entity.EventToolCall,
			AgentID:  agent.ID,
			CallID:   pending.ID,
			ToolCall: pending,
		})

		agent.ResetOutput()
	}
}

// runAgentStream runs one model turn against the tool-loop runner.
//
// The history is converted to runner form (injecting the one-time preface
// as the leading message when present and not yet injected), the stream
// is consumed with deltas accumulated into the output buffer, every event
// is forwarded verbatim to the sink, and the final assistant message is
// appended to the history log. Empty assistant messages are not persisted.
func (m *AgentManager) runAgentStream(ctx context.Context, agent *entity.ManagedAgent) error {
	messages := agent.Messages()
	if preface := agent.TakePreface(); preface != "" {
		messages = append([]*entity.Message{entity.NewSystemMessage(preface)}, messages...)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopLink := context.AfterFunc(agent.AbortContext(), cancel)
	defer stopLink()

	sr, err := m.deps.Runner.Run(runCtx, agent.ID, messages)
	if err != nil {
		return fmt.Errorf("tool-loop runner failed to start: %w", err)
	}
	defer sr.Close()

	sink := m.sink(agent.ID)
	var final *entity.Message

	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("stream recv error: %w", err)
		}
		if ev == nil {
			continue
		}
		if ev.AgentID == "" {
			ev.AgentID = agent.ID
		}

		switch ev.Type {
		case entity.EventTextDelta:
			agent.AppendOutput(ev.Delta)
		case entity.EventDone:
			final = ev.Message
		case entity.EventError:
			sink.Send(ev)
			return fmt.Errorf("runner reported error: %s", ev.Error)
		}

		sink.Send(ev)
	}

	if final == nil {
		return nil
	}
	agent.SetLastParts(final.Parts)
	if final.IsEmpty() {
		return nil
	}
	agent.AppendMessage(final)
	if err := m.deps.History.Append(ctx, m.sessionID, agent.ID, final); err != nil {
		return fmt.Errorf("failed to persist assistant message: %w", err)
	}
	return nil
}

// pendingToolCall returns the first gated, unresolved call in parts.
func pendingToolCall(parts []*entity.Part) *entity.ToolCall {
	for _, p := range parts {
		if p.Type == entity.PartToolCall && p.ToolCall != nil && p.ToolCall.PendingApproval() {
			return p.ToolCall
		}
	}
	return nil
}
