package service

import (
	"context"
	"fmt"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
	"github.com/mellis-dev/conclave/pkg/logger"
)

// sanitizedDenyReason marks approvals denied by the recovery pass rather
// than by the gate.
const sanitizedDenyReason = "approval request was interrupted by a shutdown before it could be resolved"

// continuationInstruction is the synthetic system message appended after
// sanitization so the model does not produce an empty response on resume.
const continuationInstruction = "The previous tool call was cancelled by a shutdown. " +
	"Continue the task from the current state; re-issue the tool call if it is still needed."

// Resume reactivates a shutdown agent in place, or reconstructs an absent
// one by replaying its history log.
//
// Replay reads all persisted records (ordered by creation time, id as
// tiebreak), repairs any dangling gated tool call left unresolved by an
// unclean shutdown, restores name/task/preface from the metadata store,
// and schedules an execution cycle. Returns ErrAgentNotFound when no log
// exists or it cannot be read.
func (m *AgentManager) Resume(ctx context.Context, id string, sctx *entity.SpawnContext) error {
	if agent, ok := m.GetAgent(id); ok {
		if agent.Status() != entity.AgentStatusShutdown {
			return nil
		}
		if sctx != nil {
			m.mu.Lock()
			m.sinks[id] = sctx.Sink()
			m.mu.Unlock()
		}
		agent.ReplaceAbort()
		agent.Transition(entity.AgentStatusRunning)
		m.scheduleExecution(ctx, agent, cycleInitial)
		logger.InfoX(moduleName, "[AgentManager] reactivated agent %s in place", id)
		return nil
	}

	messages, err := m.deps.History.ReadAll(ctx, m.sessionID, id)
	if err != nil {
		logger.WarnX(moduleName, "[AgentManager] history for agent %s unreadable: %v", id, err)
		return errno.ErrAgentNotFound
	}
	if len(messages) == 0 {
		return errno.ErrAgentNotFound
	}

	messages, err = m.sanitizeDanglingApproval(ctx, id, messages)
	if err != nil {
		return fmt.Errorf("failed to repair history of agent %s: %w", id, err)
	}

	name, task, preface := id, "", ""
	if meta, err := m.deps.Meta.Get(ctx, m.sessionID, id); err == nil {
		name, task, preface = meta.Name, meta.Task, meta.Preface
	} else {
		logger.WarnX(moduleName, "[AgentManager] no metadata for resumed agent %s: %v", id, err)
	}

	agent := entity.NewManagedAgent(id, name, task, 0)
	agent.ResumedFromLog = true
	agent.SetMessages(messages)
	if preface != "" {
		agent.SetPreface(preface)
	}
	// Initial persistence already happened in the agent's first life.
	agent.MarkFirstCycleDone()
	agent.Transition(entity.AgentStatusRunning)

	m.mu.Lock()
	m.agents[id] = agent
	if sctx != nil {
		m.sinks[id] = sctx.Sink()
	}
	m.mu.Unlock()

	logger.InfoX(moduleName, "[AgentManager] resumed agent %s from log (%d messages) session=%s",
		id, len(messages), m.sessionID)

	m.scheduleExecution(ctx, agent, cycleInitial)
	return nil
}

// sanitizeDanglingApproval repairs the invariant that no persisted
// history ends with an unresolved gated tool call. The dangling part is
// marked denied in place and a synthetic continuation instruction is
// appended, both persisted before rehydration.
func (m *AgentManager) sanitizeDanglingApproval(ctx context.Context, agentID string, messages []*entity.Message) ([]*entity.Message, error) {
	last := messages[len(messages)-1]
	if last.Role != entity.RoleAssistant {
		return messages, nil
	}
	pending := last.PendingToolCall()
	if pending == nil {
		return messages, nil
	}

	pending.Approval.Outcome = entity.ApprovalDenied
	pending.Approval.Reason = sanitizedDenyReason
	if err := m.deps.History.UpdateMessage(ctx, m.sessionID, agentID, last); err != nil {
		return nil, err
	}

	continuation := entity.NewSystemMessage(continuationInstruction)
	if err := m.deps.History.Append(ctx, m.sessionID, agentID, continuation); err != nil {
		return nil, err
	}

	logger.InfoX(moduleName, "[AgentManager] sanitized dangling approval %s for agent %s", pending.ID, agentID)
	return append(messages, continuation), nil
}
