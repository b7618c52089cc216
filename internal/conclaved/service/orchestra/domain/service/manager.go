package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/repo"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/service/supervision"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/agentctx"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
	"github.com/mellis-dev/conclave/pkg/logger"
	"github.com/mellis-dev/conclave/pkg/utils/safego"
)

const moduleName = "orchestra"

// ManagerConfig bounds one session's agent population.
type ManagerConfig struct {
	// MaxConcurrent is the ceiling on simultaneously running agents.
	MaxConcurrent int

	// MaxDepth bounds nested spawn chains; checked only at spawn time.
	MaxDepth int

	// TerminalTTL is how long a terminal agent stays resident before the
	// auto-cleanup timer evicts it from memory.
	TerminalTTL time.Duration
}

// ManagerDeps are the external collaborators of an AgentManager.
type ManagerDeps struct {
	Runner     ToolLoopRunner
	History    repo.HistoryRepository
	Meta       repo.AgentMetaRepository
	Supervisor *supervision.Supervisor
	Preface    PrefaceGenerator // optional; nil disables prefaces
}

// AgentManager owns the managed agents of one session: it admits spawns
// against the concurrency and depth limits, serializes each agent's
// execution cycles, drives the approval loop, and recovers agents from
// the history log.
type AgentManager struct {
	sessionID string
	cfg       ManagerConfig
	deps      ManagerDeps

	mu     sync.RWMutex
	agents map[string]*entity.ManagedAgent
	sinks  map[string]entity.EventSink
}

// NewAgentManager creates a manager for one session.
func NewAgentManager(sessionID string, cfg ManagerConfig, deps ManagerDeps) *AgentManager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.TerminalTTL <= 0 {
		cfg.TerminalTTL = 5 * time.Minute
	}
	return &AgentManager{
		sessionID: sessionID,
		cfg:       cfg,
		deps:      deps,
		agents:    make(map[string]*entity.ManagedAgent),
		sinks:     make(map[string]entity.EventSink),
	}
}

// SessionID returns the session this manager belongs to.
func (m *AgentManager) SessionID() string { return m.sessionID }

// SpawnRequest describes a new delegated task.
type SpawnRequest struct {
	// Task is the instruction for the sub-agent.
	Task string

	// Items are optional enumerated sub-points appended to the task.
	Items []string

	// Name is the display name; derived from the task when empty.
	Name string

	// Context carries the output sink and session binding.
	Context *entity.SpawnContext
}

// Spawn admits a new agent and schedules its first execution cycle.
//
// Limits are checked before any allocation: a spawn at MaxDepth or with
// MaxConcurrent agents already running fails fast with a named error and
// leaves the agent map untouched. The new agent id returns immediately;
// execution proceeds asynchronously.
func (m *AgentManager) Spawn(ctx context.Context, req *SpawnRequest) (string, error) {
	if depth := agentctx.Depth(ctx); depth >= m.cfg.MaxDepth {
		return "", fmt.Errorf("%w: spawn depth %d has reached the limit (%d)",
			errno.ErrMaxDepthExceeded, depth, m.cfg.MaxDepth)
	}

	m.mu.Lock()
	if running := m.runningCountLocked(); running >= m.cfg.MaxConcurrent {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: Max concurrent agents (%d) reached for session %s",
			errno.ErrConcurrencyLimit, m.cfg.MaxConcurrent, m.sessionID)
	}

	agent := entity.NewManagedAgent(uuid.New().String(), resolveName(req), req.Task, agentctx.Depth(ctx))
	agent.AppendMessage(entity.NewUserMessage(buildInitialInput(req)))
	agent.Transition(entity.AgentStatusRunning)

	m.agents[agent.ID] = agent
	m.sinks[agent.ID] = req.Context.Sink()
	m.mu.Unlock()

	logger.InfoX(moduleName, "[AgentManager] spawned agent %s (%q) depth=%d session=%s",
		agent.ID, agent.Name, agent.Depth, m.sessionID)

	m.scheduleExecution(ctx, agent, cycleInitial)
	return agent.ID, nil
}

// GetAgent returns the resident agent, if any.
func (m *AgentManager) GetAgent(id string) (*entity.ManagedAgent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[id]
	return agent, ok
}

// AgentStatus reports the status of an agent; not_found for non-resident.
func (m *AgentManager) AgentStatus(id string) entity.AgentStatus {
	if agent, ok := m.GetAgent(id); ok {
		return agent.Status()
	}
	return entity.AgentStatusNotFound
}

// List returns a snapshot of all resident agents.
func (m *AgentManager) List() []*entity.ManagedAgent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*entity.ManagedAgent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out
}

// RunningCount returns the number of agents currently in the running state.
func (m *AgentManager) RunningCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runningCountLocked()
}

func (m *AgentManager) runningCountLocked() int {
	n := 0
	for _, a := range m.agents {
		if a.Status() == entity.AgentStatusRunning {
			n++
		}
	}
	return n
}

// SendInput delivers a follow-up message to an agent.
//
// A non-resident agent is transparently recovered from the history log
// when a spawn context is supplied. interrupt cancels the current token
// and installs a fresh one so later cycles are unaffected by the stale
// cancellation. Terminal agents are re-armed by a non-empty message:
// it is enqueued first, then the agent transitions back to running. An
// empty message leaves a terminal agent, and its result, untouched.
func (m *AgentManager) SendInput(ctx context.Context, id, message string, interrupt bool, sctx *entity.SpawnContext) error {
	agent, ok := m.GetAgent(id)
	if !ok {
		if sctx == nil {
			return errno.ErrAgentNotFound
		}
		if err := m.Resume(ctx, id, sctx); err != nil {
			return err
		}
		agent, ok = m.GetAgent(id)
		if !ok {
			return errno.ErrAgentNotFound
		}
	}

	if sctx != nil {
		m.mu.Lock()
		m.sinks[id] = sctx.Sink()
		m.mu.Unlock()
	}

	if interrupt {
		agent.ReplaceAbort()
		logger.InfoX(moduleName, "[AgentManager] interrupted agent %s", id)
	}

	if agent.Status() == entity.AgentStatusShutdown && sctx == nil {
		return fmt.Errorf("%w: agent %s is shut down and no context was supplied", errno.ErrAgentNotFound, id)
	}

	wasTerminal := agent.IsTerminal()
	if message != "" {
		agent.EnqueueInput(message)
	}

	if wasTerminal {
		// Only an enqueued follow-up re-arms; an empty message must not
		// clobber the previous result with an empty run.
		if message == "" {
			return nil
		}
		// A re-armed agent starts a fresh run; its result is the new
		// run's output, not a concatenation with the previous one.
		agent.ResetOutput()
		agent.Transition(entity.AgentStatusRunning)
		m.scheduleExecution(ctx, agent, cycleDrainInput)
		return nil
	}

	if message != "" || interrupt {
		// Running agent: the in-flight cycle drains the queue when its
		// current turn ends; an extra drain cycle covers the window where
		// that cycle has already passed its drain loop, and lets an
		// interrupted agent with nothing queued settle back to terminal.
		m.scheduleExecution(ctx, agent, cycleDrainInput)
	}
	return nil
}

// WaitResult is the outcome of a Wait call.
type WaitResult struct {
	// TimedOut is set when no agent reached a terminal state in time.
	TimedOut bool

	// Statuses snapshots every requested agent id at resolution time.
	Statuses map[string]entity.AgentStatus
}

// Wait blocks until ANY of the named agents is terminal, first past the
// post. A terminal state existing at call time resolves synchronously
// without registering listeners. Unknown ids count as terminal
// (not_found is a terminal query result).
func (m *AgentManager) Wait(ctx context.Context, ids []string, timeout time.Duration) (*WaitResult, error) {
	if m.anyTerminal(ids) {
		return &WaitResult{TimedOut: false, Statuses: m.statusSnapshot(ids)}, nil
	}

	stop := make(chan struct{})
	defer close(stop)
	hit := make(chan struct{}, len(ids))

	for _, id := range ids {
		agent, ok := m.GetAgent(id)
		if !ok {
			continue
		}
		ch, cancel := agent.Subscribe()
		defer cancel()
		go func(ch <-chan entity.AgentStatus) {
			for {
				select {
				case st := <-ch:
					if st.IsTerminal() {
						select {
						case hit <- struct{}{}:
						default:
						}
						return
					}
				case <-stop:
					return
				}
			}
		}(ch)
	}

	// Re-check after subscribing: a transition between the snapshot and
	// the listener registration would otherwise be missed forever.
	if m.anyTerminal(ids) {
		return &WaitResult{TimedOut: false, Statuses: m.statusSnapshot(ids)}, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-hit:
		return &WaitResult{TimedOut: false, Statuses: m.statusSnapshot(ids)}, nil
	case <-timer.C:
		return &WaitResult{TimedOut: true, Statuses: m.statusSnapshot(ids)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *AgentManager) anyTerminal(ids []string) bool {
	for _, id := range ids {
		if m.AgentStatus(id).IsTerminal() || m.AgentStatus(id) == entity.AgentStatusNotFound {
			return true
		}
	}
	return false
}

func (m *AgentManager) statusSnapshot(ids []string) map[string]entity.AgentStatus {
	out := make(map[string]entity.AgentStatus, len(ids))
	for _, id := range ids {
		out[id] = m.AgentStatus(id)
	}
	return out
}

// Abort cancels an agent and evicts it from the manager immediately,
// freeing its concurrency slot even while background work unwinds. The
// persisted history stays durable for a later Resume. Returns whatever
// partial output had accumulated.
func (m *AgentManager) Abort(id string) (string, error) {
	agent, ok := m.GetAgent(id)
	if !ok {
		return "", errno.ErrAgentNotFound
	}

	agent.Abort()
	agent.Transition(entity.AgentStatusShutdown)

	m.mu.Lock()
	delete(m.agents, id)
	delete(m.sinks, id)
	m.mu.Unlock()

	logger.InfoX(moduleName, "[AgentManager] aborted agent %s session=%s", id, m.sessionID)
	return agent.Output(), nil
}

// Shutdown aborts and releases every resident agent. Called when the
// registry evicts an idle session.
func (m *AgentManager) Shutdown() {
	m.mu.Lock()
	agents := make([]*entity.ManagedAgent, 0, len(m.agents))
	for _, a := range m.agents {
		agents = append(agents, a)
	}
	m.agents = make(map[string]*entity.ManagedAgent)
	m.sinks = make(map[string]entity.EventSink)
	m.mu.Unlock()

	for _, a := range agents {
		a.Abort()
		if !a.IsTerminal() {
			a.Transition(entity.AgentStatusShutdown)
		}
	}
	logger.InfoX(moduleName, "[AgentManager] session %s shut down (%d agents released)", m.sessionID, len(agents))
}

// complete records the terminal result and arms the cleanup timer.
func (m *AgentManager) complete(agent *entity.ManagedAgent, result string) {
	agent.SetResult(result)
	agent.Transition(entity.AgentStatusCompleted)
	logger.InfoX(moduleName, "[AgentManager] agent %s completed", agent.ID)

	m.sink(agent.ID).Send(&entity.AgentEvent{
		Type:    entity.EventAgentStatus,
		AgentID: agent.ID,
		Status:  entity.AgentStatusCompleted,
	})
	m.armCleanup(agent)
}

// fail records the captured error, notifies the sink, and arms cleanup.
func (m *AgentManager) fail(agent *entity.ManagedAgent, err error) {
	agent.SetError(err.Error())
	agent.Transition(entity.AgentStatusFailed)
	logger.WarnX(moduleName, "[AgentManager] agent %s failed: %v", agent.ID, err)

	m.sink(agent.ID).Send(&entity.AgentEvent{
		Type:    entity.EventError,
		AgentID: agent.ID,
		Error:   err.Error(),
	})
	m.sink(agent.ID).Send(&entity.AgentEvent{
		Type:    entity.EventAgentStatus,
		AgentID: agent.ID,
		Status:  entity.AgentStatusFailed,
	})
	m.armCleanup(agent)
}

// armCleanup evicts the agent from memory after the terminal TTL, but
// only if it is still terminal when the timer fires. A resume that beat
// the timer keeps the agent resident; the eviction becomes a no-op.
func (m *AgentManager) armCleanup(agent *entity.ManagedAgent) {
	time.AfterFunc(m.cfg.TerminalTTL, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		resident, ok := m.agents[agent.ID]
		if !ok || resident != agent || !agent.IsTerminal() {
			return
		}
		delete(m.agents, agent.ID)
		delete(m.sinks, agent.ID)
		logger.DebugX(moduleName, "[AgentManager] evicted terminal agent %s after TTL", agent.ID)
	})
}

func (m *AgentManager) sink(agentID string) entity.EventSink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sinks[agentID]; ok {
		return s
	}
	return entity.NullSink{}
}

// scheduleExecution chains a new cycle onto the agent's execution gate so
// cycles triggered by spawn, input, and resume never overlap. A failure
// inside the chain turns into a fail() transition instead of escaping.
func (m *AgentManager) scheduleExecution(ctx context.Context, agent *entity.ManagedAgent, kind cycleKind) {
	ambient := agentctx.WithSessionID(context.Background(), m.sessionID)
	for _, ancestor := range agentctx.Stack(ctx) {
		ambient = agentctx.Push(ambient, ancestor)
	}

	safego.Go(ambient, func() {
		if err := agent.AcquireExec(agent.AbortContext()); err != nil {
			return
		}
		defer agent.ReleaseExec()

		// A marker left by a between-cycle interrupt or an in-place
		// resume belongs to no in-flight cycle; drop it so it cannot
		// mask a genuine failure of this one.
		agent.TakeInterrupt()

		if err := m.executeAgent(ambient, agent, kind); err != nil {
			// An abort cancels the in-flight cycle; the agent is already
			// shut down and evicted, so there is nothing left to fail.
			if agent.Status() == entity.AgentStatusShutdown {
				logger.DebugX(moduleName, "[AgentManager] cycle for agent %s ended after abort: %v", agent.ID, err)
				return
			}
			// An interrupt replaced the token mid-cycle: the superseded
			// token's cancellation is steering, not failure. The agent
			// stays running for the drain cycle that carried it.
			if agent.TakeInterrupt() {
				logger.DebugX(moduleName, "[AgentManager] cycle for agent %s interrupted: %v", agent.ID, err)
				return
			}
			m.fail(agent, err)
		}
	})
}

func resolveName(req *SpawnRequest) string {
	if req.Name != "" {
		return req.Name
	}
	name := strings.TrimSpace(req.Task)
	if len(name) > 40 {
		name = name[:40]
	}
	return name
}

func buildInitialInput(req *SpawnRequest) string {
	if len(req.Items) == 0 {
		return req.Task
	}
	var sb strings.Builder
	sb.WriteString(req.Task)
	for _, item := range req.Items {
		sb.WriteString("\n- ")
		sb.WriteString(item)
	}
	return sb.String()
}
