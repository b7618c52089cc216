package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/service/supervision"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/agentctx"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/store/inmemory"
)

// fakeTurn scripts one stream cycle of the fake runner.
type fakeTurn struct {
	deltas []string
	parts  []*entity.Part
	block  bool // hold the stream open until ctx is cancelled
}

// fakeRunner plays scripted turns in order; the last turn repeats.
type fakeRunner struct {
	mu    sync.Mutex
	turns []fakeTurn
	calls int
}

func (r *fakeRunner) Run(ctx context.Context, agentID string, _ []*entity.Message) (*schema.StreamReader[*entity.AgentEvent], error) {
	r.mu.Lock()
	idx := r.calls
	if idx >= len(r.turns) {
		idx = len(r.turns) - 1
	}
	turn := r.turns[idx]
	r.calls++
	r.mu.Unlock()

	sr, sw := schema.Pipe[*entity.AgentEvent](8)
	go func() {
		defer sw.Close()
		sw.Send(&entity.AgentEvent{Type: entity.EventStart, AgentID: agentID}, nil)
		for _, d := range turn.deltas {
			sw.Send(&entity.AgentEvent{Type: entity.EventTextDelta, AgentID: agentID, Delta: d}, nil)
		}
		if turn.block {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
			return
		}
		parts := turn.parts
		if parts == nil {
			parts = []*entity.Part{{Type: entity.PartText, Text: strings.Join(turn.deltas, "")}}
		}
		sw.Send(&entity.AgentEvent{
			Type:    entity.EventDone,
			AgentID: agentID,
			Message: entity.NewAssistantMessage(parts),
		}, nil)
	}()
	return sr, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// staticBridge resolves every escalation the same way without a human.
type staticBridge struct {
	ack *supervision.Ack
}

func (b *staticBridge) Request(_ context.Context, _ string, _ time.Duration) (*supervision.Ack, error) {
	return b.ack, nil
}

type testEnv struct {
	mgr     *AgentManager
	history *inmemory.HistoryStore
	meta    *inmemory.MetaStore
	runner  *fakeRunner
}

func newTestEnv(t *testing.T, runner *fakeRunner, bridge supervision.ApprovalBridge) *testEnv {
	t.Helper()
	if bridge == nil {
		bridge = &staticBridge{ack: &supervision.Ack{Status: supervision.AckSuccess, Approved: true}}
	}
	history := inmemory.NewHistoryStore()
	meta := inmemory.NewMetaStore()
	mgr := NewAgentManager("sess-1", ManagerConfig{}, ManagerDeps{
		Runner:     runner,
		History:    history,
		Meta:       meta,
		Supervisor: supervision.NewSupervisor(supervision.RuleSet{}, nil, bridge, time.Second),
	})
	return &testEnv{mgr: mgr, history: history, meta: meta, runner: runner}
}

func (e *testEnv) spawn(t *testing.T, task string) string {
	t.Helper()
	id, err := e.mgr.Spawn(context.Background(), &SpawnRequest{
		Task:    task,
		Context: &entity.SpawnContext{SessionID: "sess-1"},
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) waitTerminal(t *testing.T, id string) entity.AgentStatus {
	t.Helper()
	res, err := e.mgr.Wait(context.Background(), []string{id}, 3*time.Second)
	require.NoError(t, err)
	require.False(t, res.TimedOut, "agent %s never reached a terminal state", id)
	return res.Statuses[id]
}

func TestSpawnRunsToCompletion(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"hello ", "world"}}}}, nil)

	id := env.spawn(t, "say hello")
	status := env.waitTerminal(t, id)
	assert.Equal(t, entity.AgentStatusCompleted, status)

	agent, ok := env.mgr.GetAgent(id)
	require.True(t, ok, "completed agent stays resident until the TTL")
	assert.Equal(t, "hello world", agent.Result())

	messages, err := env.history.ReadAll(context.Background(), "sess-1", id)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, entity.RoleUser, messages[0].Role)
	assert.Equal(t, "say hello", messages[0].Text())
	assert.Equal(t, entity.RoleAssistant, messages[1].Role)
	assert.Equal(t, "hello world", messages[1].Text())
}

func TestSpawnDerivesNameAndJoinsItems(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"ok"}}}}, nil)

	id, err := env.mgr.Spawn(context.Background(), &SpawnRequest{
		Task:    "collect fixtures",
		Items:   []string{"unit tests", "golden files"},
		Context: &entity.SpawnContext{SessionID: "sess-1"},
	})
	require.NoError(t, err)
	env.waitTerminal(t, id)

	agent, ok := env.mgr.GetAgent(id)
	require.True(t, ok)
	assert.Equal(t, "collect fixtures", agent.Name)

	messages, err := env.history.ReadAll(context.Background(), "sess-1", id)
	require.NoError(t, err)
	assert.Equal(t, "collect fixtures\n- unit tests\n- golden files", messages[0].Text())
}

func TestSpawnDepthLimit(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"x"}}}}, nil)

	ctx := context.Background()
	for _, ancestor := range []string{"a1", "a2", "a3"} {
		ctx = agentctx.Push(ctx, ancestor)
	}

	_, err := env.mgr.Spawn(ctx, &SpawnRequest{
		Task:    "too deep",
		Context: &entity.SpawnContext{SessionID: "sess-1"},
	})
	require.ErrorIs(t, err, errno.ErrMaxDepthExceeded)
	assert.Contains(t, err.Error(), "spawn depth 3 has reached the limit (3)")
	assert.Empty(t, env.mgr.List(), "failed spawn must not register an agent")
}

func TestSpawnConcurrencyLimit(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{block: true}}}, nil)

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		ids = append(ids, env.spawn(t, "long running"))
	}

	_, err := env.mgr.Spawn(context.Background(), &SpawnRequest{
		Task:    "one too many",
		Context: &entity.SpawnContext{SessionID: "sess-1"},
	})
	require.ErrorIs(t, err, errno.ErrConcurrencyLimit)
	assert.Contains(t, err.Error(), "Max concurrent agents (4) reached")
	assert.Len(t, env.mgr.List(), 4, "rejected spawn must leave the agent map unchanged")

	// Aborting one frees a slot.
	_, err = env.mgr.Abort(ids[0])
	require.NoError(t, err)
	env.spawn(t, "fits now")

	env.mgr.Shutdown()
}

func TestWaitResolvesImmediatelyWhenAlreadyTerminal(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"done"}}}}, nil)

	id := env.spawn(t, "fast task")
	env.waitTerminal(t, id)

	start := time.Now()
	res, err := env.mgr.Wait(context.Background(), []string{id}, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, res.TimedOut)
	assert.Equal(t, entity.AgentStatusCompleted, res.Statuses[id])
	assert.Less(t, time.Since(start), time.Second, "terminal agent must resolve without blocking")
}

func TestWaitUnknownAgentCountsAsTerminal(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"x"}}}}, nil)

	res, err := env.mgr.Wait(context.Background(), []string{"missing"}, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, res.TimedOut)
	assert.Equal(t, entity.AgentStatusNotFound, res.Statuses["missing"])
}

func TestWaitFirstPastThePost(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{
		{block: true},
		{deltas: []string{"quick"}},
	}}, nil)

	slow := env.spawn(t, "slow one")
	require.Eventually(t, func() bool { return env.runner.callCount() == 1 },
		2*time.Second, 5*time.Millisecond, "first agent never started streaming")
	quick := env.spawn(t, "quick one")

	res, err := env.mgr.Wait(context.Background(), []string{slow, quick}, 3*time.Second)
	require.NoError(t, err)
	assert.False(t, res.TimedOut)
	assert.Equal(t, entity.AgentStatusCompleted, res.Statuses[quick])
	assert.Equal(t, entity.AgentStatusRunning, res.Statuses[slow])

	env.mgr.Shutdown()
}

func TestWaitTimesOut(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{block: true}}}, nil)

	id := env.spawn(t, "never finishes")
	res, err := env.mgr.Wait(context.Background(), []string{id}, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, entity.AgentStatusRunning, res.Statuses[id])

	env.mgr.Shutdown()
}

func TestSendInputReArmsCompletedAgent(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{
		{deltas: []string{"first answer"}},
		{deltas: []string{"second answer"}},
	}}, nil)

	id := env.spawn(t, "task")
	env.waitTerminal(t, id)

	err := env.mgr.SendInput(context.Background(), id, "follow up", false,
		&entity.SpawnContext{SessionID: "sess-1"})
	require.NoError(t, err)

	status := env.waitTerminal(t, id)
	assert.Equal(t, entity.AgentStatusCompleted, status)

	agent, ok := env.mgr.GetAgent(id)
	require.True(t, ok)
	assert.Equal(t, "second answer", agent.Result())

	messages, err := env.history.ReadAll(context.Background(), "sess-1", id)
	require.NoError(t, err)
	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		texts = append(texts, m.Text())
	}
	assert.Contains(t, texts, "follow up")
}

func TestSendInputInterruptSteersRunningAgent(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{
		{deltas: []string{"thinking "}, block: true},
		{deltas: []string{"steered answer"}},
	}}, nil)

	id := env.spawn(t, "original course")
	require.Eventually(t, func() bool {
		agent, ok := env.mgr.GetAgent(id)
		return ok && agent.Output() != ""
	}, 2*time.Second, 5*time.Millisecond, "first cycle never started streaming")

	err := env.mgr.SendInput(context.Background(), id, "change course", true,
		&entity.SpawnContext{SessionID: "sess-1"})
	require.NoError(t, err)

	status := env.waitTerminal(t, id)
	assert.Equal(t, entity.AgentStatusCompleted, status, "an interrupt steers the agent, it must not fail it")

	agent, ok := env.mgr.GetAgent(id)
	require.True(t, ok)
	assert.Empty(t, agent.Err(), "the superseded token's cancellation must not surface as an error")
	assert.Contains(t, agent.Result(), "steered answer")

	messages, err := env.history.ReadAll(context.Background(), "sess-1", id)
	require.NoError(t, err)
	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		texts = append(texts, m.Text())
	}
	assert.Contains(t, texts, "change course")
}

func TestSendInputEmptyMessageKeepsTerminalResult(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"the answer"}}}}, nil)

	id := env.spawn(t, "task")
	env.waitTerminal(t, id)

	err := env.mgr.SendInput(context.Background(), id, "", false,
		&entity.SpawnContext{SessionID: "sess-1"})
	require.NoError(t, err)

	// Long enough for an erroneous re-arm cycle to have clobbered the result.
	time.Sleep(50 * time.Millisecond)

	agent, ok := env.mgr.GetAgent(id)
	require.True(t, ok)
	assert.Equal(t, entity.AgentStatusCompleted, agent.Status())
	assert.Equal(t, "the answer", agent.Result())
	assert.Equal(t, 1, env.runner.callCount(), "an empty message must not trigger a new run")
}

func TestDrainCycleReArmsAfterCompletionRace(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{
		{deltas: []string{"first answer"}},
		{deltas: []string{"late answer"}},
	}}, nil)

	id := env.spawn(t, "task")
	env.waitTerminal(t, id)

	agent, ok := env.mgr.GetAgent(id)
	require.True(t, ok)

	// A follow-up landing between the previous cycle's drain loop and its
	// completion: the queue is populated and a drain cycle is scheduled,
	// but the agent is already terminal when that cycle starts.
	agent.EnqueueInput("late follow-up")
	env.mgr.scheduleExecution(context.Background(), agent, cycleDrainInput)

	require.Eventually(t, func() bool {
		return agent.Status() == entity.AgentStatusCompleted && agent.Result() == "late answer"
	}, 2*time.Second, 5*time.Millisecond, "drain cycle must re-arm the terminal agent and publish the new result")

	messages, err := env.history.ReadAll(context.Background(), "sess-1", id)
	require.NoError(t, err)
	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		texts = append(texts, m.Text())
	}
	assert.Contains(t, texts, "late follow-up")
}

func TestSendInputUnknownAgentWithoutContext(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"x"}}}}, nil)

	err := env.mgr.SendInput(context.Background(), "missing", "hello", false, nil)
	assert.ErrorIs(t, err, errno.ErrAgentNotFound)
}

func TestAbortEvictsImmediatelyAndReturnsPartialOutput(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"partial "}, block: true}}}, nil)

	id := env.spawn(t, "interruptible")

	require.Eventually(t, func() bool {
		agent, ok := env.mgr.GetAgent(id)
		return ok && agent.Output() != ""
	}, 2*time.Second, 5*time.Millisecond, "agent never produced output")

	output, err := env.mgr.Abort(id)
	require.NoError(t, err)
	assert.Contains(t, output, "partial")

	_, ok := env.mgr.GetAgent(id)
	assert.False(t, ok, "aborted agent must be evicted synchronously")

	_, err = env.mgr.Abort(id)
	assert.ErrorIs(t, err, errno.ErrAgentNotFound)
}

func TestResumeReplaysHistoryAfterAbort(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{
		{deltas: []string{"working"}, block: true},
		{deltas: []string{"finished after resume"}},
	}}, nil)

	id := env.spawn(t, "durable task")
	require.Eventually(t, func() bool {
		messages, _ := env.history.ReadAll(context.Background(), "sess-1", id)
		return len(messages) > 0
	}, 2*time.Second, 5*time.Millisecond)

	_, err := env.mgr.Abort(id)
	require.NoError(t, err)

	err = env.mgr.Resume(context.Background(), id, &entity.SpawnContext{SessionID: "sess-1"})
	require.NoError(t, err)

	status := env.waitTerminal(t, id)
	assert.Equal(t, entity.AgentStatusCompleted, status)

	agent, ok := env.mgr.GetAgent(id)
	require.True(t, ok)
	assert.True(t, agent.ResumedFromLog)
	assert.Equal(t, "durable task", agent.Task, "task restored from metadata")

	messages, err := env.history.ReadAll(context.Background(), "sess-1", id)
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, entity.RoleUser, messages[0].Role, "replay preserves log order")
	assert.Equal(t, "durable task", messages[0].Text())
}

func TestResumeUnknownAgent(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"x"}}}}, nil)

	err := env.mgr.Resume(context.Background(), "no-log", &entity.SpawnContext{SessionID: "sess-1"})
	assert.ErrorIs(t, err, errno.ErrAgentNotFound)
}

func TestResumeSanitizesDanglingApproval(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{turns: []fakeTurn{{deltas: []string{"continued"}}}}, nil)
	ctx := context.Background()

	// Seed a history that ends with an unresolved gated call, as an
	// unclean shutdown would leave it.
	user := entity.NewUserMessage("deploy the service")
	require.NoError(t, env.history.Append(ctx, "sess-1", "agent-x", user))

	dangling := &entity.ToolCall{
		ID:       "tc-dangling",
		Name:     "write_file",
		Approval: &entity.ApprovalState{Outcome: entity.ApprovalPending},
	}
	assistant := entity.NewAssistantMessage([]*entity.Part{
		{Type: entity.PartText, Text: "I'll write the manifest"},
		{Type: entity.PartToolCall, ToolCall: dangling},
	})
	require.NoError(t, env.history.Append(ctx, "sess-1", "agent-x", assistant))

	err := env.mgr.Resume(ctx, "agent-x", &entity.SpawnContext{SessionID: "sess-1"})
	require.NoError(t, err)
	env.waitTerminal(t, "agent-x")

	assert.Equal(t, entity.ApprovalDenied, dangling.Approval.Outcome)
	assert.Equal(t, sanitizedDenyReason, dangling.Approval.Reason)

	messages, err := env.history.ReadAll(ctx, "sess-1", "agent-x")
	require.NoError(t, err)

	var sawContinuation bool
	for _, m := range messages {
		if m.Role == entity.RoleSystem && m.Text() == continuationInstruction {
			sawContinuation = true
		}
		if pending := m.PendingToolCall(); pending != nil {
			t.Fatalf("history still carries an unresolved gated call %s", pending.ID)
		}
	}
	assert.True(t, sawContinuation, "sanitization must append the continuation instruction")
}

func TestApprovalLoopAutoApprovesReadOnlyCall(t *testing.T) {
	gated := &entity.ToolCall{
		ID:       "tc-read",
		Name:     "read",
		Args:     map[string]interface{}{"path": "main.go"},
		Approval: &entity.ApprovalState{Outcome: entity.ApprovalPending},
	}
	runner := &fakeRunner{turns: []fakeTurn{
		{parts: []*entity.Part{
			{Type: entity.PartText, Text: "let me check"},
			{Type: entity.PartToolCall, ToolCall: gated},
		}},
		{deltas: []string{"all done"}},
	}}
	env := newTestEnv(t, runner, nil)

	id := env.spawn(t, "inspect main.go")
	status := env.waitTerminal(t, id)

	assert.Equal(t, entity.AgentStatusCompleted, status)
	assert.Equal(t, entity.ApprovalApproved, gated.Approval.Outcome)
	assert.Contains(t, gated.Approval.Reason, "read-only tool")
	assert.Equal(t, 2, runner.callCount(), "approval loop must re-run the stream after resolution")
}

func TestApprovalLoopDenialContinuesExecution(t *testing.T) {
	gated := &entity.ToolCall{
		ID:       "tc-write",
		Name:     "write_file",
		Approval: &entity.ApprovalState{Outcome: entity.ApprovalPending},
	}
	runner := &fakeRunner{turns: []fakeTurn{
		{parts: []*entity.Part{{Type: entity.PartToolCall, ToolCall: gated}}},
		{deltas: []string{"adjusted without writing"}},
	}}
	deny := &staticBridge{ack: &supervision.Ack{Status: supervision.AckSuccess, Approved: false, Reason: "no writes today"}}
	env := newTestEnv(t, runner, deny)

	id := env.spawn(t, "update config")
	status := env.waitTerminal(t, id)

	assert.Equal(t, entity.AgentStatusCompleted, status, "a denial is feedback, not a failure")
	assert.Equal(t, entity.ApprovalDenied, gated.Approval.Outcome)
	assert.Equal(t, "no writes today", gated.Approval.Reason)
	assert.Equal(t, 2, runner.callCount())
}

func TestApprovalTimeoutFailsTheCycle(t *testing.T) {
	gated := &entity.ToolCall{
		ID:       "tc-stuck",
		Name:     "write_file",
		Approval: &entity.ApprovalState{Outcome: entity.ApprovalPending},
	}
	runner := &fakeRunner{turns: []fakeTurn{
		{parts: []*entity.Part{{Type: entity.PartToolCall, ToolCall: gated}}},
	}}
	timeout := &staticBridge{ack: &supervision.Ack{Status: supervision.AckTimeout}}
	env := newTestEnv(t, runner, timeout)

	id := env.spawn(t, "gated task")
	status := env.waitTerminal(t, id)

	assert.Equal(t, entity.AgentStatusFailed, status, "an unresolvable approval breaks the cycle")
	agent, ok := env.mgr.GetAgent(id)
	require.True(t, ok)
	assert.Contains(t, agent.Err(), "approval failed")
}
