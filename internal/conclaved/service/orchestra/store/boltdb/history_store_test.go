package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "conclave.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHistoryStoreAppendAndReplay(t *testing.T) {
	s := NewHistoryStore(openTestDB(t))
	ctx := context.Background()
	base := time.Now()

	// Persist out of chronological order; a replay must come back sorted.
	offsets := map[string]time.Duration{"first": 0, "second": time.Second, "third": 2 * time.Second}
	for _, text := range []string{"third", "first", "second"} {
		msg := entity.NewUserMessage(text)
		msg.CreatedAt = base.Add(offsets[text])
		require.NoError(t, s.Append(ctx, "s1", "a1", msg))
	}

	msgs, err := s.ReadAll(ctx, "s1", "a1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Text())
	assert.Equal(t, "second", msgs[1].Text())
	assert.Equal(t, "third", msgs[2].Text())
}

func TestHistoryStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conclave.db")
	ctx := context.Background()

	db, err := Open(path)
	require.NoError(t, err)
	s := NewHistoryStore(db)
	require.NoError(t, s.Append(ctx, "s1", "a1", entity.NewUserMessage("durable")))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	msgs, err := NewHistoryStore(db).ReadAll(ctx, "s1", "a1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "durable", msgs[0].Text())
}

func TestHistoryStoreUpdateMessage(t *testing.T) {
	s := NewHistoryStore(openTestDB(t))
	ctx := context.Background()

	msg := entity.NewAssistantMessage([]*entity.Part{
		{Type: entity.PartText, Text: "deploying"},
		{Type: entity.PartToolCall, ToolCall: &entity.ToolCall{
			ID:       "tc1",
			Name:     "bash",
			Args:     map[string]interface{}{"command": "kubectl apply -f ."},
			Approval: &entity.ApprovalState{Outcome: entity.ApprovalPending},
		}},
	})
	require.NoError(t, s.Append(ctx, "s1", "a1", msg))

	msg.Parts[1].ToolCall.Approval.Outcome = entity.ApprovalDenied
	msg.Parts[1].ToolCall.Approval.Reason = "not in a deploy window"
	require.NoError(t, s.UpdateMessage(ctx, "s1", "a1", msg))

	msgs, err := s.ReadAll(ctx, "s1", "a1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	tc := msgs[0].Parts[1].ToolCall
	assert.Equal(t, entity.ApprovalDenied, tc.Approval.Outcome)
	assert.Equal(t, "not in a deploy window", tc.Approval.Reason)

	// Updating a record that was never appended fails.
	assert.Error(t, s.UpdateMessage(ctx, "s1", "a1", entity.NewUserMessage("ghost")))
	assert.Error(t, s.UpdateMessage(ctx, "s1", "nobody", msg))
}

func TestHistoryStoreIsolatesAgents(t *testing.T) {
	s := NewHistoryStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "s1", "a1", entity.NewUserMessage("mine")))
	require.NoError(t, s.Append(ctx, "s1", "a2", entity.NewUserMessage("theirs")))

	msgs, err := s.ReadAll(ctx, "s1", "a1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "mine", msgs[0].Text())

	empty, err := s.ReadAll(ctx, "s2", "a1")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMetaStoreRoundtrip(t *testing.T) {
	db := openTestDB(t)
	s := NewMetaStore(db)
	ctx := context.Background()

	meta := &entity.AgentMeta{
		AgentID:   "a1",
		SessionID: "s1",
		Name:      "fixture collector",
		Task:      "collect fixtures under testdata/",
		Preface:   "Starting with the golden files.",
		ModelRef:  "gpt-4o-mini",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.Save(ctx, meta))

	got, err := s.Get(ctx, "s1", "a1")
	require.NoError(t, err)
	assert.Equal(t, meta.Name, got.Name)
	assert.Equal(t, meta.Task, got.Task)
	assert.Equal(t, meta.Preface, got.Preface)
	assert.Equal(t, meta.ModelRef, got.ModelRef)
	assert.True(t, meta.CreatedAt.Equal(got.CreatedAt))

	// Save overwrites in place.
	meta.Preface = "Revised plan."
	require.NoError(t, s.Save(ctx, meta))
	got, err = s.Get(ctx, "s1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Revised plan.", got.Preface)

	_, err = s.Get(ctx, "s1", "missing")
	assert.ErrorIs(t, err, errno.ErrAgentNotFound)
}
