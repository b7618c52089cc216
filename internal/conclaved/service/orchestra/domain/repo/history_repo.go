package repo

import (
	"context"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
)

// HistoryRepository is the append-only per-agent message log.
//
// Append never rewrites prior records except via UpdateMessage, which
// replaces one record in place (used when an approval decision is applied
// to an already-persisted assistant message). ReadAll returns records in
// replay order: CreatedAt ascending, message id as tiebreak.
type HistoryRepository interface {
	Append(ctx context.Context, sessionID, agentID string, msg *entity.Message) error
	UpdateMessage(ctx context.Context, sessionID, agentID string, msg *entity.Message) error
	ReadAll(ctx context.Context, sessionID, agentID string) ([]*entity.Message, error)
}

// AgentMetaRepository persists agent metadata (name, task, preface) so a
// resume can restore identity without the in-memory agent.
type AgentMetaRepository interface {
	Save(ctx context.Context, meta *entity.AgentMeta) error
	Get(ctx context.Context, sessionID, agentID string) (*entity.AgentMeta, error)
}
