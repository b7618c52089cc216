package boltdb

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
	"github.com/mellis-dev/conclave/pkg/utils/json"
)

// MetaStore is a BoltDB-backed store for durable agent metadata.
type MetaStore struct {
	db *bolt.DB
}

// NewMetaStore creates a new MetaStore.
func NewMetaStore(db *DB) *MetaStore {
	return &MetaStore{db: db.Bolt()}
}

func (s *MetaStore) Save(_ context.Context, meta *entity.AgentMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentMeta)
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal agent meta: %w", err)
		}
		return b.Put(agentBucketKey(meta.SessionID, meta.AgentID), data)
	})
}

func (s *MetaStore) Get(_ context.Context, sessionID, agentID string) (*entity.AgentMeta, error) {
	var meta entity.AgentMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgentMeta)
		data := b.Get(agentBucketKey(sessionID, agentID))
		if data == nil {
			return errno.ErrAgentNotFound
		}
		return json.Unmarshal(data, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}
