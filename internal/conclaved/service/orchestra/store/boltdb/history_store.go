package boltdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/boltdb/bolt"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/pkg/utils/json"
)

// HistoryStore is a BoltDB-backed append-only message log.
//
// Each (session, agent) pair gets its own nested bucket under "history";
// record keys are "<created-at-nanos>|<message-id>" so a cursor walk is
// already in replay order. ReadAll still sorts defensively, since clock
// precision alone does not guarantee tie ordering across restarts.
type HistoryStore struct {
	db *bolt.DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db.Bolt()}
}

func agentBucketKey(sessionID, agentID string) []byte {
	return []byte(sessionID + "/" + agentID)
}

func recordKey(msg *entity.Message) []byte {
	return []byte(fmt.Sprintf("%020d|%s", msg.CreatedAt.UnixNano(), msg.ID))
}

func (s *HistoryStore) Append(_ context.Context, sessionID, agentID string, msg *entity.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketHistory)
		b, err := root.CreateBucketIfNotExists(agentBucketKey(sessionID, agentID))
		if err != nil {
			return fmt.Errorf("failed to create agent bucket: %w", err)
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return b.Put(recordKey(msg), data)
	})
}

func (s *HistoryStore) UpdateMessage(_ context.Context, sessionID, agentID string, msg *entity.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketHistory)
		b := root.Bucket(agentBucketKey(sessionID, agentID))
		if b == nil {
			return fmt.Errorf("no history for agent %q", agentID)
		}
		key := recordKey(msg)
		if b.Get(key) == nil {
			return fmt.Errorf("message %q not found in history of agent %q", msg.ID, agentID)
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return b.Put(key, data)
	})
}

func (s *HistoryStore) ReadAll(_ context.Context, sessionID, agentID string) ([]*entity.Message, error) {
	var msgs []*entity.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketHistory)
		b := root.Bucket(agentBucketKey(sessionID, agentID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var m entity.Message
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			msgs = append(msgs, &m)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read history for agent %q: %w", agentID, err)
	}
	sortMessages(msgs)
	return msgs, nil
}

// sortMessages orders records by creation time, message id as tiebreak.
func sortMessages(msgs []*entity.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
