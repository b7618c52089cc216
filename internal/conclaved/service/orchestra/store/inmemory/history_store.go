package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
)

// HistoryStore is an in-memory implementation of the HistoryRepository.
type HistoryStore struct {
	mu      sync.RWMutex
	records map[string][]*entity.Message
}

// NewHistoryStore creates a new instance of the HistoryStore.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		records: make(map[string][]*entity.Message),
	}
}

func key(sessionID, agentID string) string {
	return sessionID + "/" + agentID
}

func (s *HistoryStore) Append(_ context.Context, sessionID, agentID string, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(sessionID, agentID)
	s.records[k] = append(s.records[k], msg)
	return nil
}

func (s *HistoryStore) UpdateMessage(_ context.Context, sessionID, agentID string, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records[key(sessionID, agentID)]
	for i, m := range records {
		if m.ID == msg.ID {
			records[i] = msg
			return nil
		}
	}
	return errno.ErrAgentNotFound
}

func (s *HistoryStore) ReadAll(_ context.Context, sessionID, agentID string) ([]*entity.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.records[key(sessionID, agentID)]
	out := make([]*entity.Message, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
