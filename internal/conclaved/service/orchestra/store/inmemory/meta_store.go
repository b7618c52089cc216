package inmemory

import (
	"context"
	"sync"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
)

// MetaStore is an in-memory implementation of the AgentMetaRepository.
type MetaStore struct {
	mu    sync.RWMutex
	metas map[string]*entity.AgentMeta
}

// NewMetaStore creates a new instance of the MetaStore.
func NewMetaStore() *MetaStore {
	return &MetaStore{
		metas: make(map[string]*entity.AgentMeta),
	}
}

func (s *MetaStore) Save(_ context.Context, meta *entity.AgentMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[key(meta.SessionID, meta.AgentID)] = meta
	return nil
}

func (s *MetaStore) Get(_ context.Context, sessionID, agentID string) (*entity.AgentMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.metas[key(sessionID, agentID)]
	if !ok {
		return nil, errno.ErrAgentNotFound
	}
	return meta, nil
}
