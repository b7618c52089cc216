package service

import (
	"context"
	"sync"
	"time"

	"github.com/mellis-dev/conclave/pkg/logger"
	"github.com/mellis-dev/conclave/pkg/utils/safego"
)

// RegistryConfig tunes session manager eviction.
type RegistryConfig struct {
	// IdleTTL is how long a manager may go untouched before the sweep
	// shuts it down and evicts it.
	IdleTTL time.Duration

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration
}

// SessionAgentRegistry maps session ids to their agent managers. Managers
// are created lazily on first access and evicted by a periodic sweep once
// idle past the threshold. The registry owns its lifecycle explicitly:
// construct once, inject, Close on shutdown.
type SessionAgentRegistry struct {
	cfg     RegistryConfig
	factory func(sessionID string) *AgentManager

	mu       sync.Mutex
	managers map[string]*registryEntry
	closed   bool
	stopCh   chan struct{}
}

type registryEntry struct {
	manager    *AgentManager
	lastAccess time.Time
}

// NewSessionAgentRegistry creates a registry and starts its sweep loop.
func NewSessionAgentRegistry(cfg RegistryConfig, factory func(sessionID string) *AgentManager) *SessionAgentRegistry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	r := &SessionAgentRegistry{
		cfg:      cfg,
		factory:  factory,
		managers: make(map[string]*registryEntry),
		stopCh:   make(chan struct{}),
	}
	safego.Go(context.Background(), r.sweepLoop)
	return r
}

// Get returns the manager for a session, creating one if absent, and
// refreshes its last-access timestamp.
func (r *SessionAgentRegistry) Get(sessionID string) *AgentManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	entry, ok := r.managers[sessionID]
	if !ok {
		entry = &registryEntry{manager: r.factory(sessionID)}
		r.managers[sessionID] = entry
		logger.InfoX(moduleName, "[SessionRegistry] created manager for session %s", sessionID)
	}
	entry.lastAccess = time.Now()
	return entry.manager
}

// Remove tears down a session's manager explicitly, releasing its agents.
func (r *SessionAgentRegistry) Remove(sessionID string) {
	r.mu.Lock()
	entry, ok := r.managers[sessionID]
	if ok {
		delete(r.managers, sessionID)
	}
	r.mu.Unlock()

	if ok {
		entry.manager.Shutdown()
		logger.InfoX(moduleName, "[SessionRegistry] removed session %s", sessionID)
	}
}

// Len returns the number of resident session managers.
func (r *SessionAgentRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Close stops the sweep and tears down every manager.
func (r *SessionAgentRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.stopCh)
	managers := make([]*AgentManager, 0, len(r.managers))
	for _, e := range r.managers {
		managers = append(managers, e.manager)
	}
	r.managers = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, m := range managers {
		m.Shutdown()
	}
}

func (r *SessionAgentRegistry) sweepLoop() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// sweep evicts managers idle past the threshold.
func (r *SessionAgentRegistry) sweep() {
	cutoff := time.Now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var evicted []*AgentManager
	for sessionID, entry := range r.managers {
		if entry.lastAccess.Before(cutoff) {
			delete(r.managers, sessionID)
			evicted = append(evicted, entry.manager)
		}
	}
	r.mu.Unlock()

	for _, m := range evicted {
		m.Shutdown()
		logger.InfoX(moduleName, "[SessionRegistry] evicted idle session %s", m.SessionID())
	}
}
