package orchestra

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/repo"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/service"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/service/supervision"
	boltdbStore "github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/store/boltdb"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/store/inmemory"
	"github.com/mellis-dev/conclave/pkg/logger"
)

// Config holds the configuration for the Orchestra module.
// Follows K8S-style: Config → Complete() → New(ctx, deps).
type Config struct {
	// MaxConcurrent is the per-session ceiling on running agents (default: 4).
	MaxConcurrent int `json:"max_concurrent,omitempty"`

	// MaxDepth bounds nested spawn chains (default: 3).
	MaxDepth int `json:"max_depth,omitempty"`

	// TerminalTTL is how long terminal agents stay resident (default: 5m).
	TerminalTTL time.Duration `json:"terminal_ttl,omitempty"`

	// SessionIdleTTL evicts managers idle past this threshold (default: 30m).
	SessionIdleTTL time.Duration `json:"session_idle_ttl,omitempty"`

	// SweepInterval is the registry sweep period (default: 1m).
	SweepInterval time.Duration `json:"sweep_interval,omitempty"`

	// ApprovalTimeoutSec bounds the human approval wait (default: 60).
	ApprovalTimeoutSec int `json:"approval_timeout_sec,omitempty"`

	// ExtraReadOnlyPatterns extends the tier-1 allowlist with glob patterns.
	ExtraReadOnlyPatterns []string `json:"extra_read_only_patterns,omitempty"`

	// StoreType selects the persistence backend: "inmemory" or "boltdb".
	// Default: "inmemory".
	StoreType string `json:"store_type,omitempty"`

	// BoltDBPath is the file path for BoltDB storage (when StoreType="boltdb").
	// Default: "data/conclave.db".
	BoltDBPath string `json:"boltdb_path,omitempty"`
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete validates and fills defaults.
func (c *Config) Complete() CompletedConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 3
	}
	if c.TerminalTTL <= 0 {
		c.TerminalTTL = 5 * time.Minute
	}
	if c.SessionIdleTTL <= 0 {
		c.SessionIdleTTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.ApprovalTimeoutSec <= 0 {
		c.ApprovalTimeoutSec = 60
	}
	if c.StoreType == "" {
		c.StoreType = "inmemory"
	}
	if c.BoltDBPath == "" {
		c.BoltDBPath = "data/conclave.db"
	}
	return CompletedConfig{c}
}

// Dependencies holds the external collaborators of the Orchestra module.
type Dependencies struct {
	// Runner is the opaque tool-loop executor. Required.
	Runner service.ToolLoopRunner

	// JudgeModel powers tier-2 supervision; nil skips that tier.
	JudgeModel model.BaseChatModel

	// PrefaceModel powers best-effort preface generation; nil disables it.
	PrefaceModel model.BaseChatModel
}

// Module is the top-level Orchestra module.
//
// It exposes:
//   - Registry: session id → agent manager mapping with idle eviction
//   - Bridge: the in-process approval bridge the transport resolves into
type Module struct {
	Registry *service.SessionAgentRegistry
	Bridge   *supervision.BridgeRegistry
	boltDB   *boltdbStore.DB // nil when using inmemory store
}

// Close releases resources held by the module.
func (m *Module) Close() error {
	m.Registry.Close()
	if m.boltDB != nil {
		return m.boltDB.Close()
	}
	return nil
}

// New creates and initializes the Orchestra module from a completed config.
func (c CompletedConfig) New(_ context.Context, deps Dependencies) (*Module, error) {
	logger.Info("[Orchestra] creating Orchestra module...")

	if deps.Runner == nil {
		return nil, fmt.Errorf("tool-loop runner dependency is required")
	}

	// Infrastructure layer: select store backend.
	var (
		history repo.HistoryRepository
		meta    repo.AgentMetaRepository
		boltDB  *boltdbStore.DB
	)

	switch c.StoreType {
	case "boltdb":
		var err error
		boltDB, err = boltdbStore.Open(c.BoltDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open boltdb at %s: %w", c.BoltDBPath, err)
		}
		history = boltdbStore.NewHistoryStore(boltDB)
		meta = boltdbStore.NewMetaStore(boltDB)
		logger.Info("[Orchestra] using BoltDB store at %s", c.BoltDBPath)
	default:
		history = inmemory.NewHistoryStore()
		meta = inmemory.NewMetaStore()
		logger.Info("[Orchestra] using in-memory store")
	}

	bridge := supervision.NewBridgeRegistry()
	supervisor := supervision.NewSupervisor(
		supervision.RuleSet{ExtraReadOnlyPatterns: c.ExtraReadOnlyPatterns},
		deps.JudgeModel,
		bridge,
		time.Duration(c.ApprovalTimeoutSec)*time.Second,
	)

	var prefacer service.PrefaceGenerator
	if deps.PrefaceModel != nil {
		prefacer = service.NewModelPrefacer(deps.PrefaceModel)
	}

	managerDeps := service.ManagerDeps{
		Runner:     deps.Runner,
		History:    history,
		Meta:       meta,
		Supervisor: supervisor,
		Preface:    prefacer,
	}
	managerCfg := service.ManagerConfig{
		MaxConcurrent: c.MaxConcurrent,
		MaxDepth:      c.MaxDepth,
		TerminalTTL:   c.TerminalTTL,
	}

	registry := service.NewSessionAgentRegistry(
		service.RegistryConfig{
			IdleTTL:       c.SessionIdleTTL,
			SweepInterval: c.SweepInterval,
		},
		func(sessionID string) *service.AgentManager {
			return service.NewAgentManager(sessionID, managerCfg, managerDeps)
		},
	)

	logger.Info("[Orchestra] Orchestra module initialized (store=%s, max_concurrent=%d, max_depth=%d, approval_timeout=%ds, tier2=%t)",
		c.StoreType, c.MaxConcurrent, c.MaxDepth, c.ApprovalTimeoutSec, deps.JudgeModel != nil)

	return &Module{
		Registry: registry,
		Bridge:   bridge,
		boltDB:   boltDB,
	}, nil
}
