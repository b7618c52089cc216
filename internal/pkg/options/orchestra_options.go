package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// OrchestraOptions configures the sub-agent orchestration engine.
type OrchestraOptions struct {
	// MaxConcurrent is the per-session ceiling on running agents.
	MaxConcurrent int `json:"max-concurrent" mapstructure:"max-concurrent"`

	// MaxDepth bounds nested spawn chains.
	MaxDepth int `json:"max-depth" mapstructure:"max-depth"`

	// TerminalTTL is how long terminal agents stay resident.
	TerminalTTL time.Duration `json:"terminal-ttl" mapstructure:"terminal-ttl"`

	// SessionIdleTTL evicts session managers idle past this threshold.
	SessionIdleTTL time.Duration `json:"session-idle-ttl" mapstructure:"session-idle-ttl"`

	// SweepInterval is the registry sweep period.
	SweepInterval time.Duration `json:"sweep-interval" mapstructure:"sweep-interval"`

	// ApprovalTimeoutSec bounds the human approval wait.
	ApprovalTimeoutSec int `json:"approval-timeout-sec" mapstructure:"approval-timeout-sec"`

	// ExtraReadOnlyPatterns extends the auto-approve allowlist with glob
	// patterns matched against tool names.
	ExtraReadOnlyPatterns []string `json:"extra-read-only-patterns" mapstructure:"extra-read-only-patterns"`

	// StoreType selects the persistence backend: "inmemory" or "boltdb".
	StoreType string `json:"store-type" mapstructure:"store-type"`

	// BoltDBPath is the file path for BoltDB storage.
	BoltDBPath string `json:"boltdb-path" mapstructure:"boltdb-path"`
}

// NewOrchestraOptions creates an OrchestraOptions object with default
// parameters.
func NewOrchestraOptions() *OrchestraOptions {
	return &OrchestraOptions{
		MaxConcurrent:      4,
		MaxDepth:           3,
		TerminalTTL:        5 * time.Minute,
		SessionIdleTTL:     30 * time.Minute,
		SweepInterval:      time.Minute,
		ApprovalTimeoutSec: 60,
		StoreType:          "boltdb",
		BoltDBPath:         "data/conclave.db",
	}
}

// Validate checks validation of OrchestraOptions.
func (o *OrchestraOptions) Validate() []error {
	var errs []error

	if o.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("orchestra.max-concurrent must be at least 1"))
	}
	if o.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("orchestra.max-depth must be at least 1"))
	}
	if o.ApprovalTimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("orchestra.approval-timeout-sec must be at least 1"))
	}
	switch o.StoreType {
	case "inmemory", "boltdb":
	default:
		errs = append(errs, fmt.Errorf("invalid store type %q, must be 'inmemory' or 'boltdb'", o.StoreType))
	}
	if o.StoreType == "boltdb" && o.BoltDBPath == "" {
		errs = append(errs, fmt.Errorf("orchestra.boltdb-path is required when store-type is 'boltdb'"))
	}

	return errs
}

// AddFlags adds flags related to the orchestration engine to the
// specified FlagSet.
func (o *OrchestraOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.MaxConcurrent, "orchestra.max-concurrent", o.MaxConcurrent, "Maximum concurrently running agents per session.")
	fs.IntVar(&o.MaxDepth, "orchestra.max-depth", o.MaxDepth, "Maximum nested spawn depth.")
	fs.DurationVar(&o.TerminalTTL, "orchestra.terminal-ttl", o.TerminalTTL, "How long completed/failed agents stay addressable before eviction.")
	fs.DurationVar(&o.SessionIdleTTL, "orchestra.session-idle-ttl", o.SessionIdleTTL, "Idle time after which a session's agent manager is evicted.")
	fs.DurationVar(&o.SweepInterval, "orchestra.sweep-interval", o.SweepInterval, "Period of the idle session sweep.")
	fs.IntVar(&o.ApprovalTimeoutSec, "orchestra.approval-timeout-sec", o.ApprovalTimeoutSec, "Seconds to wait for a human approval decision.")
	fs.StringSliceVar(&o.ExtraReadOnlyPatterns, "orchestra.extra-read-only-patterns", o.ExtraReadOnlyPatterns, "Additional glob patterns for auto-approved tool names.")
	fs.StringVar(&o.StoreType, "orchestra.store-type", o.StoreType, "History persistence backend: inmemory or boltdb.")
	fs.StringVar(&o.BoltDBPath, "orchestra.boltdb-path", o.BoltDBPath, "BoltDB file path for agent history and metadata.")
}
