package modelhub

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/mellis-dev/conclave/pkg/logger"
)

// Config holds the configuration for the ModelHub module.
// Follows K8S-style: Config → Complete() → New(ctx).
type Config struct {
	// Judge powers tier-2 supervision. Optional: nil or disabled skips
	// that tier.
	Judge *ModelConfig

	// Preface powers agent preface generation. Optional.
	Preface *ModelConfig
}

// CompletedConfig is the validated and completed configuration.
type CompletedConfig struct {
	*Config
}

// Complete fills defaults.
func (c *Config) Complete() CompletedConfig {
	return CompletedConfig{c}
}

// Module exposes the constructed chat models. Either may be nil when the
// corresponding config section is absent.
type Module struct {
	Judge   model.BaseChatModel
	Preface model.BaseChatModel
}

// New creates the ModelHub module from a completed config.
func (c CompletedConfig) New(ctx context.Context) (*Module, error) {
	m := &Module{}

	if c.Judge.Enabled() {
		judge, err := NewChatModel(ctx, c.Judge)
		if err != nil {
			return nil, fmt.Errorf("failed to build judge model: %w", err)
		}
		m.Judge = judge
		logger.Info("[ModelHub] judge model ready (provider=%s, model=%s)", c.Judge.Provider, c.Judge.Model)
	} else {
		logger.Info("[ModelHub] no judge model configured, tier-2 supervision disabled")
	}

	if c.Preface.Enabled() {
		preface, err := NewChatModel(ctx, c.Preface)
		if err != nil {
			return nil, fmt.Errorf("failed to build preface model: %w", err)
		}
		m.Preface = preface
		logger.Info("[ModelHub] preface model ready (provider=%s, model=%s)", c.Preface.Provider, c.Preface.Model)
	}

	return m, nil
}
