// Package modelhub constructs Eino chat models from provider configuration.
//
// The orchestration engine treats models as opaque (model.BaseChatModel);
// modelhub is the single place that knows how to turn a provider name plus
// credentials into a concrete client. Two providers are carried: OpenAI
// (and any OpenAI-compatible endpoint via base-url) and Anthropic Claude.
package modelhub

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/gg/gptr"
	einoClaude "github.com/cloudwego/eino-ext/components/model/claude"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Provider identifiers accepted by NewChatModel.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

const defaultMaxTokens = 4096

// ModelConfig describes one chat model endpoint.
type ModelConfig struct {
	// Provider selects the client implementation: "openai" or "claude".
	Provider string

	// Model is the provider-side model identifier.
	Model string

	// APIKey authenticates requests. Values of the form "${ENV_NAME}" or
	// "{ENV_NAME}" are resolved from the environment.
	APIKey string

	// BaseURL overrides the provider's default endpoint. Optional.
	BaseURL string

	// MaxTokens caps the response length (default: 4096).
	MaxTokens int

	// Temperature and TopP are passed through when non-nil.
	Temperature *float32
	TopP        *float32
}

// Enabled reports whether the config describes a usable model.
func (c *ModelConfig) Enabled() bool {
	return c != nil && c.Model != ""
}

// NewChatModel builds a chat model client from cfg.
func NewChatModel(ctx context.Context, cfg *ModelConfig) (model.BaseChatModel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("model config has no model id")
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		return newOpenAIChatModel(ctx, cfg)
	case ProviderClaude:
		return newClaudeChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func newOpenAIChatModel(ctx context.Context, cfg *ModelConfig) (model.BaseChatModel, error) {
	conf := &einoOpenAI.ChatModelConfig{
		Model:     cfg.Model,
		APIKey:    ResolveEnvValue(cfg.APIKey),
		MaxTokens: gptr.Of(maxTokensOrDefault(cfg)),
	}

	// Set BaseURL only for non-default OpenAI endpoints.
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	if cfg.Temperature != nil {
		conf.Temperature = cfg.Temperature
	}
	if cfg.TopP != nil {
		conf.TopP = cfg.TopP
	}

	return einoOpenAI.NewChatModel(ctx, conf)
}

func newClaudeChatModel(ctx context.Context, cfg *ModelConfig) (model.BaseChatModel, error) {
	conf := &einoClaude.Config{
		APIKey:    ResolveEnvValue(cfg.APIKey),
		Model:     cfg.Model,
		MaxTokens: maxTokensOrDefault(cfg),
	}

	if cfg.BaseURL != "" {
		conf.BaseURL = &cfg.BaseURL
	}
	if cfg.Temperature != nil {
		conf.Temperature = cfg.Temperature
	}
	if cfg.TopP != nil {
		conf.TopP = cfg.TopP
	}

	return einoClaude.NewChatModel(ctx, conf)
}

func maxTokensOrDefault(cfg *ModelConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return defaultMaxTokens
}

// ResolveEnvValue expands "{NAME}" / "${NAME}" placeholders from the
// environment. Plain values pass through unchanged.
func ResolveEnvValue(value string) string {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(v, "${"), "}"))
	}
	if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(v, "{"), "}"))
	}
	return value
}
