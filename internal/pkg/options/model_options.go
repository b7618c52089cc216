package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ModelOptions configures the chat models used by supervision and
// preface generation. Both endpoints are optional: an empty model id
// disables the corresponding feature.
type ModelOptions struct {
	Judge   *ModelEndpoint `json:"judge"   mapstructure:"judge"`
	Preface *ModelEndpoint `json:"preface" mapstructure:"preface"`
}

// ModelEndpoint describes one chat model endpoint.
type ModelEndpoint struct {
	Provider    string   `json:"provider"    mapstructure:"provider"`
	Model       string   `json:"model"       mapstructure:"model"`
	APIKey      string   `json:"api-key"     mapstructure:"api-key"`
	BaseURL     string   `json:"base-url"    mapstructure:"base-url"`
	MaxTokens   int      `json:"max-tokens"  mapstructure:"max-tokens"`
	Temperature *float32 `json:"temperature" mapstructure:"temperature"`
	TopP        *float32 `json:"top-p"       mapstructure:"top-p"`
}

func NewModelOptions() *ModelOptions {
	return &ModelOptions{
		Judge:   &ModelEndpoint{Provider: "openai", APIKey: "${OPENAI_API_KEY}"},
		Preface: &ModelEndpoint{Provider: "openai", APIKey: "${OPENAI_API_KEY}"},
	}
}

func (o *ModelOptions) Validate() []error {
	var errs []error
	errs = append(errs, o.Judge.validate("judge")...)
	errs = append(errs, o.Preface.validate("preface")...)
	return errs
}

func (e *ModelEndpoint) validate(name string) []error {
	if e == nil || e.Model == "" {
		return nil
	}

	var errs []error
	switch e.Provider {
	case "", "openai", "claude":
	default:
		errs = append(errs, fmt.Errorf("models.%s: unknown provider %q, must be 'openai' or 'claude'", name, e.Provider))
	}
	if e.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("models.%s: max-tokens must be non-negative", name))
	}
	return errs
}

func (o *ModelOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Judge.Provider, "models.judge.provider", o.Judge.Provider, "Judge model provider: 'openai' or 'claude'.")
	fs.StringVar(&o.Judge.Model, "models.judge.model", o.Judge.Model, "Judge model ID; empty disables model supervision.")
	fs.StringVar(&o.Judge.BaseURL, "models.judge.base-url", o.Judge.BaseURL, "Judge model endpoint override.")
	fs.StringVar(&o.Preface.Provider, "models.preface.provider", o.Preface.Provider, "Preface model provider: 'openai' or 'claude'.")
	fs.StringVar(&o.Preface.Model, "models.preface.model", o.Preface.Model, "Preface model ID; empty disables preface generation.")
	fs.StringVar(&o.Preface.BaseURL, "models.preface.base-url", o.Preface.BaseURL, "Preface model endpoint override.")
}
