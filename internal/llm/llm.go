// Package llm provides the model-backed router and synthesizer. Both are
// optional collaborators: the engine runs fully deterministic without them,
// and every model failure degrades to the keyword and summary fallbacks.
package llm

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Config selects and parameterizes the chat model.
type Config struct {
	// Provider names the backend. Only "openai" and OpenAI-compatible
	// endpoints are supported.
	Provider string

	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string

	// APIKey authenticates against the provider. Empty disables the LLM
	// layer entirely.
	APIKey string

	// Model is the chat model identifier.
	Model string

	// Temperature for routing calls stays at zero regardless; this value
	// applies to synthesis.
	Temperature float64

	// MaxTokens bounds a single completion.
	MaxTokens int
}

// Enabled reports whether the configuration can produce a model.
func (c Config) Enabled() bool {
	return c.APIKey != ""
}

func newModel(cfg Config) (llms.Model, error) {
	if !cfg.Enabled() {
		return nil, errors.New("llm: no API key configured")
	}
	if cfg.Provider != "" && cfg.Provider != "openai" {
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}
