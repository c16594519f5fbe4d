// Package config provides configuration loading for agentforge.
package config

import (
	"fmt"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Ghostfolio    GhostfolioConfig    `koanf:"ghostfolio"`
	LLM           LLMConfig           `koanf:"llm"`
	Engine        EngineConfig        `koanf:"engine"`
	NATS          NATSConfig          `koanf:"nats"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig configures the HTTP/SSE server.
type ServerConfig struct {
	Port              int      `koanf:"port"`
	ShutdownTimeout   Duration `koanf:"shutdown_timeout"`
	HeartbeatInterval Duration `koanf:"heartbeat_interval"`
	DrainTimeout      Duration `koanf:"drain_timeout"`
}

// GhostfolioConfig configures the upstream portfolio API client.
type GhostfolioConfig struct {
	BaseURL       string   `koanf:"base_url"`
	AccessToken   Secret   `koanf:"access_token"`
	Timeout       Duration `koanf:"timeout"`
	TokenTTL      Duration `koanf:"token_ttl"`
	PolymarketURL string   `koanf:"polymarket_url"`
}

// LLMConfig configures the optional model-backed router and synthesizer.
// An empty API key runs the daemon in deterministic mode.
type LLMConfig struct {
	Provider    string  `koanf:"provider"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      Secret  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// EngineConfig bounds turn execution.
type EngineConfig struct {
	MaxSteps       int      `koanf:"max_steps"`
	MaxRetries     int      `koanf:"max_retries"`
	StepTimeout    Duration `koanf:"step_timeout"`
	TokenChunkSize int      `koanf:"token_chunk_size"`
}

// NATSConfig configures the event transport.
type NATSConfig struct {
	URL            string   `koanf:"url"`
	ConnectTimeout Duration `koanf:"connect_timeout"`
}

// ObservabilityConfig configures logging and metrics.
type ObservabilityConfig struct {
	ServiceName    string `koanf:"service_name"`
	LogLevel       string `koanf:"log_level"`
	LogFormat      string `koanf:"log_format"`
	MetricsEnabled bool   `koanf:"metrics_enabled"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.HeartbeatInterval == 0 {
		cfg.Server.HeartbeatInterval = Duration(15 * time.Second)
	}
	if cfg.Server.DrainTimeout == 0 {
		cfg.Server.DrainTimeout = Duration(2 * time.Second)
	}

	if cfg.Ghostfolio.BaseURL == "" {
		cfg.Ghostfolio.BaseURL = "http://localhost:3333"
	}
	if cfg.Ghostfolio.Timeout == 0 {
		cfg.Ghostfolio.Timeout = Duration(15 * time.Second)
	}
	if cfg.Ghostfolio.TokenTTL == 0 {
		cfg.Ghostfolio.TokenTTL = Duration(60 * time.Second)
	}
	if cfg.Ghostfolio.PolymarketURL == "" {
		cfg.Ghostfolio.PolymarketURL = "https://gamma-api.polymarket.com"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 512
	}

	if cfg.Engine.MaxSteps == 0 {
		cfg.Engine.MaxSteps = 3
	}
	if cfg.Engine.StepTimeout == 0 {
		cfg.Engine.StepTimeout = Duration(30 * time.Second)
	}
	if cfg.Engine.TokenChunkSize == 0 {
		cfg.Engine.TokenChunkSize = 64
	}
	// MaxRetries zero is meaningful (no retries); clamp negatives back to
	// the default.
	if cfg.Engine.MaxRetries < 0 {
		cfg.Engine.MaxRetries = 1
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.NATS.ConnectTimeout == 0 {
		cfg.NATS.ConnectTimeout = Duration(5 * time.Second)
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "agentforge"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Ghostfolio.BaseURL == "" {
		return fmt.Errorf("ghostfolio base_url is required")
	}
	if c.Engine.MaxSteps < 1 {
		return fmt.Errorf("engine max_steps must be at least 1: %d", c.Engine.MaxSteps)
	}
	if c.Engine.StepTimeout.Duration() <= 0 {
		return fmt.Errorf("engine step_timeout must be positive")
	}
	switch c.LLM.Provider {
	case "", "openai":
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Observability.LogFormat)
	}
	return nil
}
