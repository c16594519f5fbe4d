package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, 15*time.Second, cfg.Server.HeartbeatInterval.Duration())
	assert.Equal(t, 2*time.Second, cfg.Server.DrainTimeout.Duration())

	assert.Equal(t, "http://localhost:3333", cfg.Ghostfolio.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Ghostfolio.Timeout.Duration())
	assert.Equal(t, 60*time.Second, cfg.Ghostfolio.TokenTTL.Duration())
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Ghostfolio.PolymarketURL)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.False(t, cfg.LLM.APIKey.IsSet())

	assert.Equal(t, 3, cfg.Engine.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.Engine.StepTimeout.Duration())
	assert.Equal(t, 64, cfg.Engine.TokenChunkSize)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "agentforge", cfg.Observability.ServiceName)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("GHOSTFOLIO_BASE_URL", "http://ghostfolio.internal:3333")
	t.Setenv("GHOSTFOLIO_ACCESS_TOKEN", "token-123")
	t.Setenv("GHOSTFOLIO_TIMEOUT", "20s")
	t.Setenv("ENGINE_MAX_STEPS", "5")
	t.Setenv("OBSERVABILITY_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "http://ghostfolio.internal:3333", cfg.Ghostfolio.BaseURL)
	assert.Equal(t, "token-123", cfg.Ghostfolio.AccessToken.Value())
	assert.Equal(t, 20*time.Second, cfg.Ghostfolio.Timeout.Duration())
	assert.Equal(t, 5, cfg.Engine.MaxSteps)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoad_YAMLWithEnvPrecedence(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := load([]byte(`
server:
  port: 6060
  shutdown_timeout: 5s
ghostfolio:
  base_url: http://file.example:3333
engine:
  step_timeout: 45s
`))
	require.NoError(t, err)

	// Environment wins over the file; file wins over defaults.
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "http://file.example:3333", cfg.Ghostfolio.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Engine.StepTimeout.Duration())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "port out of range"},
		{"missing base url", func(c *Config) { c.Ghostfolio.BaseURL = "" }, "base_url is required"},
		{"zero max steps", func(c *Config) { c.Engine.MaxSteps = 0 }, "max_steps"},
		{"bad provider", func(c *Config) { c.LLM.Provider = "anthropic" }, "unsupported llm provider"},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "verbose" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "invalid log format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	assert.NoError(t, valid().Validate())
}

func TestSecretRedaction(t *testing.T) {
	secret := Secret("sk-very-secret")

	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", secret))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", secret))
	assert.Equal(t, "sk-very-secret", secret.Value())

	encoded, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{Token: secret})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(encoded))

	assert.Equal(t, "", Secret("").String())
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}
