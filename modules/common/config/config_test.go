package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "")
	t.Setenv("GEMINI_API_KEY", "key-A")
	t.Setenv("ENGINE_ORDER", "")
	t.Setenv("QUOTA_COOLDOWN", "")
	t.Setenv("EXPIRY_DAYS", "")
	t.Setenv("PROMPT_HISTORY_LIMIT", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ANIMATION_POLL_INTERVAL", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := FromEnv()

	assert.Equal(t, []string{"key-A"}, cfg.GeminiAPIKeys)
	assert.Equal(t, []string{"gemini", "grok"}, cfg.EngineOrder)
	assert.Equal(t, 60*time.Second, cfg.QuotaCooldown)
	assert.Equal(t, 10*time.Second, cfg.AnimationPollInterval)
	assert.Equal(t, 90*24*time.Hour, cfg.ExpiryWindow())
	assert.Equal(t, 50, cfg.PromptHistoryLimit)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.NoError(t, cfg.validate())
}

func TestFromEnv_KeyListKeepsCase(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", " AbC , dEf ")
	t.Setenv("ENGINE_ORDER", "Gemini, FLUX-SCHNELL")
	t.Setenv("QUOTA_COOLDOWN", "90")

	cfg := FromEnv()

	assert.Equal(t, []string{"AbC", "dEf"}, cfg.GeminiAPIKeys)
	assert.Equal(t, []string{"gemini", "flux-schnell"}, cfg.EngineOrder)
	assert.Equal(t, 90*time.Second, cfg.QuotaCooldown)
}

func TestFromEnv_ZeroPollIntervalFailsValidation(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key-A")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ENGINE_ORDER", "")
	t.Setenv("ANIMATION_POLL_INTERVAL", "0")

	cfg := FromEnv()

	assert.Zero(t, cfg.AnimationPollInterval)
	assert.ErrorContains(t, cfg.validate(), "ANIMATION_POLL_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"no credentials", func(c *Config) { c.GeminiAPIKeys = nil }, false},
		{"vertex only", func(c *Config) { c.GeminiAPIKeys = nil; c.VertexProject = "p" }, true},
		{"unknown engine", func(c *Config) { c.EngineOrder = []string{"gemini", "dalle"} }, false},
		{"empty engine order", func(c *Config) { c.EngineOrder = nil }, false},
		{"supabase without key", func(c *Config) { c.StoreBackend = StoreBackendSupabase; c.SupabaseURL = "http://x" }, false},
		{"unknown backend", func(c *Config) { c.StoreBackend = "sqlite" }, false},
		{"zero poll interval", func(c *Config) { c.AnimationPollInterval = 0 }, false},
		{"negative poll interval", func(c *Config) { c.AnimationPollInterval = -time.Second }, false},
		{"zero cooldown", func(c *Config) { c.QuotaCooldown = 0 }, false},
		{"no animation workers", func(c *Config) { c.AnimationWorkers = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				GeminiAPIKeys:         []string{"k"},
				StoreBackend:          StoreBackendMemory,
				EngineOrder:           []string{"gemini"},
				ExpiryDays:            90,
				PromptHistoryLimit:    50,
				QuotaCooldown:         time.Minute,
				AnimationPollInterval: 10 * time.Second,
				AnimationWorkers:      2,
			}
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
