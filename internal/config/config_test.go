package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.True(t, cfg.PrecomputeFallback)
	assert.Equal(t, 10, cfg.HistoryWindow)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PRECOMPUTE_FALLBACK", "false")
	t.Setenv("HISTORY_WINDOW", "4")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.False(t, cfg.PrecomputeFallback)
	assert.Equal(t, 4, cfg.HistoryWindow)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 60, cfg.RateLimitRequests, "invalid ints fall back to the default")
}

func TestLLMAPIKey(t *testing.T) {
	cfg := &Config{GeminiAPIKey: "g", AnthropicAPIKey: "a", OpenAIAPIKey: "o"}

	cfg.LLMProvider = "anthropic"
	assert.Equal(t, "a", cfg.LLMAPIKey())
	cfg.LLMProvider = "openai"
	assert.Equal(t, "o", cfg.LLMAPIKey())
	cfg.LLMProvider = "gemini"
	assert.Equal(t, "g", cfg.LLMAPIKey())
}

func TestLoadPrompts(t *testing.T) {
	prompts, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts(), prompts)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("persona: You are a terse shop clerk.\n"), 0o644))

	prompts, err = LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "You are a terse shop clerk.", prompts.Persona)
	assert.Equal(t, DefaultPrompts().IntentTemplate, prompts.IntentTemplate)

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
