// Package config provides environment configuration for the shopping assistant.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Session tokens
	JWTSecret  string
	SessionTTL time.Duration

	// Commerce backend
	BackendURL     string
	BackendTimeout time.Duration

	// LLM settings
	LLMProvider     string
	LLMModel        string
	GeminiAPIKey    string
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Assistant behaviour
	PromptsFile        string
	PrecomputeFallback bool
	HistoryWindow      int

	// Storage
	StorageBackend string
	SQLitePath     string

	// NATS settings
	NATSURL        string
	NATSCAFile     string
	NATSCertFile   string
	NATSKeyFile    string
	NATSToken      string
	JournalEnabled bool

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Sessions
		JWTSecret:  getEnv("JWT_SECRET", "development-secret-change-in-production"),
		SessionTTL: getDurationEnv("SESSION_TTL", 30*24*time.Hour),

		// Commerce backend
		BackendURL:     getEnv("BACKEND_URL", "https://ai-agent-backend-18ql.onrender.com"),
		BackendTimeout: getDurationEnv("BACKEND_TIMEOUT", 0),

		// LLM
		LLMProvider:     getEnv("LLM_PROVIDER", "gemini"),
		LLMModel:        getEnv("LLM_MODEL", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),

		// Assistant
		PromptsFile:        getEnv("PROMPTS_FILE", ""),
		PrecomputeFallback: getBoolEnv("PRECOMPUTE_FALLBACK", true),
		HistoryWindow:      getIntEnv("HISTORY_WINDOW", 10),

		// Storage
		StorageBackend: getEnv("STORAGE_BACKEND", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "shopchat.db"),

		// NATS
		NATSURL:        getEnv("NATS_URL", ""),
		NATSCAFile:     getEnv("NATS_CA_FILE", ""),
		NATSCertFile:   getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:    getEnv("NATS_KEY_FILE", ""),
		NATSToken:      getEnv("NATS_TOKEN", ""),
		JournalEnabled: getBoolEnv("JOURNAL_ENABLED", false),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// LLMAPIKey returns the API key for the configured provider.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	default:
		return c.GeminiAPIKey
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
