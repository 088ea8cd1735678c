package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voicechat session core
type Config struct {
	// Local observability server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Backend API configuration
	APIBaseURL string `envconfig:"API_BASE_URL" required:"true"` // e.g. https://api.careloop.health
	APIToken   string `envconfig:"API_TOKEN" default:""`         // Bearer token, optional for local backends

	// Liveness probe gating recording sessions
	ProbeURL       string `envconfig:"PROBE_URL" default:""` // Defaults to API_BASE_URL + /health
	ProbeTimeoutMs int    `envconfig:"PROBE_TIMEOUT_MS" default:"3000"`

	// Recording configuration
	RecordMaxSeconds int `envconfig:"RECORD_MAX_SECONDS" default:"30"` // Wall-clock auto-stop deadline

	// Transcription configuration
	TranscribeLanguage  string `envconfig:"TRANSCRIBE_LANGUAGE" default:"vi"`     // Language code (vi, en, etc.)
	TranscribeModel     string `envconfig:"TRANSCRIBE_MODEL" default:"whisper-1"` // Speech-to-text model
	TranscribeTimeout   int    `envconfig:"TRANSCRIBE_TIMEOUT" default:"60"`      // seconds
	StreamDialAttempts  int    `envconfig:"STREAM_DIAL_ATTEMPTS" default:"3"`     // Websocket fallback dial attempts
	StreamDialBackoffMs int    `envconfig:"STREAM_DIAL_BACKOFF_MS" default:"500"` // Backoff between dial attempts

	// Chat configuration
	ChatTimeout     int    `envconfig:"CHAT_TIMEOUT" default:"30"`    // seconds
	HistoryTimeout  int    `envconfig:"HISTORY_TIMEOUT" default:"15"` // seconds
	HistoryLimit    int    `envconfig:"HISTORY_LIMIT" default:"50"`
	ModerationTerms string `envconfig:"MODERATION_TERMS" default:""` // Comma-separated extra banned terms

	// Session catalog configuration
	CachePath      string `envconfig:"CACHE_PATH" default:""` // Defaults to ~/.voicechat/sessions.json
	SessionCap     int    `envconfig:"SESSION_CAP" default:"50"`
	SessionTimeout int    `envconfig:"SESSION_TIMEOUT" default:"15"` // seconds, session CRUD calls

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.ProbeURL == "" {
		cfg.ProbeURL = cfg.APIBaseURL + "/health"
	}
	if cfg.RecordMaxSeconds <= 0 {
		return nil, fmt.Errorf("RECORD_MAX_SECONDS must be positive, got %d", cfg.RecordMaxSeconds)
	}
	if cfg.SessionCap <= 0 {
		return nil, fmt.Errorf("SESSION_CAP must be positive, got %d", cfg.SessionCap)
	}

	return &cfg, nil
}

// RecordDeadline returns the wall-clock auto-stop window for recordings
func (c *Config) RecordDeadline() time.Duration {
	return time.Duration(c.RecordMaxSeconds) * time.Second
}

// ProbeTimeout returns the bounded timeout for the liveness probe
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// ExtraModerationTerms parses the configured additional banned terms
func (c *Config) ExtraModerationTerms() []string {
	if c.ModerationTerms == "" {
		return nil
	}
	parts := strings.Split(c.ModerationTerms, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			terms = append(terms, trimmed)
		}
	}
	return terms
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
