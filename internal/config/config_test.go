package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	os.Setenv("API_BASE_URL", "https://api.example.test/")
	defer os.Unsetenv("API_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.APIBaseURL != "https://api.example.test" {
		t.Errorf("Expected trailing slash trimmed, got '%s'", cfg.APIBaseURL)
	}

	if cfg.ProbeURL != "https://api.example.test/health" {
		t.Errorf("Expected derived ProbeURL, got '%s'", cfg.ProbeURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("API_BASE_URL")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when API_BASE_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("API_BASE_URL", "https://api.example.test")
	defer os.Unsetenv("API_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.RecordMaxSeconds != 30 {
		t.Errorf("Expected default RecordMaxSeconds 30, got %d", cfg.RecordMaxSeconds)
	}

	if cfg.RecordDeadline() != 30*time.Second {
		t.Errorf("Expected RecordDeadline 30s, got %v", cfg.RecordDeadline())
	}

	if cfg.TranscribeLanguage != "vi" {
		t.Errorf("Expected default TranscribeLanguage 'vi', got '%s'", cfg.TranscribeLanguage)
	}

	if cfg.TranscribeModel != "whisper-1" {
		t.Errorf("Expected default TranscribeModel 'whisper-1', got '%s'", cfg.TranscribeModel)
	}

	if cfg.SessionCap != 50 {
		t.Errorf("Expected default SessionCap 50, got %d", cfg.SessionCap)
	}

	if cfg.ChatTimeout != 30 {
		t.Errorf("Expected default ChatTimeout 30, got %d", cfg.ChatTimeout)
	}

	if cfg.ProbeTimeout() != 3*time.Second {
		t.Errorf("Expected default ProbeTimeout 3s, got %v", cfg.ProbeTimeout())
	}
}

func TestLoad_InvalidDeadline(t *testing.T) {
	os.Setenv("API_BASE_URL", "https://api.example.test")
	os.Setenv("RECORD_MAX_SECONDS", "0")
	defer os.Unsetenv("API_BASE_URL")
	defer os.Unsetenv("RECORD_MAX_SECONDS")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for zero RECORD_MAX_SECONDS")
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	os.Setenv("API_BASE_URL", "https://api.example.test")
	defer os.Unsetenv("API_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}

	if cfg.StreamDialAttempts != 3 {
		t.Errorf("Expected default StreamDialAttempts 3, got %d", cfg.StreamDialAttempts)
	}
}

func TestConfig_ExtraModerationTerms(t *testing.T) {
	os.Setenv("API_BASE_URL", "https://api.example.test")
	os.Setenv("MODERATION_TERMS", " xấu xa , bạo lực ,,")
	defer os.Unsetenv("API_BASE_URL")
	defer os.Unsetenv("MODERATION_TERMS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	terms := cfg.ExtraModerationTerms()
	if len(terms) != 2 {
		t.Fatalf("Expected 2 terms, got %d: %v", len(terms), terms)
	}
	if terms[0] != "xấu xa" || terms[1] != "bạo lực" {
		t.Errorf("Unexpected terms: %v", terms)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
