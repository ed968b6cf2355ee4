package config

import (
	"os"
	"testing"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	if err := os.Setenv(key, "8080"); err != nil {
		t.Fatalf("Setenv error: %v", err)
	}
	defer os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetEnvIntRejectsGarbage(t *testing.T) {
	const key = "TEST_INGEST_LIMIT"
	defer os.Unsetenv(key)

	_ = os.Setenv(key, "not-a-number")
	if got := getEnvInt(key, 50); got != 50 {
		t.Fatalf("getEnvInt with garbage = %d, want default 50", got)
	}

	_ = os.Setenv(key, "-5")
	if got := getEnvInt(key, 50); got != 50 {
		t.Fatalf("getEnvInt with negative = %d, want default 50", got)
	}

	_ = os.Setenv(key, "25")
	if got := getEnvInt(key, 50); got != 25 {
		t.Fatalf("getEnvInt = %d, want 25", got)
	}
}

func TestLoadReadsIngestionSettings(t *testing.T) {
	_ = os.Setenv("APP_PORT", "1234")
	_ = os.Setenv("INGEST_LIMIT", "100")
	_ = os.Setenv("ALLOW_DUPLICATE_VOTES", "true")
	defer func() {
		_ = os.Unsetenv("APP_PORT")
		_ = os.Unsetenv("INGEST_LIMIT")
		_ = os.Unsetenv("ALLOW_DUPLICATE_VOTES")
	}()

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.IngestLimit != 100 {
		t.Fatalf("IngestLimit = %d, want 100", cfg.IngestLimit)
	}
	if !cfg.AllowDuplicateVotes {
		t.Fatalf("AllowDuplicateVotes should be true")
	}
}
