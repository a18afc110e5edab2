package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/finops-assistant-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "LLM_TIMEOUT", "RATE_STALENESS", "DB_DRIVER", "JWT_SECRET"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.LLMTimeout != 30*time.Second {
		t.Errorf("expected 30s LLM timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.RateStaleness != 24*time.Hour {
		t.Errorf("expected 24h staleness, got %s", cfg.RateStaleness)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.DBDriver)
	}
	if cfg.JWTSecret != "" {
		t.Error("auth should be disabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NARRATIVE_RETRY_DELAY", "500ms")
	t.Setenv("QUERY_MAX_ROWS", "not-a-number")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.NarrativeDelay != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %s", cfg.NarrativeDelay)
	}
	if cfg.QueryMaxRows != 500 {
		t.Errorf("invalid value should fall back to default, got %d", cfg.QueryMaxRows)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FINOPS_TEST_A=from-file\nFINOPS_TEST_B=\"quoted\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINOPS_TEST_A", "from-env")
	t.Setenv("FINOPS_TEST_B", "")
	os.Unsetenv("FINOPS_TEST_B")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("FINOPS_TEST_A"); got != "from-env" {
		t.Errorf("environment must win, got %q", got)
	}
	if got := os.Getenv("FINOPS_TEST_B"); got != "quoted" {
		t.Errorf("expected value from file, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
