package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TICKET_API_BASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("VIEW_MAX_IMAGE_BYTES", "")
	t.Setenv("REMARK_ALLOW_RAW_HTML", "")
	t.Setenv("APP_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "https://namami-infotech.com/ITAM/api/support" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty", cfg.Redis.Addr)
	}
	if cfg.View.MaxImageBytes != 5<<20 {
		t.Errorf("MaxImageBytes = %d", cfg.View.MaxImageBytes)
	}
	if !cfg.View.AllowRawHTML {
		t.Error("AllowRawHTML should default to true")
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", cfg.App.Addr())
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticketdesk.env")
	content := "TICKET_API_TIMEOUT_SECONDS=3\nVIEW_TTL_MINUTES=5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set.
	t.Setenv("TICKET_API_TIMEOUT_SECONDS", "")
	os.Unsetenv("TICKET_API_TIMEOUT_SECONDS")
	t.Setenv("VIEW_TTL_MINUTES", "")
	os.Unsetenv("VIEW_TTL_MINUTES")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Upstream.Timeout(); got != 3*time.Second {
		t.Errorf("Timeout = %v", got)
	}
	if got := cfg.View.TTL(); got != 5*time.Minute {
		t.Errorf("TTL = %v", got)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid REDIS_DB")
	}
}

func TestDurationFallbacks(t *testing.T) {
	if got := (AuthConfig{}).SessionTTL(); got != 8*time.Hour {
		t.Errorf("SessionTTL = %v", got)
	}
	if got := (UpstreamConfig{}).Timeout(); got != 0 {
		t.Errorf("Timeout = %v", got)
	}
	if got := (AppConfig{RequestTimeoutSeconds: 2}).RequestTimeout(); got != 2*time.Second {
		t.Errorf("RequestTimeout = %v", got)
	}
}
