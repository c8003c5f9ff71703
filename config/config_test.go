package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"OTLP_RECEIVER_PORT", "LOG_LEVEL", "SESSION_TIMEOUT", "MAX_REQUEST_SIZE", "BRIDGE_CONFIG_FILE", "API_KEY", "REDIS_URL"} {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.Addr != ":4318" {
		t.Fatalf("expected default addr :4318, got %s", cfg.Addr)
	}
	if cfg.SessionTimeout != time.Hour {
		t.Fatalf("expected default session timeout 1h, got %s", cfg.SessionTimeout)
	}
	if cfg.MaxBodyBytes != 10485760 {
		t.Fatalf("expected default max body bytes 10485760, got %d", cfg.MaxBodyBytes)
	}
	if cfg.APIKey != "" {
		t.Fatalf("expected no api key by default, got %q", cfg.APIKey)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OTLP_RECEIVER_PORT", "9000")
	t.Setenv("SESSION_TIMEOUT", "60000")
	t.Setenv("API_KEY", "shh")

	cfg := Load()

	if cfg.Addr != ":9000" {
		t.Fatalf("expected addr :9000, got %s", cfg.Addr)
	}
	if cfg.SessionTimeout != 60*time.Second {
		t.Fatalf("expected session timeout 60s, got %s", cfg.SessionTimeout)
	}
	if cfg.APIKey != "shh" {
		t.Fatalf("expected api key shh, got %q", cfg.APIKey)
	}
}

func TestHotReloadFields(t *testing.T) {
	cfg := Load()
	initial := cfg.HotSessionTimeout()
	if initial != cfg.SessionTimeout {
		t.Fatalf("expected hot session timeout to start equal to SessionTimeout")
	}
}

func TestIsDevelopmentProduction(t *testing.T) {
	cfg := &Config{Env: "development"}
	if !cfg.IsDevelopment() || cfg.IsProduction() {
		t.Fatal("expected development env to report IsDevelopment true")
	}
	cfg.Env = "production"
	if cfg.IsDevelopment() || !cfg.IsProduction() {
		t.Fatal("expected production env to report IsProduction true")
	}
}
