package app

import (
	"testing"
	"time"

	_ "github.com/quizroom/quizroom/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessCacheTTL != 2*time.Minute || cfg.AccessVerifyTimeout != 5*time.Second {
		t.Fatalf("unexpected access defaults: %+v", cfg)
	}
	if cfg.AuditMode != AuditModeLog || cfg.AuditRetention != 90*24*time.Hour {
		t.Fatalf("unexpected audit defaults: %+v", cfg)
	}
	if cfg.IsProduction() {
		t.Fatalf("default env must not be production")
	}
	if opts := cfg.PoolOptions(); opts.MaxConns != 10 || opts.MaxConnLifetime != time.Hour {
		t.Fatalf("unexpected pool defaults: %+v", opts)
	}
}

func TestLoadConfigRejectsInvalidCombinations(t *testing.T) {
	cases := map[string]map[string]string{
		"remote without url": {"AUDIT_MODE": "remote"},
		"unknown mode":       {"AUDIT_MODE": "kafka"},
		"zero cache":         {"ACCESS_CACHE_SIZE": "0"},
		"negative pool":      {"PG_MAX_CONNS": "-1"},
		"prod without token": {"APP_ENV": "production"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SESSION_SECRET", "secret")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestInTestMode(t *testing.T) {
	if !InTestMode() {
		t.Fatalf("guard package should enable test mode")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG").String() != "DEBUG" || parseLevel("bogus").String() != "INFO" {
		t.Fatalf("unexpected level parsing")
	}
}
