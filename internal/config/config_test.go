package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port: got %q, want 8080", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 1*time.Hour {
		t.Errorf("TokenTTL: got %v, want 1h", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.MaxLoginAttempts != 5 {
		t.Errorf("MaxLoginAttempts: got %d, want 5", cfg.Auth.MaxLoginAttempts)
	}
	if cfg.Auth.LoginBlockDuration != 15*time.Minute {
		t.Errorf("LoginBlockDuration: got %v, want 15m", cfg.Auth.LoginBlockDuration)
	}
	if cfg.Auth.AdminUsername != "admin" {
		t.Errorf("AdminUsername: got %q, want admin", cfg.Auth.AdminUsername)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("rate limiting should be enabled by default")
	}
	if cfg.RateLimit.MaxRequests != 100 || cfg.RateLimit.Window != 60*time.Second {
		t.Errorf("rate limit defaults: got %d/%v, want 100/60s",
			cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	}
	if cfg.Access.WhitelistEnabled {
		t.Error("whitelist mode should be disabled by default")
	}
	if cfg.Headers.EnableHSTS {
		t.Error("HSTS should be off by default, the appliance often serves plain HTTP")
	}
	if !cfg.Headers.EnableCSP {
		t.Error("CSP should be on by default")
	}
	if cfg.Audit.LogPath != "hostberry-audit.log" {
		t.Errorf("LogPath: got %q", cfg.Audit.LogPath)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_SECRET", "a-sufficiently-long-test-secret")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("LOGIN_BLOCK_DURATION", "5m")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "20")
	t.Setenv("IP_BLACKLIST", "10.0.0.1, 10.0.0.2")
	t.Setenv("IP_WHITELIST_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port: got %q", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 30*time.Minute {
		t.Errorf("TokenTTL: got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.MaxLoginAttempts != 3 {
		t.Errorf("MaxLoginAttempts: got %d", cfg.Auth.MaxLoginAttempts)
	}
	if len(cfg.Access.Blacklist) != 2 || cfg.Access.Blacklist[0] != "10.0.0.1" {
		t.Errorf("Blacklist: got %v", cfg.Access.Blacklist)
	}
	if !cfg.Access.WhitelistEnabled {
		t.Error("WhitelistEnabled should be true")
	}
}

func TestLoad_EmptyTokenSecretIsAllowed(t *testing.T) {
	// An unset secret means an ephemeral one is generated at startup
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.TokenSecret != "" {
		t.Errorf("TokenSecret: got %q, want empty", cfg.Auth.TokenSecret)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero login attempts", "MAX_LOGIN_ATTEMPTS", "0"},
		{"negative block duration", "LOGIN_BLOCK_DURATION", "-1m"},
		{"zero rate limit", "RATE_LIMIT_MAX_REQUESTS", "0"},
		{"short token secret", "TOKEN_SECRET", "short"},
		{"weak token secret", "TOKEN_SECRET", "changeme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() should reject %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestValidateTokenSecret_ProductionMinimum(t *testing.T) {
	// 16 characters passes in development but not in production
	secret := "sixteen-chars-ok"

	if err := validateTokenSecret(secret, "development"); err != nil {
		t.Errorf("development: unexpected error %v", err)
	}
	if err := validateTokenSecret(secret, "production"); err == nil {
		t.Error("production should require 32 characters")
	}
	if err := validateTokenSecret(secret+secret, "production"); err != nil {
		t.Errorf("production with 32 chars: unexpected error %v", err)
	}
}
