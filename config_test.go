package authcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Session.TokenLifetime != 8*time.Hour {
		t.Fatalf("token lifetime = %v, want 8h", cfg.Session.TokenLifetime)
	}
	if cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.Duration != 30*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
}

func TestCountdownForRole(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		role Role
		want time.Duration
	}{
		{RoleUser, 480 * time.Minute},
		{RoleAdmin, 120 * time.Minute},
		{RoleSuperAdmin, 60 * time.Minute},
		{Role(0), 480 * time.Minute},
	}
	for _, tc := range cases {
		if got := cfg.Session.CountdownForRole(tc.role); got != tc.want {
			t.Fatalf("countdown for %v = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestEscalationDurationForRole(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.Escalation.DurationForRole(RoleSuperAdmin); got != time.Minute {
		t.Fatalf("superadmin window = %v, want 1m", got)
	}
	if got := cfg.Escalation.DurationForRole(RoleAdmin); got != 5*time.Minute {
		t.Fatalf("admin window = %v, want 5m", got)
	}
	if got := cfg.Escalation.DurationForRole(RoleUser); got != 5*time.Minute {
		t.Fatalf("user window = %v, want 5m", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }},
		{"zero lockout duration", func(c *Config) { c.Lockout.Duration = 0 }},
		{"zero countdown", func(c *Config) { c.Session.UserCountdown = 0 }},
		{"short challenge ttl", func(c *Config) { c.Challenge.TTL = time.Minute }},
		{"short backup codes", func(c *Config) { c.BackupCodes.Length = 4 }},
		{"zero code digits", func(c *Config) { c.OneTimeCode.Digits = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authcore.yaml")

	data := []byte(`
session:
  superadmin_countdown: 45m
lockout:
  max_attempts: 3
totp:
  issuer: "Example Scalehouse"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Session.SuperAdminCountdown != 45*time.Minute {
		t.Fatalf("superadmin countdown = %v, want 45m", cfg.Session.SuperAdminCountdown)
	}
	if cfg.Lockout.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.Lockout.MaxAttempts)
	}
	if cfg.TOTP.Issuer != "Example Scalehouse" {
		t.Fatalf("issuer = %q", cfg.TOTP.Issuer)
	}

	// Values the file does not mention keep their defaults.
	if cfg.Session.AdminCountdown != 120*time.Minute {
		t.Fatalf("admin countdown = %v, want default 120m", cfg.Session.AdminCountdown)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
