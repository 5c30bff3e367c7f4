package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "{}\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":7180" {
		t.Fatalf("listen = %q", cfg.ListenAddress)
	}
	if cfg.ShutdownGrace.Duration != 10*time.Second {
		t.Fatalf("shutdown grace = %v", cfg.ShutdownGrace.Duration)
	}
	if cfg.Admin.ClockSkew.Duration != 2*time.Minute {
		t.Fatalf("clock skew = %v", cfg.Admin.ClockSkew.Duration)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	body := `
listen: ":9999"
database: "/tmp/audit.sqlite"
environment: "prod"
shutdown_grace: "30s"
admin:
  enabled: true
  hmac_secret: "topsecret"
  issuer: "ops"
  audience: "relayd"
  clock_skew: "1m"
`
	cfg, err := Load(writeFile(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownGrace.Duration != 30*time.Second {
		t.Fatalf("shutdown grace = %v", cfg.ShutdownGrace.Duration)
	}
	if cfg.Admin.ClockSkew.Duration != time.Minute {
		t.Fatalf("clock skew = %v", cfg.Admin.ClockSkew.Duration)
	}
	if !cfg.Admin.Enabled || cfg.Admin.Issuer != "ops" {
		t.Fatalf("admin config = %+v", cfg.Admin)
	}
}

func TestLoadRejectsAdminWithoutSecret(t *testing.T) {
	body := `
admin:
  enabled: true
`
	if _, err := Load(writeFile(t, body)); err == nil {
		t.Fatal("expected error when admin auth lacks a secret")
	}
}
