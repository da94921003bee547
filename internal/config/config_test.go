package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Pagination.DefaultLimit != 5 {
		t.Fatalf("expected default limit 5, got %d", cfg.Pagination.DefaultLimit)
	}
	if cfg.SignupCoins("worker") != 10 || cfg.SignupCoins("buyer") != 50 {
		t.Fatalf("unexpected signup coins: %v", cfg.Accounts.SignupCoins)
	}
	if cfg.SignupCoins("admin") != 0 {
		t.Fatalf("admin accounts should not receive signup coins")
	}
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("pagination:\n  default_limit: 10\n  max_limit: 20\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Pagination.DefaultLimit != 10 || cfg.Pagination.MaxLimit != 20 {
		t.Fatalf("pagination not applied: %+v", cfg.Pagination)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.TimeoutSeconds != 5 {
		t.Fatalf("store defaults lost: %+v", cfg.Store)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"driver":   "store:\n  driver: mysql\n",
		"postgres": "store:\n  driver: postgres\n",
		"limit":    "pagination:\n  default_limit: 30\n  max_limit: 10\n",
		"level":    "log:\n  level: loud\n",
		"webhook":  "webhooks:\n  - events: [submission.approved]\n",
		"coins":    "accounts:\n  signup_coins:\n    admin: 5\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Server.BasePath != "/v1" {
		t.Fatalf("expected default base path, got %s", cfg.Server.BasePath)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	doc := "server:\n  addr: 0.0.0.0:9000\nseed:\n  admin_email: root@example.com\n"
	if err := os.WriteFile(filepath.Join(dir, "marketplace.yml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" || cfg.Seed.AdminEmail != "root@example.com" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}
