package app

import (
	"context"
	"testing"

	"doandearn/internal/config"
	"doandearn/internal/domain"
)

func TestOpenMigratesAndSeedsAdmin(t *testing.T) {
	cfg := config.Default()
	cfg.Seed.AdminEmail = "root@example.com"
	ctx := context.Background()
	rt, err := Open(ctx, t.TempDir(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	u, err := rt.Engine.GetAccount(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("admin not seeded: %v", err)
	}
	if u.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", u.Role)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Seed.AdminEmail = "root@example.com"
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		rt, err := Open(ctx, dir, cfg, nil)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		rt.Close()
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "oracle"
	if _, err := Open(context.Background(), t.TempDir(), cfg, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
