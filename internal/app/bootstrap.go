package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"doandearn/internal/config"
	"doandearn/internal/db"
	"doandearn/internal/engine"
	"doandearn/internal/logging"
	"doandearn/internal/migrate"
)

// Runtime is an opened marketplace workspace: a migrated store and the engine over it.
type Runtime struct {
	Workspace string
	Config    *config.Config
	Conn      *sql.DB
	Engine    engine.Engine
	Logger    *slog.Logger
}

// Open connects to the configured store, applies migrations, builds the
// engine and seeds the configured admin account.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	conn, dialect, err := db.Open(db.Config{
		Driver:    cfg.Store.Driver,
		DSN:       cfg.Store.DSN,
		Workspace: workspace,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, dialect, cfg)
	e.Logger = logger.With("component", "engine")
	if admin := strings.TrimSpace(cfg.Seed.AdminEmail); admin != "" {
		if _, err := e.SeedAdmin(ctx, admin); err != nil {
			conn.Close()
			return nil, fmt.Errorf("seed admin: %w", err)
		}
	}
	logger.Debug("store ready", "driver", dialect, "workspace", workspace)
	return &Runtime{
		Workspace: workspace,
		Config:    cfg,
		Conn:      conn,
		Engine:    e,
		Logger:    logger,
	}, nil
}

func (r *Runtime) Close() error {
	if r == nil || r.Conn == nil {
		return nil
	}
	return r.Conn.Close()
}
