package engine

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"doandearn/internal/config"
	"doandearn/internal/db"
	"doandearn/internal/events"
	"doandearn/internal/logging"
	"doandearn/internal/repo"
)

// Engine owns the task, submission, ledger and withdrawal workflows. Every
// mutating operation runs in one transaction that also appends its events.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *slog.Logger
	Now    func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     conn,
		Repo:   repo.Repo{DB: conn, Dialect: dialect},
		Events: events.Writer{Dialect: dialect},
		Config: cfg,
		Logger: logging.Discard(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.Discard()
}

func (e Engine) eventWriter() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) storeTimeout() time.Duration {
	if e.Config != nil && e.Config.Store.TimeoutSeconds > 0 {
		return time.Duration(e.Config.Store.TimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}

// withTimeout bounds a single unit of work against the store.
func (e Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout())
}

// begin refuses to start a transaction once ctx is done.
func (e Engine) begin(ctx context.Context, op string) (*sql.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, StoreError{Op: op, Err: err}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, StoreError{Op: op, Err: err}
	}
	return tx, nil
}

func (e Engine) commit(tx *sql.Tx, op string, attrs ...any) error {
	if err := tx.Commit(); err != nil {
		e.log().Error("commit failed", append([]any{"op", op, "error", err}, attrs...)...)
		return StoreError{Op: op, Err: err}
	}
	e.log().Info(op, attrs...)
	return nil
}

func newID() string {
	return uuid.NewString()
}
