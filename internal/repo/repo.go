package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"doandearn/internal/db"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo runs marketplace queries. Methods taking a *sql.Tx run inside it when
// non-nil and against DB otherwise.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var ErrNotFound = errors.New("not found")

func (r Repo) on(tx *sql.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return r.on(tx).ExecContext(ctx, r.Dialect.Rebind(query), args...)
}

func (r Repo) query(ctx context.Context, tx *sql.Tx, query string, args ...any) (*sql.Rows, error) {
	return r.on(tx).QueryContext(ctx, r.Dialect.Rebind(query), args...)
}

func (r Repo) queryRow(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	return r.on(tx).QueryRowContext(ctx, r.Dialect.Rebind(query), args...)
}

// execAffected runs a write and reports ErrNotFound when no row matched.
func (r Repo) execAffected(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	res, err := r.exec(ctx, tx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) count(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	var n sql.NullInt64
	if err := r.queryRow(ctx, tx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n.Int64, nil
}

type whereClause struct {
	parts []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	w.parts = append(w.parts, cond)
	w.args = append(w.args, args...)
}

func (w whereClause) String() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

func limitOffset(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	if offset > 0 {
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
