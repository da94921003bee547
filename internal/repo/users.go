package repo

import (
	"context"
	"database/sql"

	"doandearn/internal/domain"
)

const userColumns = `email,name,COALESCE(photo_url,''),role,available_coin,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := row.Scan(&u.Email, &u.Name, &u.PhotoURL, &u.Role, &u.AvailableCoin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.UserAccount) error {
	_, err := r.exec(ctx, tx, `INSERT INTO users(email,name,photo_url,role,available_coin,created_at) VALUES (?,?,?,?,?,?)`,
		u.Email, u.Name, nullable(u.PhotoURL), u.Role, u.AvailableCoin, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, email string) (domain.UserAccount, error) {
	return scanUser(r.queryRow(ctx, tx, `SELECT `+userColumns+` FROM users WHERE email=?`, email))
}

// UserFilters narrow ListUsers.
type UserFilters struct {
	Role  string
	Limit int
	// TopByCoin orders by available_coin descending instead of created_at.
	TopByCoin bool
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.UserAccount, error) {
	var w whereClause
	if f.Role != "" {
		w.add("role=?", f.Role)
	}
	order := " ORDER BY created_at ASC, email ASC"
	if f.TopByCoin {
		order = " ORDER BY available_coin DESC, email ASC"
	}
	rows, err := r.query(ctx, nil, `SELECT `+userColumns+` FROM users`+w.String()+order+limitOffset(f.Limit, 0), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.UserAccount{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) SetRole(ctx context.Context, tx *sql.Tx, email, role string) error {
	return r.execAffected(ctx, tx, `UPDATE users SET role=? WHERE email=?`, role, email)
}

func (r Repo) DeleteUser(ctx context.Context, tx *sql.Tx, email string) error {
	return r.execAffected(ctx, tx, `DELETE FROM users WHERE email=?`, email)
}

// AddCoins increments a balance atomically.
func (r Repo) AddCoins(ctx context.Context, tx *sql.Tx, email string, amount int64) error {
	return r.execAffected(ctx, tx, `UPDATE users SET available_coin=available_coin+? WHERE email=?`, amount, email)
}

// SubtractCoins decrements a balance only when it covers the amount. It
// returns false when the guard rejected the write; the caller tells a missing
// account apart from a short balance.
func (r Repo) SubtractCoins(ctx context.Context, tx *sql.Tx, email string, amount int64) (bool, error) {
	res, err := r.exec(ctx, tx, `UPDATE users SET available_coin=available_coin-? WHERE email=? AND available_coin>=?`, amount, email, amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) SetCoins(ctx context.Context, tx *sql.Tx, email string, value int64) error {
	return r.execAffected(ctx, tx, `UPDATE users SET available_coin=? WHERE email=?`, value, email)
}

func (r Repo) CountUsersByRole(ctx context.Context, role string) (int64, error) {
	return r.count(ctx, nil, `SELECT COUNT(*) FROM users WHERE role=?`, role)
}

func (r Repo) SumAvailableCoin(ctx context.Context) (int64, error) {
	return r.count(ctx, nil, `SELECT CAST(SUM(available_coin) AS BIGINT) FROM users`)
}
