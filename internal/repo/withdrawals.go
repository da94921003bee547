package repo

import (
	"context"
	"database/sql"

	"doandearn/internal/domain"
)

const withdrawalColumns = `id,worker_email,worker_name,withdrawal_coin,withdrawal_amount,payment_system,account_number,status,created_at,updated_at`

func scanWithdrawal(row rowScanner) (domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(&w.ID, &w.WorkerEmail, &w.WorkerName, &w.WithdrawalCoin, &w.WithdrawalAmount, &w.PaymentSystem,
		&w.AccountNumber, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) InsertWithdrawal(ctx context.Context, tx *sql.Tx, w domain.Withdrawal) error {
	_, err := r.exec(ctx, tx, `INSERT INTO withdrawals(id,worker_email,worker_name,withdrawal_coin,withdrawal_amount,payment_system,account_number,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.WorkerEmail, w.WorkerName, w.WithdrawalCoin, w.WithdrawalAmount, w.PaymentSystem, w.AccountNumber, w.Status, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r Repo) GetWithdrawal(ctx context.Context, id string) (domain.Withdrawal, error) {
	return r.GetWithdrawalTx(ctx, nil, id)
}

func (r Repo) GetWithdrawalTx(ctx context.Context, tx *sql.Tx, id string) (domain.Withdrawal, error) {
	return scanWithdrawal(r.queryRow(ctx, tx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id=?`, id))
}

// WithdrawalFilters narrow ListWithdrawals.
type WithdrawalFilters struct {
	WorkerEmail string
	Status      string
}

func (r Repo) ListWithdrawals(ctx context.Context, f WithdrawalFilters) ([]domain.Withdrawal, error) {
	var w whereClause
	if f.WorkerEmail != "" {
		w.add("worker_email=?", f.WorkerEmail)
	}
	if f.Status != "" {
		w.add("status=?", f.Status)
	}
	rows, err := r.query(ctx, nil, `SELECT `+withdrawalColumns+` FROM withdrawals`+w.String()+` ORDER BY created_at ASC, id ASC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Withdrawal{}
	for rows.Next() {
		wd, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, wd)
	}
	return res, rows.Err()
}

// TransitionWithdrawal moves a withdrawal out of from and reports whether it did.
func (r Repo) TransitionWithdrawal(ctx context.Context, tx *sql.Tx, id, from, to, now string) (bool, error) {
	res, err := r.exec(ctx, tx, `UPDATE withdrawals SET status=?, updated_at=? WHERE id=? AND status=?`, to, now, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
