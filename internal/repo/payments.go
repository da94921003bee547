package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"doandearn/internal/domain"
)

func (r Repo) InsertPayment(ctx context.Context, tx *sql.Tx, p domain.Payment) error {
	_, err := r.exec(ctx, tx, `INSERT INTO payments(id,email,price,coins,transaction_id,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Email, p.Price.String(), p.Coins, p.TransactionID, p.CreatedAt)
	return err
}

// PaymentExists reports whether a transaction id was already recorded.
func (r Repo) PaymentExists(ctx context.Context, tx *sql.Tx, transactionID string) (bool, error) {
	n, err := r.count(ctx, tx, `SELECT COUNT(*) FROM payments WHERE transaction_id=?`, transactionID)
	return n > 0, err
}

// ListPayments returns payments, optionally for one email.
func (r Repo) ListPayments(ctx context.Context, email string) ([]domain.Payment, error) {
	var w whereClause
	if email != "" {
		w.add("email=?", email)
	}
	rows, err := r.query(ctx, nil, `SELECT id,email,price,coins,transaction_id,created_at FROM payments`+w.String()+` ORDER BY created_at ASC, id ASC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		var price string
		if err := rows.Scan(&p.ID, &p.Email, &price, &p.Coins, &p.TransactionID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("payment %s has invalid price %q: %w", p.ID, price, err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// SumPayments totals prices in decimal; prices are stored as text so the sum
// never passes through floating point.
func (r Repo) SumPayments(ctx context.Context, email string) (decimal.Decimal, error) {
	items, err := r.ListPayments(ctx, email)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range items {
		total = total.Add(p.Price)
	}
	return total, nil
}
