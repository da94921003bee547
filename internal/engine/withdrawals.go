package engine

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"doandearn/internal/domain"
	"doandearn/internal/events"
	"doandearn/internal/repo"
)

// WithdrawalRequestOptions are parameters for a worker payout request.
type WithdrawalRequestOptions struct {
	WorkerEmail      string
	WorkerName       string
	WithdrawalCoin   int64
	WithdrawalAmount string
	PaymentSystem    string
	AccountNumber    string
}

// RequestWithdrawal records a pending withdrawal. The balance is checked when
// it is finalized, not here.
func (e Engine) RequestWithdrawal(ctx context.Context, opts WithdrawalRequestOptions) (domain.Withdrawal, error) {
	if strings.TrimSpace(opts.WorkerEmail) == "" {
		return domain.Withdrawal{}, ValidationError{Field: "worker_email", Reason: "is required"}
	}
	if err := positive("withdrawal_coin", opts.WithdrawalCoin); err != nil {
		return domain.Withdrawal{}, err
	}
	amount := decimal.Zero
	if strings.TrimSpace(opts.WithdrawalAmount) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(opts.WithdrawalAmount))
		if err != nil || parsed.IsNegative() {
			return domain.Withdrawal{}, ValidationError{Field: "withdrawal_amount", Reason: "must be a non-negative decimal"}
		}
		amount = parsed
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "withdrawal.request")
	if err != nil {
		return domain.Withdrawal{}, err
	}
	defer tx.Rollback()

	now := e.nowString()
	w := domain.Withdrawal{
		ID:               newID(),
		WorkerEmail:      opts.WorkerEmail,
		WorkerName:       opts.WorkerName,
		WithdrawalCoin:   opts.WithdrawalCoin,
		WithdrawalAmount: amount.String(),
		PaymentSystem:    opts.PaymentSystem,
		AccountNumber:    opts.AccountNumber,
		Status:           domain.WithdrawalPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.Repo.InsertWithdrawal(ctx, tx, w); err != nil {
		return domain.Withdrawal{}, storeErr("withdrawal.insert", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "withdrawal.requested", "withdrawal", w.ID, w.WorkerEmail, events.EventPayload{
		"withdrawal_coin": w.WithdrawalCoin,
	}); err != nil {
		return domain.Withdrawal{}, storeErr("withdrawal.request", err)
	}
	if err := e.commit(tx, "withdrawal.requested", "withdrawal_id", w.ID, "worker", w.WorkerEmail); err != nil {
		return domain.Withdrawal{}, err
	}
	return w, nil
}

// FinalizeOptions select the withdrawal and its target status. Amount and
// WorkerEmail are optional; when set they must match the stored request.
type FinalizeOptions struct {
	ID          string
	Status      string
	Amount      int64
	WorkerEmail string
	Actor       string
}

// Finalize moves a pending withdrawal to its final status and debits the
// worker in the same transaction. A short balance rolls back both.
func (e Engine) Finalize(ctx context.Context, opts FinalizeOptions) (domain.Withdrawal, error) {
	status := opts.Status
	if status == "" {
		status = domain.WithdrawalApproved
	}
	if status != domain.WithdrawalApproved && status != domain.WithdrawalCompleted {
		return domain.Withdrawal{}, ValidationError{Field: "status", Reason: "must be approved or completed"}
	}
	if opts.Amount < 0 {
		return domain.Withdrawal{}, ValidationError{Field: "withdrawal_coin", Reason: "must be > 0"}
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "withdrawal.finalize")
	if err != nil {
		return domain.Withdrawal{}, err
	}
	defer tx.Rollback()

	w, err := e.Repo.GetWithdrawalTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Withdrawal{}, lookupErr("withdrawal", opts.ID, "withdrawal.get", err)
	}
	if w.Status != domain.WithdrawalPending {
		return domain.Withdrawal{}, ConflictError{Kind: "withdrawal", ID: w.ID, Status: w.Status}
	}
	if opts.Amount > 0 && opts.Amount != w.WithdrawalCoin {
		return domain.Withdrawal{}, ValidationError{Field: "withdrawal_coin", Reason: "does not match the request"}
	}
	if opts.WorkerEmail != "" && opts.WorkerEmail != w.WorkerEmail {
		return domain.Withdrawal{}, ValidationError{Field: "worker_email", Reason: "does not match the request"}
	}
	now := e.nowString()
	ok, err := e.Repo.TransitionWithdrawal(ctx, tx, w.ID, domain.WithdrawalPending, status, now)
	if err != nil {
		return domain.Withdrawal{}, storeErr("withdrawal.finalize", err)
	}
	if !ok {
		current, err := e.Repo.GetWithdrawalTx(ctx, tx, w.ID)
		return domain.Withdrawal{}, lostRace("withdrawal", w.ID, "withdrawal.finalize", current.Status, err)
	}
	if err := e.debitTx(ctx, tx, w.WorkerEmail, w.WithdrawalCoin, opts.Actor, "withdrawal:"+w.ID); err != nil {
		e.log().Warn("withdrawal finalize rejected", "withdrawal_id", w.ID, "worker", w.WorkerEmail, "error", err)
		return domain.Withdrawal{}, err
	}
	if err := e.eventWriter().Append(ctx, tx, "withdrawal.finalized", "withdrawal", w.ID, opts.Actor, events.EventPayload{
		"status":          status,
		"withdrawal_coin": w.WithdrawalCoin,
		"worker_email":    w.WorkerEmail,
	}); err != nil {
		return domain.Withdrawal{}, storeErr("withdrawal.finalize", err)
	}
	if err := e.commit(tx, "withdrawal.finalized", "withdrawal_id", w.ID, "worker", w.WorkerEmail, "coins", w.WithdrawalCoin); err != nil {
		return domain.Withdrawal{}, err
	}
	w.Status = status
	w.UpdatedAt = now
	return w, nil
}

func (e Engine) GetWithdrawal(ctx context.Context, id string) (domain.Withdrawal, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	w, err := e.Repo.GetWithdrawal(ctx, id)
	if err != nil {
		return domain.Withdrawal{}, lookupErr("withdrawal", id, "withdrawal.get", err)
	}
	return w, nil
}

// ListPendingWithdrawals is the admin queue.
func (e Engine) ListPendingWithdrawals(ctx context.Context) ([]domain.Withdrawal, error) {
	return e.listWithdrawals(ctx, repo.WithdrawalFilters{Status: domain.WithdrawalPending})
}

func (e Engine) ListWithdrawalsByWorker(ctx context.Context, email string) ([]domain.Withdrawal, error) {
	return e.listWithdrawals(ctx, repo.WithdrawalFilters{WorkerEmail: email})
}

func (e Engine) listWithdrawals(ctx context.Context, f repo.WithdrawalFilters) ([]domain.Withdrawal, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.Repo.ListWithdrawals(ctx, f)
	return items, storeErr("withdrawal.list", err)
}
