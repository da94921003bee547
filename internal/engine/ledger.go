package engine

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"doandearn/internal/domain"
	"doandearn/internal/events"
	"doandearn/internal/repo"
)

// RegisterOptions are parameters for creating an account.
type RegisterOptions struct {
	Email    string
	Name     string
	PhotoURL string
	Role     string
}

// RegisterAccount creates a buyer or worker account credited with the
// configured signup coins. An existing email returns the stored account and
// created=false.
func (e Engine) RegisterAccount(ctx context.Context, opts RegisterOptions) (domain.UserAccount, bool, error) {
	email, err := normalizeEmail(opts.Email)
	if err != nil {
		return domain.UserAccount{}, false, err
	}
	if opts.Role != domain.RoleBuyer && opts.Role != domain.RoleWorker {
		return domain.UserAccount{}, false, ValidationError{Field: "role", Reason: "must be buyer or worker"}
	}
	return e.ensureAccount(ctx, domain.UserAccount{
		Email:         email,
		Name:          strings.TrimSpace(opts.Name),
		PhotoURL:      strings.TrimSpace(opts.PhotoURL),
		Role:          opts.Role,
		AvailableCoin: e.Config.SignupCoins(opts.Role),
	})
}

// SeedAdmin ensures an admin account exists for email.
func (e Engine) SeedAdmin(ctx context.Context, email string) (domain.UserAccount, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.UserAccount{}, err
	}
	u, created, err := e.ensureAccount(ctx, domain.UserAccount{Email: email, Name: "admin", Role: domain.RoleAdmin})
	if err != nil {
		return domain.UserAccount{}, err
	}
	if !created && u.Role != domain.RoleAdmin {
		return e.SetRole(ctx, email, domain.RoleAdmin, "seed")
	}
	return u, nil
}

func (e Engine) ensureAccount(ctx context.Context, u domain.UserAccount) (domain.UserAccount, bool, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "account.register")
	if err != nil {
		return domain.UserAccount{}, false, err
	}
	defer tx.Rollback()

	existing, err := e.Repo.GetUser(ctx, tx, u.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.UserAccount{}, false, storeErr("account.lookup", err)
	}
	u.CreatedAt = e.nowString()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.UserAccount{}, false, storeErr("account.insert", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "account.registered", "account", u.Email, u.Email, events.EventPayload{
		"role":           u.Role,
		"available_coin": u.AvailableCoin,
	}); err != nil {
		return domain.UserAccount{}, false, storeErr("account.register", err)
	}
	if err := e.commit(tx, "account.registered", "email", u.Email, "role", u.Role); err != nil {
		return domain.UserAccount{}, false, err
	}
	return u, true, nil
}

func (e Engine) GetAccount(ctx context.Context, email string) (domain.UserAccount, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	u, err := e.Repo.GetUser(ctx, nil, email)
	if err != nil {
		return domain.UserAccount{}, lookupErr("account", email, "account.get", err)
	}
	return u, nil
}

// ListAccounts lists accounts, optionally of one role.
func (e Engine) ListAccounts(ctx context.Context, role string) ([]domain.UserAccount, error) {
	if role != "" && !validRole(role) {
		return nil, ValidationError{Field: "role", Reason: "must be buyer, worker or admin"}
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.Repo.ListUsers(ctx, repo.UserFilters{Role: role})
	return items, storeErr("account.list", err)
}

// TopWorkers returns the n workers with the highest balances.
func (e Engine) TopWorkers(ctx context.Context, n int) ([]domain.UserAccount, error) {
	if n <= 0 {
		n = 6
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.Repo.ListUsers(ctx, repo.UserFilters{Role: domain.RoleWorker, TopByCoin: true, Limit: n})
	return items, storeErr("account.top_workers", err)
}

func (e Engine) SetRole(ctx context.Context, email, role, actor string) (domain.UserAccount, error) {
	if !validRole(role) {
		return domain.UserAccount{}, ValidationError{Field: "role", Reason: "must be buyer, worker or admin"}
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "account.set_role")
	if err != nil {
		return domain.UserAccount{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetRole(ctx, tx, email, role); err != nil {
		return domain.UserAccount{}, lookupErr("account", email, "account.set_role", err)
	}
	u, err := e.Repo.GetUser(ctx, tx, email)
	if err != nil {
		return domain.UserAccount{}, lookupErr("account", email, "account.get", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "account.role_set", "account", email, actor, events.EventPayload{"role": role}); err != nil {
		return domain.UserAccount{}, storeErr("account.set_role", err)
	}
	if err := e.commit(tx, "account.role_set", "email", email, "role", role); err != nil {
		return domain.UserAccount{}, err
	}
	return u, nil
}

// DeleteAccount removes an account. Historical submissions and withdrawals
// keep referencing the email.
func (e Engine) DeleteAccount(ctx context.Context, email, actor string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "account.delete")
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteUser(ctx, tx, email); err != nil {
		return lookupErr("account", email, "account.delete", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "account.deleted", "account", email, actor, nil); err != nil {
		return storeErr("account.delete", err)
	}
	return e.commit(tx, "account.deleted", "email", email)
}

func (e Engine) GetBalance(ctx context.Context, email string) (int64, error) {
	u, err := e.GetAccount(ctx, email)
	if err != nil {
		return 0, err
	}
	return u.AvailableCoin, nil
}

// Credit adds amount to an account balance.
func (e Engine) Credit(ctx context.Context, email string, amount int64, actor string) (domain.UserAccount, error) {
	return e.ledgerOp(ctx, "ledger.credit", email, actor, func(ctx context.Context, tx *sql.Tx) error {
		return e.creditTx(ctx, tx, email, amount, actor, "")
	})
}

// Debit removes amount from an account balance, refusing to go below zero.
func (e Engine) Debit(ctx context.Context, email string, amount int64, actor string) (domain.UserAccount, error) {
	return e.ledgerOp(ctx, "ledger.debit", email, actor, func(ctx context.Context, tx *sql.Tx) error {
		return e.debitTx(ctx, tx, email, amount, actor, "")
	})
}

// SetBalance overrides a balance. It is the administrative path and the
// buyer top-up after an external payment confirmation.
func (e Engine) SetBalance(ctx context.Context, email string, value int64, actor string) (domain.UserAccount, error) {
	if value < 0 {
		return domain.UserAccount{}, ValidationError{Field: "availableCoin", Reason: "must be >= 0"}
	}
	return e.ledgerOp(ctx, "ledger.set_balance", email, actor, func(ctx context.Context, tx *sql.Tx) error {
		prev, err := e.Repo.GetUser(ctx, tx, email)
		if err != nil {
			return lookupErr("account", email, "ledger.set_balance", err)
		}
		if err := e.Repo.SetCoins(ctx, tx, email, value); err != nil {
			return lookupErr("account", email, "ledger.set_balance", err)
		}
		return e.eventWriter().Append(ctx, tx, "ledger.balance_set", "account", email, actor, events.EventPayload{
			"previous": prev.AvailableCoin,
			"balance":  value,
		})
	})
}

func (e Engine) ledgerOp(ctx context.Context, op, email, actor string, fn func(context.Context, *sql.Tx) error) (domain.UserAccount, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, op)
	if err != nil {
		return domain.UserAccount{}, err
	}
	defer tx.Rollback()
	if err := fn(ctx, tx); err != nil {
		return domain.UserAccount{}, storeErr(op, err)
	}
	u, err := e.Repo.GetUser(ctx, tx, email)
	if err != nil {
		return domain.UserAccount{}, lookupErr("account", email, op, err)
	}
	if err := e.commit(tx, op, "email", email, "balance", u.AvailableCoin, "actor", actor); err != nil {
		return domain.UserAccount{}, err
	}
	return u, nil
}

// creditTx adds amount to email's balance inside tx.
func (e Engine) creditTx(ctx context.Context, tx *sql.Tx, email string, amount int64, actor, reason string) error {
	if err := positive("amount", amount); err != nil {
		return err
	}
	if err := e.Repo.AddCoins(ctx, tx, email, amount); err != nil {
		return lookupErr("account", email, "ledger.credit", err)
	}
	return e.eventWriter().Append(ctx, tx, "ledger.credited", "account", email, actor, events.EventPayload{
		"amount": amount,
		"reason": reason,
	})
}

// debitTx removes amount from email's balance inside tx. The guarded update
// serializes with concurrent credits on the same row.
func (e Engine) debitTx(ctx context.Context, tx *sql.Tx, email string, amount int64, actor, reason string) error {
	if err := positive("amount", amount); err != nil {
		return err
	}
	ok, err := e.Repo.SubtractCoins(ctx, tx, email, amount)
	if err != nil {
		return storeErr("ledger.debit", err)
	}
	if !ok {
		u, err := e.Repo.GetUser(ctx, tx, email)
		if err != nil {
			return lookupErr("account", email, "ledger.debit", err)
		}
		return InsufficientBalanceError{Email: email, Balance: u.AvailableCoin, Amount: amount}
	}
	return e.eventWriter().Append(ctx, tx, "ledger.debited", "account", email, actor, events.EventPayload{
		"amount": amount,
		"reason": reason,
	})
}

// PaymentOptions describe a confirmed external payment.
type PaymentOptions struct {
	Email         string
	Price         string
	Coins         int64
	TransactionID string
	Actor         string
}

// RecordPayment stores a confirmed payment and credits its coins in one transaction.
func (e Engine) RecordPayment(ctx context.Context, opts PaymentOptions) (domain.Payment, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(opts.Price))
	if err != nil {
		return domain.Payment{}, ValidationError{Field: "price", Reason: "must be a decimal number"}
	}
	if !price.IsPositive() {
		return domain.Payment{}, ValidationError{Field: "price", Reason: "must be > 0"}
	}
	if err := positive("coins", opts.Coins); err != nil {
		return domain.Payment{}, err
	}
	if strings.TrimSpace(opts.TransactionID) == "" {
		return domain.Payment{}, ValidationError{Field: "transaction_id", Reason: "is required"}
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "payment.record")
	if err != nil {
		return domain.Payment{}, err
	}
	defer tx.Rollback()

	seen, err := e.Repo.PaymentExists(ctx, tx, opts.TransactionID)
	if err != nil {
		return domain.Payment{}, storeErr("payment.lookup", err)
	}
	if seen {
		return domain.Payment{}, ConflictError{Kind: "payment", ID: opts.TransactionID, Status: "recorded"}
	}
	p := domain.Payment{
		ID:            newID(),
		Email:         opts.Email,
		Price:         price,
		Coins:         opts.Coins,
		TransactionID: opts.TransactionID,
		CreatedAt:     e.nowString(),
	}
	if err := e.Repo.InsertPayment(ctx, tx, p); err != nil {
		return domain.Payment{}, storeErr("payment.insert", err)
	}
	if err := e.creditTx(ctx, tx, p.Email, p.Coins, opts.Actor, "payment:"+p.TransactionID); err != nil {
		return domain.Payment{}, storeErr("payment.record", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "payment.recorded", "payment", p.ID, opts.Actor, events.EventPayload{
		"email":          p.Email,
		"price":          p.Price.String(),
		"coins":          p.Coins,
		"transaction_id": p.TransactionID,
	}); err != nil {
		return domain.Payment{}, storeErr("payment.record", err)
	}
	if err := e.commit(tx, "payment.recorded", "email", p.Email, "coins", p.Coins); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (e Engine) ListPayments(ctx context.Context, email string) ([]domain.Payment, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.Repo.ListPayments(ctx, email)
	return items, storeErr("payment.list", err)
}

func validRole(role string) bool {
	switch role {
	case domain.RoleBuyer, domain.RoleWorker, domain.RoleAdmin:
		return true
	}
	return false
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ValidationError{Field: "email", Reason: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ValidationError{Field: "email", Reason: "must be a plain address"}
	}
	return email, nil
}
