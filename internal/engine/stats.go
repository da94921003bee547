package engine

import (
	"context"

	"doandearn/internal/domain"
	"doandearn/internal/repo"
)

// Stats are read-only aggregates over the ledger; they take no locks and may
// trail concurrent transitions.

func (e Engine) AdminStats(ctx context.Context) (domain.AdminStats, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	var s domain.AdminStats
	var err error
	if s.TotalWorkers, err = e.Repo.CountUsersByRole(ctx, domain.RoleWorker); err != nil {
		return s, storeErr("stats.admin", err)
	}
	if s.TotalBuyers, err = e.Repo.CountUsersByRole(ctx, domain.RoleBuyer); err != nil {
		return s, storeErr("stats.admin", err)
	}
	if s.TotalAvailableCoin, err = e.Repo.SumAvailableCoin(ctx); err != nil {
		return s, storeErr("stats.admin", err)
	}
	if s.TotalPayments, err = e.Repo.SumPayments(ctx, ""); err != nil {
		return s, storeErr("stats.admin", err)
	}
	return s, nil
}

func (e Engine) WorkerStats(ctx context.Context, email string) (domain.WorkerStats, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	var s domain.WorkerStats
	var err error
	if s.TotalSubmissions, err = e.Repo.CountSubmissions(ctx, repo.SubmissionFilters{WorkerEmail: email}); err != nil {
		return s, storeErr("stats.worker", err)
	}
	if s.TotalPendingSubmissions, err = e.Repo.CountSubmissions(ctx, repo.SubmissionFilters{WorkerEmail: email, Status: domain.SubmissionPending}); err != nil {
		return s, storeErr("stats.worker", err)
	}
	if s.TotalEarnings, err = e.Repo.SumPayableAmount(ctx, repo.SubmissionFilters{WorkerEmail: email, Status: domain.SubmissionApproved}); err != nil {
		return s, storeErr("stats.worker", err)
	}
	return s, nil
}

func (e Engine) BuyerStats(ctx context.Context, email string) (domain.BuyerStats, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	var s domain.BuyerStats
	var err error
	if s.TotalTasks, err = e.Repo.CountTasksByBuyer(ctx, email); err != nil {
		return s, storeErr("stats.buyer", err)
	}
	if s.PendingTasks, err = e.Repo.CountOpenTasksByBuyer(ctx, email); err != nil {
		return s, storeErr("stats.buyer", err)
	}
	if s.TotalPayments, err = e.Repo.SumPayments(ctx, email); err != nil {
		return s, storeErr("stats.buyer", err)
	}
	return s, nil
}

// ListEvents pages the event log newest first.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.Repo.LatestEvents(ctx, f)
	return items, storeErr("events.list", err)
}
