package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"doandearn/internal/config"
	"doandearn/internal/db"
	"doandearn/internal/domain"
	"doandearn/internal/engine"
	"doandearn/internal/migrate"
	"doandearn/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, dialect, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Accounts.SignupCoins = map[string]int64{}
	eng := engine.New(conn, dialect, cfg)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	eng.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func (env testEnv) account(t *testing.T, email, role string) domain.UserAccount {
	t.Helper()
	u, _, err := env.Engine.RegisterAccount(env.Ctx, engine.RegisterOptions{Email: email, Name: email, Role: role})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (env testEnv) task(t *testing.T, buyer string, pay, workers int64) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		BuyerEmail:      buyer,
		TaskTitle:       "Watch the video and comment",
		TaskDetail:      "Leave a comment with a timestamp",
		SubmissionInfo:  "Screenshot of the comment",
		PayableAmount:   pay,
		RequiredWorkers: workers,
		CompletionDate:  "2024-02-01",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (env testEnv) submit(t *testing.T, taskID, worker string) domain.Submission {
	t.Helper()
	s, err := env.Engine.Submit(env.Ctx, engine.SubmitOptions{TaskID: taskID, WorkerEmail: worker, SubmissionDetails: "done"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return s
}

func (env testEnv) balance(t *testing.T, email string) int64 {
	t.Helper()
	b, err := env.Engine.GetBalance(env.Ctx, email)
	if err != nil {
		t.Fatalf("balance %s: %v", email, err)
	}
	return b
}

func (env testEnv) setBalance(t *testing.T, email string, v int64) {
	t.Helper()
	if _, err := env.Engine.SetBalance(env.Ctx, email, v, "admin@x.io"); err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

func TestApproveCreditsWorker(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	env.account(t, "other@x.io", domain.RoleWorker)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")
	if sub.PayableAmount != 50 || sub.BuyerEmail != "buyer@x.io" || sub.Status != domain.SubmissionPending {
		t.Fatalf("submission did not copy task fields: %+v", sub)
	}

	approved, err := env.Engine.Approve(env.Ctx, sub.ID, "buyer@x.io")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.SubmissionApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	stored, err := env.Engine.GetSubmission(env.Ctx, sub.ID)
	if err != nil || stored.Status != domain.SubmissionApproved {
		t.Fatalf("stored submission not approved: %+v %v", stored, err)
	}
	if got := env.balance(t, "worker@x.io"); got != 50 {
		t.Fatalf("expected worker balance 50, got %d", got)
	}
	if env.balance(t, "buyer@x.io") != 0 || env.balance(t, "other@x.io") != 0 {
		t.Fatalf("approval touched another account")
	}
	after, _ := env.Engine.GetTask(env.Ctx, task.ID)
	if after.RequiredWorkers != 3 {
		t.Fatalf("approve must not change required_workers, got %d", after.RequiredWorkers)
	}
}

func TestRejectRestoresSlot(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")

	rejected, err := env.Engine.Reject(env.Ctx, sub.ID, "buyer@x.io")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.SubmissionRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	after, err := env.Engine.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if after.RequiredWorkers != 4 {
		t.Fatalf("expected required_workers 4, got %d", after.RequiredWorkers)
	}
	if env.balance(t, "worker@x.io") != 0 {
		t.Fatalf("reject must not credit")
	}
}

func TestTerminalSubmissionConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")
	if _, err := env.Engine.Approve(env.Ctx, sub.ID, "buyer@x.io"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	for name, fn := range map[string]func(context.Context, string, string) (domain.Submission, error){
		"approve": env.Engine.Approve,
		"reject":  env.Engine.Reject,
	} {
		_, err := fn(env.Ctx, sub.ID, "buyer@x.io")
		var ce engine.ConflictError
		if !errors.As(err, &ce) || ce.Status != domain.SubmissionApproved {
			t.Fatalf("%s again: expected conflict, got %v", name, err)
		}
	}
	if got := env.balance(t, "worker@x.io"); got != 50 {
		t.Fatalf("retries must not credit again, balance %d", got)
	}
	after, _ := env.Engine.GetTask(env.Ctx, task.ID)
	if after.RequiredWorkers != 3 {
		t.Fatalf("reject retry must not restore a slot, got %d", after.RequiredWorkers)
	}
}

func TestApproveUnknownSubmission(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Approve(env.Ctx, "missing", "buyer@x.io")
	var nf engine.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "submission" {
		t.Fatalf("expected submission not found, got %v", err)
	}
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("NotFoundError should match repo.ErrNotFound")
	}
}

func TestApproveMissingTaskAborts(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, "buyer@x.io"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	for name, fn := range map[string]func(context.Context, string, string) (domain.Submission, error){
		"approve": env.Engine.Approve,
		"reject":  env.Engine.Reject,
	} {
		_, err := fn(env.Ctx, sub.ID, "admin@x.io")
		var nf engine.NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "task" {
			t.Fatalf("%s: expected task not found, got %v", name, err)
		}
	}
	stored, err := env.Engine.GetSubmission(env.Ctx, sub.ID)
	if err != nil {
		t.Fatalf("submission should survive task deletion: %v", err)
	}
	if stored.Status != domain.SubmissionPending || stored.TaskID != task.ID {
		t.Fatalf("submission changed: %+v", stored)
	}
	if env.balance(t, "worker@x.io") != 0 {
		t.Fatalf("aborted approval credited the worker")
	}
}

func TestApproveRollsBackWithoutWorkerAccount(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")
	if err := env.Engine.DeleteAccount(env.Ctx, "worker@x.io", "admin@x.io"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	_, err := env.Engine.Approve(env.Ctx, sub.ID, "buyer@x.io")
	var nf engine.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "account" {
		t.Fatalf("expected account not found, got %v", err)
	}
	stored, _ := env.Engine.GetSubmission(env.Ctx, sub.ID)
	if stored.Status != domain.SubmissionPending {
		t.Fatalf("status write must roll back with the failed credit, got %s", stored.Status)
	}
}

func TestConcurrentApproveCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")

	const n = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
		others    = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.Approve(env.Ctx, sub.ID, "buyer@x.io")
			var ce engine.ConflictError
			switch {
			case err == nil:
				successes.Add(1)
			case errors.As(err, &ce) && ce.Status == domain.SubmissionApproved:
				conflicts.Add(1)
			default:
				others <- err
			}
		}()
	}
	wg.Wait()
	close(others)
	for err := range others {
		t.Fatalf("unexpected error: %v", err)
	}
	if successes.Load() != 1 || conflicts.Load() != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", n-1, successes.Load(), conflicts.Load())
	}
	if got := env.balance(t, "worker@x.io"); got != 50 {
		t.Fatalf("expected exactly one credit, balance %d", got)
	}
}

func TestConcurrentCreditAndDebitDoNotLoseUpdates(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	env.setBalance(t, "worker@x.io", 100)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")
	w, err := env.Engine.RequestWithdrawal(env.Ctx, engine.WithdrawalRequestOptions{WorkerEmail: "worker@x.io", WithdrawalCoin: 100})
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := env.Engine.Approve(env.Ctx, sub.ID, "buyer@x.io")
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := env.Engine.Finalize(env.Ctx, engine.FinalizeOptions{ID: w.ID, Status: domain.WithdrawalApproved, Actor: "admin@x.io"})
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent op failed: %v", err)
		}
	}
	if got := env.balance(t, "worker@x.io"); got != 50 {
		t.Fatalf("expected 100+50-100=50, got %d", got)
	}
}

func TestCanceledContextDoesNotCommit(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")

	ctx, cancel := context.WithCancel(env.Ctx)
	cancel()
	_, err := env.Engine.Approve(ctx, sub.ID, "buyer@x.io")
	var se engine.StoreError
	if !errors.As(err, &se) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected store error wrapping cancellation, got %v", err)
	}
	stored, _ := env.Engine.GetSubmission(env.Ctx, sub.ID)
	if stored.Status != domain.SubmissionPending || env.balance(t, "worker@x.io") != 0 {
		t.Fatalf("canceled approval must not apply")
	}
}

func TestEventsRecordedWithTransition(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "buyer@x.io", domain.RoleBuyer)
	env.account(t, "worker@x.io", domain.RoleWorker)
	task := env.task(t, "buyer@x.io", 50, 3)
	sub := env.submit(t, task.ID, "worker@x.io")
	if _, err := env.Engine.Approve(env.Ctx, sub.ID, "buyer@x.io"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{Limit: 2})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].Type != "submission.approved" || evts[1].Type != "ledger.credited" {
		t.Fatalf("unexpected latest events: %s, %s", evts[0].Type, evts[1].Type)
	}
	if evts[1].EntityID != "worker@x.io" || evts[0].Actor != "buyer@x.io" {
		t.Fatalf("unexpected event fields: %+v", evts)
	}
}
