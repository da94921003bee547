package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"doandearn/internal/domain"
	"doandearn/internal/engine"
)

func expectValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
	if ve.Field != field {
		t.Fatalf("expected validation error on %s, got %s", field, ve.Field)
	}
}

func TestRegisterAccount(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Accounts.SignupCoins = map[string]int64{domain.RoleWorker: 10, domain.RoleBuyer: 50}

	w, created, err := env.Engine.RegisterAccount(env.Ctx, engine.RegisterOptions{Email: " w@x.io ", Name: "W", Role: domain.RoleWorker})
	if err != nil || !created {
		t.Fatalf("register worker: created=%v err=%v", created, err)
	}
	if w.Email != "w@x.io" || w.AvailableCoin != 10 {
		t.Fatalf("unexpected worker: %+v", w)
	}
	again, created, err := env.Engine.RegisterAccount(env.Ctx, engine.RegisterOptions{Email: "w@x.io", Role: domain.RoleBuyer})
	if err != nil || created {
		t.Fatalf("second register should return existing: created=%v err=%v", created, err)
	}
	if again.Role != domain.RoleWorker || again.AvailableCoin != 10 {
		t.Fatalf("existing account changed: %+v", again)
	}
	b := env.account(t, "b@x.io", domain.RoleBuyer)
	if b.AvailableCoin != 50 {
		t.Fatalf("expected buyer signup coins 50, got %d", b.AvailableCoin)
	}

	_, _, err = env.Engine.RegisterAccount(env.Ctx, engine.RegisterOptions{Email: "a@x.io", Role: domain.RoleAdmin})
	expectValidation(t, err, "role")
	_, _, err = env.Engine.RegisterAccount(env.Ctx, engine.RegisterOptions{Email: "not an email", Role: domain.RoleWorker})
	expectValidation(t, err, "email")
}

func TestSeedAdminPromotesExisting(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "root@x.io", domain.RoleBuyer)
	u, err := env.Engine.SeedAdmin(env.Ctx, "root@x.io")
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if u.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %s", u.Role)
	}
	admins, err := env.Engine.ListAccounts(env.Ctx, domain.RoleAdmin)
	if err != nil || len(admins) != 1 {
		t.Fatalf("expected one admin, got %d (%v)", len(admins), err)
	}
}

func TestCreditDebitAndSetBalance(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "w@x.io", domain.RoleWorker)

	u, err := env.Engine.Credit(env.Ctx, "w@x.io", 30, "admin@x.io")
	if err != nil || u.AvailableCoin != 30 {
		t.Fatalf("credit: %+v %v", u, err)
	}
	u, err = env.Engine.Debit(env.Ctx, "w@x.io", 10, "admin@x.io")
	if err != nil || u.AvailableCoin != 20 {
		t.Fatalf("debit: %+v %v", u, err)
	}
	_, err = env.Engine.Debit(env.Ctx, "w@x.io", 21, "admin@x.io")
	var ib engine.InsufficientBalanceError
	if !errors.As(err, &ib) || ib.Balance != 20 || ib.Amount != 21 {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if env.balance(t, "w@x.io") != 20 {
		t.Fatalf("failed debit changed the balance")
	}

	_, err = env.Engine.Credit(env.Ctx, "w@x.io", 0, "admin@x.io")
	expectValidation(t, err, "amount")
	_, err = env.Engine.SetBalance(env.Ctx, "w@x.io", -1, "admin@x.io")
	expectValidation(t, err, "availableCoin")

	_, err = env.Engine.Credit(env.Ctx, "ghost@x.io", 5, "admin@x.io")
	var nf engine.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "account" {
		t.Fatalf("expected account not found, got %v", err)
	}
	u, err = env.Engine.SetBalance(env.Ctx, "w@x.io", 7, "admin@x.io")
	if err != nil || u.AvailableCoin != 7 {
		t.Fatalf("set balance: %+v %v", u, err)
	}
}

func TestTopWorkersOrderedByBalance(t *testing.T) {
	env := newTestEnv(t)
	for i, coins := range []int64{5, 40, 15} {
		email := fmt.Sprintf("w%d@x.io", i)
		env.account(t, email, domain.RoleWorker)
		env.setBalance(t, email, coins)
	}
	env.account(t, "b@x.io", domain.RoleBuyer)
	env.setBalance(t, "b@x.io", 999)

	top, err := env.Engine.TopWorkers(env.Ctx, 2)
	if err != nil {
		t.Fatalf("top workers: %v", err)
	}
	if len(top) != 2 || top[0].Email != "w1@x.io" || top[1].Email != "w2@x.io" {
		t.Fatalf("unexpected top workers: %+v", top)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	base := engine.TaskCreateOptions{BuyerEmail: "b@x.io", TaskTitle: "t", PayableAmount: 10, RequiredWorkers: 1}

	opts := base
	opts.PayableAmount = 0
	_, err := env.Engine.CreateTask(env.Ctx, opts)
	expectValidation(t, err, "payable_amount")

	opts = base
	opts.RequiredWorkers = -1
	_, err = env.Engine.CreateTask(env.Ctx, opts)
	expectValidation(t, err, "required_workers")

	opts = base
	opts.CompletionDate = "next tuesday"
	_, err = env.Engine.CreateTask(env.Ctx, opts)
	expectValidation(t, err, "completion_date")

	opts = base
	opts.TaskTitle = "  "
	_, err = env.Engine.CreateTask(env.Ctx, opts)
	expectValidation(t, err, "task_title")
}

func TestTaskLifecycleDoesNotTouchBalances(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "b@x.io", domain.RoleBuyer)
	env.setBalance(t, "b@x.io", 100)
	task := env.task(t, "b@x.io", 25, 2)

	title := "Updated title"
	edited, err := env.Engine.EditTask(env.Ctx, engine.TaskEditOptions{ID: task.ID, TaskTitle: &title, Actor: "b@x.io"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.TaskTitle != title || edited.TaskDetail != task.TaskDetail || edited.PayableAmount != 25 {
		t.Fatalf("unexpected edit result: %+v", edited)
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, "b@x.io"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = env.Engine.DeleteTask(env.Ctx, task.ID, "b@x.io")
	var nf engine.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	_, err = env.Engine.EditTask(env.Ctx, engine.TaskEditOptions{ID: task.ID, TaskTitle: &title})
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found editing a deleted task, got %v", err)
	}
	if env.balance(t, "b@x.io") != 100 {
		t.Fatalf("task lifecycle changed the buyer balance")
	}
}

func TestClaimSlotUntilFull(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "b@x.io", 10, 1)

	claimed, err := env.Engine.ClaimSlot(env.Ctx, task.ID, "w@x.io")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.RequiredWorkers != 0 || claimed.Open() {
		t.Fatalf("expected task to be full: %+v", claimed)
	}
	_, err = env.Engine.ClaimSlot(env.Ctx, task.ID, "w2@x.io")
	var ce engine.ConflictError
	if !errors.As(err, &ce) || ce.Status != "full" {
		t.Fatalf("expected full conflict, got %v", err)
	}
	open, err := env.Engine.ListOpenTasks(env.Ctx)
	if err != nil || len(open) != 0 {
		t.Fatalf("full task should not be listed: %d %v", len(open), err)
	}
	_, err = env.Engine.ClaimSlot(env.Ctx, "missing", "w@x.io")
	var nf engine.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}

	restored, err := env.Engine.RestoreSlot(env.Ctx, task.ID, "b@x.io")
	if err != nil || restored.RequiredWorkers != 1 {
		t.Fatalf("restore: %+v %v", restored, err)
	}
}

func TestTaskListings(t *testing.T) {
	env := newTestEnv(t)
	cheap := env.task(t, "b@x.io", 5, 1)
	rich := env.task(t, "b@x.io", 90, 1)
	env.task(t, "other@x.io", 30, 0)

	popular, err := env.Engine.ListPopularTasks(env.Ctx, 2)
	if err != nil {
		t.Fatalf("popular: %v", err)
	}
	if len(popular) != 2 || popular[0].ID != rich.ID {
		t.Fatalf("expected highest payout first: %+v", popular)
	}
	mine, err := env.Engine.ListTasksByBuyer(env.Ctx, "b@x.io")
	if err != nil || len(mine) != 2 {
		t.Fatalf("by buyer: %d %v", len(mine), err)
	}
	open, err := env.Engine.ListOpenTasks(env.Ctx)
	if err != nil || len(open) != 2 || open[0].ID != cheap.ID {
		t.Fatalf("open tasks: %+v %v", open, err)
	}
	all, err := env.Engine.ListAllTasks(env.Ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("all tasks: %d %v", len(all), err)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Submit(env.Ctx, engine.SubmitOptions{TaskID: "missing", WorkerEmail: "w@x.io"})
	expectValidation(t, err, "task_id")
	_, err = env.Engine.Submit(env.Ctx, engine.SubmitOptions{TaskID: "x"})
	expectValidation(t, err, "worker_email")
}

func TestListByWorkerPagination(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "b@x.io", 10, 20)
	var ids []string
	for i := 0; i < 7; i++ {
		ids = append(ids, env.submit(t, task.ID, "w@x.io").ID)
	}
	env.submit(t, task.ID, "other@x.io")

	first, err := env.Engine.ListByWorker(env.Ctx, "w@x.io", 0, 0)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if first.TotalSubmissions != 7 || len(first.Submissions) != 5 || first.Submissions[0].ID != ids[0] {
		t.Fatalf("unexpected first page: total=%d len=%d", first.TotalSubmissions, len(first.Submissions))
	}
	second, err := env.Engine.ListByWorker(env.Ctx, "w@x.io", 2, 5)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if second.TotalSubmissions != 7 || len(second.Submissions) != 2 || second.Submissions[1].ID != ids[6] {
		t.Fatalf("unexpected second page: %+v", second)
	}
	beyond, err := env.Engine.ListByWorker(env.Ctx, "w@x.io", 9, 5)
	if err != nil || len(beyond.Submissions) != 0 || beyond.TotalSubmissions != 7 {
		t.Fatalf("page past the end: %+v %v", beyond, err)
	}
	capped, err := env.Engine.ListByWorker(env.Ctx, "w@x.io", 1, 1000)
	if err != nil || len(capped.Submissions) != 7 {
		t.Fatalf("capped page: %d %v", len(capped.Submissions), err)
	}
	_, err = env.Engine.ListByWorker(env.Ctx, "w@x.io", -1, 5)
	expectValidation(t, err, "page")
	_, err = env.Engine.ListByWorker(env.Ctx, "w@x.io", 1, -5)
	expectValidation(t, err, "limit")
}

func TestSubmissionQueues(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "w@x.io", domain.RoleWorker)
	task := env.task(t, "b@x.io", 10, 5)
	a := env.submit(t, task.ID, "w@x.io")
	env.submit(t, task.ID, "w@x.io")
	if _, err := env.Engine.Approve(env.Ctx, a.ID, "b@x.io"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	approved, err := env.Engine.ListApprovedByWorker(env.Ctx, "w@x.io")
	if err != nil || len(approved) != 1 || approved[0].ID != a.ID {
		t.Fatalf("approved queue: %+v %v", approved, err)
	}
	pending, err := env.Engine.ListPendingByBuyer(env.Ctx, "b@x.io")
	if err != nil || len(pending) != 1 || pending[0].ID == a.ID {
		t.Fatalf("pending queue: %+v %v", pending, err)
	}
}

func TestFinalizeInsufficientBalanceLeavesPending(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "w@x.io", domain.RoleWorker)
	env.setBalance(t, "w@x.io", 80)
	w, err := env.Engine.RequestWithdrawal(env.Ctx, engine.WithdrawalRequestOptions{WorkerEmail: "w@x.io", WithdrawalCoin: 100, WithdrawalAmount: "5"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_, err = env.Engine.Finalize(env.Ctx, engine.FinalizeOptions{ID: w.ID, Actor: "admin@x.io"})
	var ib engine.InsufficientBalanceError
	if !errors.As(err, &ib) || ib.Balance != 80 || ib.Amount != 100 {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if env.balance(t, "w@x.io") != 80 {
		t.Fatalf("balance changed on failed finalize")
	}
	stored, err := env.Engine.GetWithdrawal(env.Ctx, w.ID)
	if err != nil || stored.Status != domain.WithdrawalPending {
		t.Fatalf("withdrawal should stay pending: %+v %v", stored, err)
	}
	pending, _ := env.Engine.ListPendingWithdrawals(env.Ctx)
	if len(pending) != 1 {
		t.Fatalf("expected withdrawal in the admin queue, got %d", len(pending))
	}
}

func TestFinalizeDebitsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "w@x.io", domain.RoleWorker)
	env.setBalance(t, "w@x.io", 120)
	w, err := env.Engine.RequestWithdrawal(env.Ctx, engine.WithdrawalRequestOptions{WorkerEmail: "w@x.io", WithdrawalCoin: 100})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	done, err := env.Engine.Finalize(env.Ctx, engine.FinalizeOptions{ID: w.ID, Status: domain.WithdrawalCompleted, Amount: 100, WorkerEmail: "w@x.io", Actor: "admin@x.io"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if done.Status != domain.WithdrawalCompleted || env.balance(t, "w@x.io") != 20 {
		t.Fatalf("unexpected finalize result: %+v balance=%d", done, env.balance(t, "w@x.io"))
	}
	_, err = env.Engine.Finalize(env.Ctx, engine.FinalizeOptions{ID: w.ID, Actor: "admin@x.io"})
	var ce engine.ConflictError
	if !errors.As(err, &ce) || ce.Status != domain.WithdrawalCompleted {
		t.Fatalf("expected conflict on second finalize, got %v", err)
	}
	if env.balance(t, "w@x.io") != 20 {
		t.Fatalf("second finalize debited again")
	}
	mine, err := env.Engine.ListWithdrawalsByWorker(env.Ctx, "w@x.io")
	if err != nil || len(mine) != 1 {
		t.Fatalf("worker withdrawals: %d %v", len(mine), err)
	}
}

func TestFinalizeValidation(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "w@x.io", domain.RoleWorker)
	_, err := env.Engine.RequestWithdrawal(env.Ctx, engine.WithdrawalRequestOptions{WorkerEmail: "w@x.io", WithdrawalCoin: 0})
	expectValidation(t, err, "withdrawal_coin")
	_, err = env.Engine.RequestWithdrawal(env.Ctx, engine.WithdrawalRequestOptions{WorkerEmail: "w@x.io", WithdrawalCoin: 5, WithdrawalAmount: "-1"})
	expectValidation(t, err, "withdrawal_amount")

	w, err := env.Engine.RequestWithdrawal(env.Ctx, engine.WithdrawalRequestOptions{WorkerEmail: "w@x.io", WithdrawalCoin: 5})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_, err = env.Engine.Finalize(env.Ctx, engine.FinalizeOptions{ID: w.ID, Status: "rejected"})
	expectValidation(t, err, "status")
	_, err = env.Engine.Finalize(env.Ctx, engine.FinalizeOptions{ID: w.ID, Amount: 6})
	expectValidation(t, err, "withdrawal_coin")
	_, err = env.Engine.Finalize(env.Ctx, engine.FinalizeOptions{ID: w.ID, WorkerEmail: "x@x.io"})
	expectValidation(t, err, "worker_email")
	_, err = env.Engine.Finalize(env.Ctx, engine.FinalizeOptions{ID: "missing"})
	var nf engine.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "withdrawal" {
		t.Fatalf("expected withdrawal not found, got %v", err)
	}
}

func TestRecordPaymentAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.account(t, "b@x.io", domain.RoleBuyer)
	env.account(t, "w@x.io", domain.RoleWorker)
	for _, p := range []engine.PaymentOptions{
		{Email: "b@x.io", Price: "9.99", Coins: 100, TransactionID: "tx-1"},
		{Email: "b@x.io", Price: "0.01", Coins: 1, TransactionID: "tx-2"},
	} {
		if _, err := env.Engine.RecordPayment(env.Ctx, p); err != nil {
			t.Fatalf("record %s: %v", p.TransactionID, err)
		}
	}
	_, err := env.Engine.RecordPayment(env.Ctx, engine.PaymentOptions{Email: "b@x.io", Price: "1", Coins: 1, TransactionID: "tx-1"})
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected duplicate transaction conflict, got %v", err)
	}
	_, err = env.Engine.RecordPayment(env.Ctx, engine.PaymentOptions{Email: "b@x.io", Price: "abc", Coins: 1, TransactionID: "tx-3"})
	expectValidation(t, err, "price")
	if env.balance(t, "b@x.io") != 101 {
		t.Fatalf("expected 101 coins after payments, got %d", env.balance(t, "b@x.io"))
	}
	payments, err := env.Engine.ListPayments(env.Ctx, "b@x.io")
	if err != nil || len(payments) != 2 {
		t.Fatalf("payments: %d %v", len(payments), err)
	}

	task := env.task(t, "b@x.io", 40, 2)
	env.task(t, "b@x.io", 10, 0)
	s := env.submit(t, task.ID, "w@x.io")
	env.submit(t, task.ID, "w@x.io")
	if _, err := env.Engine.Approve(env.Ctx, s.ID, "b@x.io"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	admin, err := env.Engine.AdminStats(env.Ctx)
	if err != nil {
		t.Fatalf("admin stats: %v", err)
	}
	if admin.TotalWorkers != 1 || admin.TotalBuyers != 1 || admin.TotalAvailableCoin != 141 || admin.TotalPayments.String() != "10" {
		t.Fatalf("unexpected admin stats: %+v", admin)
	}
	buyer, err := env.Engine.BuyerStats(env.Ctx, "b@x.io")
	if err != nil {
		t.Fatalf("buyer stats: %v", err)
	}
	if buyer.TotalTasks != 2 || buyer.PendingTasks != 1 || buyer.TotalPayments.String() != "10" {
		t.Fatalf("unexpected buyer stats: %+v", buyer)
	}
	worker, err := env.Engine.WorkerStats(env.Ctx, "w@x.io")
	if err != nil {
		t.Fatalf("worker stats: %v", err)
	}
	if worker.TotalSubmissions != 2 || worker.TotalPendingSubmissions != 1 || worker.TotalEarnings != 40 {
		t.Fatalf("unexpected worker stats: %+v", worker)
	}
}

func TestDeadlineExceededMapsToStoreError(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(env.Ctx, 0)
	defer cancel()
	_, err := env.Engine.CreateTask(ctx, engine.TaskCreateOptions{BuyerEmail: "b@x.io", TaskTitle: "t", PayableAmount: 1})
	var se engine.StoreError
	if !errors.As(err, &se) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected store error with deadline, got %v", err)
	}
	all, _ := env.Engine.ListAllTasks(env.Ctx)
	if len(all) != 0 {
		t.Fatalf("expired context created a task")
	}
}
