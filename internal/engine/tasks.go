package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"doandearn/internal/domain"
	"doandearn/internal/events"
	"doandearn/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	BuyerEmail      string
	BuyerName       string
	TaskTitle       string
	TaskDetail      string
	SubmissionInfo  string
	TaskImageURL    string
	PayableAmount   int64
	RequiredWorkers int64
	CompletionDate  string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.BuyerEmail) == "" {
		return domain.Task{}, ValidationError{Field: "buyer_email", Reason: "is required"}
	}
	if strings.TrimSpace(opts.TaskTitle) == "" {
		return domain.Task{}, ValidationError{Field: "task_title", Reason: "is required"}
	}
	if err := positive("payable_amount", opts.PayableAmount); err != nil {
		return domain.Task{}, err
	}
	if opts.RequiredWorkers < 0 {
		return domain.Task{}, ValidationError{Field: "required_workers", Reason: "must be >= 0"}
	}
	if opts.CompletionDate != "" {
		if _, err := parseDate(opts.CompletionDate); err != nil {
			return domain.Task{}, ValidationError{Field: "completion_date", Reason: "must be YYYY-MM-DD or RFC3339"}
		}
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "task.create")
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	now := e.nowString()
	t := domain.Task{
		ID:              newID(),
		BuyerEmail:      opts.BuyerEmail,
		BuyerName:       opts.BuyerName,
		TaskTitle:       strings.TrimSpace(opts.TaskTitle),
		TaskDetail:      opts.TaskDetail,
		SubmissionInfo:  opts.SubmissionInfo,
		TaskImageURL:    opts.TaskImageURL,
		PayableAmount:   opts.PayableAmount,
		RequiredWorkers: opts.RequiredWorkers,
		CompletionDate:  opts.CompletionDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, storeErr("task.insert", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "task.created", "task", t.ID, t.BuyerEmail, events.EventPayload{
		"payable_amount":   t.PayableAmount,
		"required_workers": t.RequiredWorkers,
	}); err != nil {
		return domain.Task{}, storeErr("task.create", err)
	}
	if err := e.commit(tx, "task.created", "task_id", t.ID, "buyer", t.BuyerEmail); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, lookupErr("task", id, "task.get", err)
	}
	return t, nil
}

// ListOpenTasks returns tasks that still accept submissions.
func (e Engine) ListOpenTasks(ctx context.Context) ([]domain.Task, error) {
	return e.listTasks(ctx, repo.TaskFilters{OpenOnly: true})
}

func (e Engine) ListAllTasks(ctx context.Context) ([]domain.Task, error) {
	return e.listTasks(ctx, repo.TaskFilters{})
}

// ListTasksByBuyer returns a buyer's tasks, latest completion date first.
func (e Engine) ListTasksByBuyer(ctx context.Context, email string) ([]domain.Task, error) {
	return e.listTasks(ctx, repo.TaskFilters{BuyerEmail: email, OrderBy: "completion_date"})
}

// ListPopularTasks returns the n best-paying tasks.
func (e Engine) ListPopularTasks(ctx context.Context, n int) ([]domain.Task, error) {
	if n <= 0 {
		n = 6
	}
	return e.listTasks(ctx, repo.TaskFilters{OrderBy: "popular", Limit: n})
}

func (e Engine) listTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.Repo.ListTasks(ctx, f)
	return items, storeErr("task.list", err)
}

// TaskEditOptions carry the editable task fields; nil leaves a field unchanged.
type TaskEditOptions struct {
	ID             string
	TaskTitle      *string
	TaskDetail     *string
	SubmissionInfo *string
	Actor          string
}

// EditTask updates title, detail and submission info only.
func (e Engine) EditTask(ctx context.Context, opts TaskEditOptions) (domain.Task, error) {
	if opts.TaskTitle != nil && strings.TrimSpace(*opts.TaskTitle) == "" {
		return domain.Task{}, ValidationError{Field: "task_title", Reason: "must not be empty"}
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "task.edit")
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	content := repo.TaskContent{
		TaskTitle:      opts.TaskTitle,
		TaskDetail:     opts.TaskDetail,
		SubmissionInfo: opts.SubmissionInfo,
	}
	if err := e.Repo.UpdateTaskContent(ctx, tx, opts.ID, content, e.nowString()); err != nil {
		return domain.Task{}, lookupErr("task", opts.ID, "task.edit", err)
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Task{}, lookupErr("task", opts.ID, "task.get", err)
	}
	changed := []string{}
	if opts.TaskTitle != nil {
		changed = append(changed, "task_title")
	}
	if opts.TaskDetail != nil {
		changed = append(changed, "task_detail")
	}
	if opts.SubmissionInfo != nil {
		changed = append(changed, "submission_info")
	}
	if err := e.eventWriter().Append(ctx, tx, "task.updated", "task", t.ID, opts.Actor, events.EventPayload{"fields": changed}); err != nil {
		return domain.Task{}, storeErr("task.edit", err)
	}
	if err := e.commit(tx, "task.updated", "task_id", t.ID); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// DeleteTask removes a task. Submissions against it are kept and keep its id.
func (e Engine) DeleteTask(ctx context.Context, id, actor string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "task.delete")
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return lookupErr("task", id, "task.delete", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "task.deleted", "task", id, actor, nil); err != nil {
		return storeErr("task.delete", err)
	}
	return e.commit(tx, "task.deleted", "task_id", id)
}

// ClaimSlot takes one of a task's remaining slots at listing/claim time.
func (e Engine) ClaimSlot(ctx context.Context, id, actor string) (domain.Task, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "task.claim")
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	ok, err := e.Repo.DecrementRequiredWorkers(ctx, tx, id, e.nowString())
	if err != nil {
		return domain.Task{}, storeErr("task.claim", err)
	}
	if !ok {
		if _, err := e.Repo.GetTaskTx(ctx, tx, id); err != nil {
			return domain.Task{}, lookupErr("task", id, "task.get", err)
		}
		return domain.Task{}, ConflictError{Kind: "task", ID: id, Status: "full"}
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, lookupErr("task", id, "task.get", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "task.slot_claimed", "task", id, actor, events.EventPayload{"required_workers": t.RequiredWorkers}); err != nil {
		return domain.Task{}, storeErr("task.claim", err)
	}
	if err := e.commit(tx, "task.slot_claimed", "task_id", id, "remaining", t.RequiredWorkers); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// RestoreSlot gives one slot back to a task.
func (e Engine) RestoreSlot(ctx context.Context, id, actor string) (domain.Task, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "task.restore_slot")
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.restoreSlotTx(ctx, tx, id, actor); err != nil {
		return domain.Task{}, err
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, lookupErr("task", id, "task.get", err)
	}
	if err := e.commit(tx, "task.slot_restored", "task_id", id, "remaining", t.RequiredWorkers); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) restoreSlotTx(ctx context.Context, tx *sql.Tx, id, actor string) error {
	if err := e.Repo.IncrementRequiredWorkers(ctx, tx, id, e.nowString()); err != nil {
		return lookupErr("task", id, "task.restore_slot", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "task.slot_restored", "task", id, actor, nil); err != nil {
		return storeErr("task.restore_slot", err)
	}
	return nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
