package engine

import (
	"context"
	"strings"

	"doandearn/internal/domain"
	"doandearn/internal/events"
	"doandearn/internal/repo"
)

// SubmitOptions are parameters for a worker submission.
type SubmitOptions struct {
	TaskID            string
	WorkerEmail       string
	WorkerName        string
	SubmissionDetails string
}

// Submit records a pending submission. Buyer, title and payable amount are
// copied from the task. Slot availability is the claim flow's concern.
func (e Engine) Submit(ctx context.Context, opts SubmitOptions) (domain.Submission, error) {
	if strings.TrimSpace(opts.TaskID) == "" {
		return domain.Submission{}, ValidationError{Field: "task_id", Reason: "is required"}
	}
	if strings.TrimSpace(opts.WorkerEmail) == "" {
		return domain.Submission{}, ValidationError{Field: "worker_email", Reason: "is required"}
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, "submission.create")
	if err != nil {
		return domain.Submission{}, err
	}
	defer tx.Rollback()

	task, err := e.Repo.GetTaskTx(ctx, tx, opts.TaskID)
	if err != nil {
		lerr := lookupErr("task", opts.TaskID, "task.get", err)
		if isNotFound(lerr) {
			return domain.Submission{}, ValidationError{Field: "task_id", Reason: "references a task that does not exist"}
		}
		return domain.Submission{}, lerr
	}
	now := e.nowString()
	s := domain.Submission{
		ID:                newID(),
		TaskID:            task.ID,
		TaskTitle:         task.TaskTitle,
		WorkerEmail:       opts.WorkerEmail,
		WorkerName:        opts.WorkerName,
		BuyerEmail:        task.BuyerEmail,
		PayableAmount:     task.PayableAmount,
		SubmissionDetails: opts.SubmissionDetails,
		Status:            domain.SubmissionPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.Repo.InsertSubmission(ctx, tx, s); err != nil {
		return domain.Submission{}, storeErr("submission.insert", err)
	}
	if err := e.eventWriter().Append(ctx, tx, "submission.created", "submission", s.ID, s.WorkerEmail, events.EventPayload{
		"task_id":        s.TaskID,
		"payable_amount": s.PayableAmount,
	}); err != nil {
		return domain.Submission{}, storeErr("submission.create", err)
	}
	if err := e.commit(tx, "submission.created", "submission_id", s.ID, "task_id", s.TaskID); err != nil {
		return domain.Submission{}, err
	}
	return s, nil
}

// Approve marks a pending submission approved and credits the worker with
// the parent task's payable amount, atomically.
func (e Engine) Approve(ctx context.Context, submissionID, actor string) (domain.Submission, error) {
	return e.finalizeSubmission(ctx, submissionID, actor, domain.SubmissionApproved)
}

// Reject marks a pending submission rejected and restores one slot on its
// task, atomically.
func (e Engine) Reject(ctx context.Context, submissionID, actor string) (domain.Submission, error) {
	return e.finalizeSubmission(ctx, submissionID, actor, domain.SubmissionRejected)
}

func (e Engine) finalizeSubmission(ctx context.Context, id, actor, to string) (domain.Submission, error) {
	op := "submission." + to
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	tx, err := e.begin(ctx, op)
	if err != nil {
		return domain.Submission{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetSubmissionTx(ctx, tx, id)
	if err != nil {
		return domain.Submission{}, lookupErr("submission", id, "submission.get", err)
	}
	if s.Terminal() {
		return domain.Submission{}, ConflictError{Kind: "submission", ID: id, Status: s.Status}
	}
	task, err := e.Repo.GetTaskTx(ctx, tx, s.TaskID)
	if err != nil {
		return domain.Submission{}, lookupErr("task", s.TaskID, "task.get", err)
	}
	now := e.nowString()
	ok, err := e.Repo.TransitionSubmission(ctx, tx, id, domain.SubmissionPending, to, now)
	if err != nil {
		return domain.Submission{}, storeErr(op, err)
	}
	if !ok {
		// Another transaction finalized it between our read and write.
		current, err := e.Repo.GetSubmissionTx(ctx, tx, id)
		return domain.Submission{}, lostRace("submission", id, op, current.Status, err)
	}
	payload := events.EventPayload{"task_id": task.ID, "worker_email": s.WorkerEmail}
	switch to {
	case domain.SubmissionApproved:
		if err := e.creditTx(ctx, tx, s.WorkerEmail, task.PayableAmount, actor, "submission:"+id); err != nil {
			return domain.Submission{}, err
		}
		payload["credited"] = task.PayableAmount
	case domain.SubmissionRejected:
		if err := e.restoreSlotTx(ctx, tx, task.ID, actor); err != nil {
			return domain.Submission{}, err
		}
	}
	if err := e.eventWriter().Append(ctx, tx, op, "submission", id, actor, payload); err != nil {
		return domain.Submission{}, storeErr(op, err)
	}
	if err := e.commit(tx, op, "submission_id", id, "task_id", task.ID, "worker", s.WorkerEmail); err != nil {
		return domain.Submission{}, err
	}
	s.Status = to
	s.UpdatedAt = now
	return s, nil
}

func (e Engine) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	s, err := e.Repo.GetSubmission(ctx, id)
	if err != nil {
		return domain.Submission{}, lookupErr("submission", id, "submission.get", err)
	}
	return s, nil
}

// ListByWorker pages a worker's submissions, oldest first. Zero page or limit
// select the defaults; limit is capped at the configured maximum.
func (e Engine) ListByWorker(ctx context.Context, email string, page, limit int) (domain.SubmissionPage, error) {
	if page < 0 {
		return domain.SubmissionPage{}, ValidationError{Field: "page", Reason: "must be >= 1"}
	}
	if limit < 0 {
		return domain.SubmissionPage{}, ValidationError{Field: "limit", Reason: "must be >= 1"}
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = e.Config.Pagination.DefaultLimit
	}
	if max := e.Config.Pagination.MaxLimit; max > 0 && limit > max {
		limit = max
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	f := repo.SubmissionFilters{WorkerEmail: email}
	total, err := e.Repo.CountSubmissions(ctx, f)
	if err != nil {
		return domain.SubmissionPage{}, storeErr("submission.count", err)
	}
	f.Limit = limit
	f.Offset = (page - 1) * limit
	items, err := e.Repo.ListSubmissions(ctx, f)
	if err != nil {
		return domain.SubmissionPage{}, storeErr("submission.list", err)
	}
	return domain.SubmissionPage{Submissions: items, TotalSubmissions: total}, nil
}

func (e Engine) ListApprovedByWorker(ctx context.Context, email string) ([]domain.Submission, error) {
	return e.listSubmissions(ctx, repo.SubmissionFilters{WorkerEmail: email, Status: domain.SubmissionApproved})
}

func (e Engine) ListPendingByBuyer(ctx context.Context, email string) ([]domain.Submission, error) {
	return e.listSubmissions(ctx, repo.SubmissionFilters{BuyerEmail: email, Status: domain.SubmissionPending})
}

func (e Engine) listSubmissions(ctx context.Context, f repo.SubmissionFilters) ([]domain.Submission, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	items, err := e.Repo.ListSubmissions(ctx, f)
	return items, storeErr("submission.list", err)
}

func isNotFound(err error) bool {
	_, ok := err.(NotFoundError)
	return ok
}
