package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"doandearn/internal/domain"
)

const taskColumns = `id,buyer_email,buyer_name,task_title,task_detail,submission_info,COALESCE(task_image_url,''),payable_amount,required_workers,COALESCE(completion_date,''),created_at,updated_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.BuyerEmail, &t.BuyerName, &t.TaskTitle, &t.TaskDetail, &t.SubmissionInfo, &t.TaskImageURL,
		&t.PayableAmount, &t.RequiredWorkers, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.exec(ctx, tx, `INSERT INTO tasks(id,buyer_email,buyer_name,task_title,task_detail,submission_info,task_image_url,payable_amount,required_workers,completion_date,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.BuyerEmail, t.BuyerName, t.TaskTitle, t.TaskDetail, t.SubmissionInfo, nullable(t.TaskImageURL),
		t.PayableAmount, t.RequiredWorkers, nullable(t.CompletionDate), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.GetTaskTx(ctx, nil, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTask(r.queryRow(ctx, tx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

// TaskFilters narrow ListTasks.
type TaskFilters struct {
	BuyerEmail string
	OpenOnly   bool
	// OrderBy is one of created, completion_date or popular.
	OrderBy string
	Limit   int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var w whereClause
	if f.BuyerEmail != "" {
		w.add("buyer_email=?", f.BuyerEmail)
	}
	if f.OpenOnly {
		w.add("required_workers>0")
	}
	var order string
	switch f.OrderBy {
	case "", "created":
		order = " ORDER BY created_at ASC, id ASC"
	case "completion_date":
		order = " ORDER BY COALESCE(completion_date,'') DESC, id ASC"
	case "popular":
		order = " ORDER BY payable_amount DESC, created_at ASC, id ASC"
	default:
		return nil, fmt.Errorf("invalid task order %q", f.OrderBy)
	}
	rows, err := r.query(ctx, nil, `SELECT `+taskColumns+` FROM tasks`+w.String()+order+limitOffset(f.Limit, 0), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TaskContent carries the editable fields; nil leaves a field unchanged.
type TaskContent struct {
	TaskTitle      *string
	TaskDetail     *string
	SubmissionInfo *string
}

func (r Repo) UpdateTaskContent(ctx context.Context, tx *sql.Tx, id string, c TaskContent, now string) error {
	var (
		fields []string
		args   []any
	)
	if c.TaskTitle != nil {
		fields = append(fields, "task_title=?")
		args = append(args, *c.TaskTitle)
	}
	if c.TaskDetail != nil {
		fields = append(fields, "task_detail=?")
		args = append(args, *c.TaskDetail)
	}
	if c.SubmissionInfo != nil {
		fields = append(fields, "submission_info=?")
		args = append(args, *c.SubmissionInfo)
	}
	fields = append(fields, "updated_at=?")
	args = append(args, now, id)
	return r.execAffected(ctx, tx, fmt.Sprintf(`UPDATE tasks SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	return r.execAffected(ctx, tx, `DELETE FROM tasks WHERE id=?`, id)
}

// IncrementRequiredWorkers restores one slot.
func (r Repo) IncrementRequiredWorkers(ctx context.Context, tx *sql.Tx, id, now string) error {
	return r.execAffected(ctx, tx, `UPDATE tasks SET required_workers=required_workers+1, updated_at=? WHERE id=?`, now, id)
}

// DecrementRequiredWorkers takes one slot if any remain and reports whether it did.
func (r Repo) DecrementRequiredWorkers(ctx context.Context, tx *sql.Tx, id, now string) (bool, error) {
	res, err := r.exec(ctx, tx, `UPDATE tasks SET required_workers=required_workers-1, updated_at=? WHERE id=? AND required_workers>0`, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) CountTasksByBuyer(ctx context.Context, email string) (int64, error) {
	return r.count(ctx, nil, `SELECT COUNT(*) FROM tasks WHERE buyer_email=?`, email)
}

func (r Repo) CountOpenTasksByBuyer(ctx context.Context, email string) (int64, error) {
	return r.count(ctx, nil, `SELECT COUNT(*) FROM tasks WHERE buyer_email=? AND required_workers>0`, email)
}
