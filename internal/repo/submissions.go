package repo

import (
	"context"
	"database/sql"

	"doandearn/internal/domain"
)

const submissionColumns = `id,task_id,task_title,worker_email,worker_name,buyer_email,payable_amount,submission_details,status,created_at,updated_at`

func scanSubmission(row rowScanner) (domain.Submission, error) {
	var s domain.Submission
	err := row.Scan(&s.ID, &s.TaskID, &s.TaskTitle, &s.WorkerEmail, &s.WorkerName, &s.BuyerEmail,
		&s.PayableAmount, &s.SubmissionDetails, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertSubmission(ctx context.Context, tx *sql.Tx, s domain.Submission) error {
	_, err := r.exec(ctx, tx, `INSERT INTO submissions(id,task_id,task_title,worker_email,worker_name,buyer_email,payable_amount,submission_details,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.TaskID, s.TaskTitle, s.WorkerEmail, s.WorkerName, s.BuyerEmail, s.PayableAmount, s.SubmissionDetails, s.Status, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	return r.GetSubmissionTx(ctx, nil, id)
}

func (r Repo) GetSubmissionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Submission, error) {
	return scanSubmission(r.queryRow(ctx, tx, `SELECT `+submissionColumns+` FROM submissions WHERE id=?`, id))
}

// SubmissionFilters narrow ListSubmissions and CountSubmissions.
type SubmissionFilters struct {
	WorkerEmail string
	BuyerEmail  string
	Status      string
	Limit       int
	Offset      int
}

func (f SubmissionFilters) where() whereClause {
	var w whereClause
	if f.WorkerEmail != "" {
		w.add("worker_email=?", f.WorkerEmail)
	}
	if f.BuyerEmail != "" {
		w.add("buyer_email=?", f.BuyerEmail)
	}
	if f.Status != "" {
		w.add("status=?", f.Status)
	}
	return w
}

func (r Repo) ListSubmissions(ctx context.Context, f SubmissionFilters) ([]domain.Submission, error) {
	w := f.where()
	rows, err := r.query(ctx, nil, `SELECT `+submissionColumns+` FROM submissions`+w.String()+` ORDER BY created_at ASC, id ASC`+limitOffset(f.Limit, f.Offset), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) CountSubmissions(ctx context.Context, f SubmissionFilters) (int64, error) {
	w := f.where()
	return r.count(ctx, nil, `SELECT COUNT(*) FROM submissions`+w.String(), w.args...)
}

func (r Repo) SumPayableAmount(ctx context.Context, f SubmissionFilters) (int64, error) {
	w := f.where()
	return r.count(ctx, nil, `SELECT CAST(SUM(payable_amount) AS BIGINT) FROM submissions`+w.String(), w.args...)
}

// TransitionSubmission moves a submission from one status to another and
// reports false when its current status is not from.
func (r Repo) TransitionSubmission(ctx context.Context, tx *sql.Tx, id, from, to, now string) (bool, error) {
	res, err := r.exec(ctx, tx, `UPDATE submissions SET status=?, updated_at=? WHERE id=? AND status=?`, to, now, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
