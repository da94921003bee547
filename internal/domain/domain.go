package domain

import "github.com/shopspring/decimal"

const (
	RoleBuyer  = "buyer"
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

const (
	WithdrawalPending   = "pending"
	WithdrawalApproved  = "approved"
	WithdrawalCompleted = "completed"
)

type UserAccount struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	PhotoURL      string `json:"photo_url,omitempty"`
	Role          string `json:"role" enum:"buyer,worker,admin"`
	AvailableCoin int64  `json:"availableCoin"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type Task struct {
	ID              string `json:"id"`
	BuyerEmail      string `json:"buyer_email"`
	BuyerName       string `json:"buyer_name,omitempty"`
	TaskTitle       string `json:"task_title"`
	TaskDetail      string `json:"task_detail"`
	SubmissionInfo  string `json:"submission_info"`
	TaskImageURL    string `json:"task_image_url,omitempty"`
	PayableAmount   int64  `json:"payable_amount"`
	RequiredWorkers int64  `json:"required_workers"`
	CompletionDate  string `json:"completion_date,omitempty"`
	CreatedAt       string `json:"created_at" format:"date-time"`
	UpdatedAt       string `json:"updated_at" format:"date-time"`
}

// Open reports whether workers may still submit against the task.
func (t Task) Open() bool {
	return t.RequiredWorkers > 0
}

type Submission struct {
	ID                string `json:"id"`
	TaskID            string `json:"task_id"`
	TaskTitle         string `json:"task_title"`
	WorkerEmail       string `json:"worker_email"`
	WorkerName        string `json:"worker_name,omitempty"`
	BuyerEmail        string `json:"buyer_email"`
	PayableAmount     int64  `json:"payable_amount"`
	SubmissionDetails string `json:"submission_details"`
	Status            string `json:"status" enum:"pending,approved,rejected"`
	CreatedAt         string `json:"created_at" format:"date-time"`
	UpdatedAt         string `json:"updated_at" format:"date-time"`
}

// Terminal reports whether the submission has been approved or rejected.
func (s Submission) Terminal() bool {
	return s.Status != SubmissionPending
}

type Withdrawal struct {
	ID               string `json:"id"`
	WorkerEmail      string `json:"worker_email"`
	WorkerName       string `json:"worker_name,omitempty"`
	WithdrawalCoin   int64  `json:"withdrawal_coin"`
	WithdrawalAmount string `json:"withdrawal_amount"`
	PaymentSystem    string `json:"payment_system,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
	Status           string `json:"status" enum:"pending,approved,completed"`
	CreatedAt        string `json:"created_at" format:"date-time"`
	UpdatedAt        string `json:"updated_at" format:"date-time"`
}

type Payment struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Price         decimal.Decimal `json:"price"`
	Coins         int64           `json:"coins"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     string          `json:"created_at"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Actor      string `json:"actor"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type SubmissionPage struct {
	Submissions      []Submission `json:"submissions"`
	TotalSubmissions int64        `json:"totalSubmissions"`
}

type AdminStats struct {
	TotalWorkers       int64           `json:"totalWorkers"`
	TotalBuyers        int64           `json:"totalBuyers"`
	TotalAvailableCoin int64           `json:"totalAvailableCoin"`
	TotalPayments      decimal.Decimal `json:"totalPayments"`
}

type WorkerStats struct {
	TotalSubmissions        int64 `json:"totalSubmissions"`
	TotalPendingSubmissions int64 `json:"totalPendingSubmissions"`
	TotalEarnings           int64 `json:"totalEarnings"`
}

type BuyerStats struct {
	TotalTasks    int64           `json:"totalTasks"`
	PendingTasks  int64           `json:"pendingTasks"`
	TotalPayments decimal.Decimal `json:"totalPayments"`
}
