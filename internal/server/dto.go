package server

import (
	"doandearn/internal/domain"
)

// Request payloads

type RegisterRequest struct {
	Email    string `json:"email" format:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`
	Role     string `json:"role" enum:"buyer,worker"`
}

type SetRoleRequest struct {
	Role string `json:"role" enum:"buyer,worker,admin"`
}

type SetBalanceRequest struct {
	AvailableCoin int64 `json:"availableCoin" minimum:"0"`
}

type CreateTaskRequest struct {
	TaskTitle       string `json:"task_title"`
	TaskDetail      string `json:"task_detail,omitempty"`
	SubmissionInfo  string `json:"submission_info,omitempty"`
	TaskImageURL    string `json:"task_image_url,omitempty"`
	PayableAmount   int64  `json:"payable_amount"`
	RequiredWorkers int64  `json:"required_workers"`
	CompletionDate  string `json:"completion_date,omitempty"`
}

type UpdateTaskRequest struct {
	TaskTitle      *string `json:"task_title,omitempty"`
	TaskDetail     *string `json:"task_detail,omitempty"`
	SubmissionInfo *string `json:"submission_info,omitempty"`
}

type SubmitRequest struct {
	TaskID            string `json:"task_id"`
	SubmissionDetails string `json:"submission_details,omitempty"`
}

type WithdrawalRequest struct {
	WithdrawalCoin   int64  `json:"withdrawal_coin"`
	WithdrawalAmount string `json:"withdrawal_amount,omitempty"`
	PaymentSystem    string `json:"payment_system,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
}

type FinalizeWithdrawalRequest struct {
	Status         string `json:"status,omitempty" enum:"approved,completed"`
	WithdrawalCoin int64  `json:"withdrawal_coin,omitempty"`
	WorkerEmail    string `json:"worker_email,omitempty"`
}

type PaymentRequest struct {
	Price         string `json:"price" example:"9.99"`
	Coins         int64  `json:"coins"`
	TransactionID string `json:"transaction_id"`
}

// Response payloads

type BalanceResponse struct {
	Email         string `json:"email"`
	AvailableCoin int64  `json:"availableCoin"`
}

// WorkerCardResponse is the public view of a top worker.
type WorkerCardResponse struct {
	Name          string `json:"name"`
	PhotoURL      string `json:"photo_url,omitempty"`
	AvailableCoin int64  `json:"availableCoin"`
}

type PaymentResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Price         string `json:"price"`
	Coins         int64  `json:"coins"`
	TransactionID string `json:"transaction_id"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type AdminStatsResponse struct {
	TotalWorkers       int64  `json:"totalWorkers"`
	TotalBuyers        int64  `json:"totalBuyers"`
	TotalAvailableCoin int64  `json:"totalAvailableCoin"`
	TotalPayments      string `json:"totalPayments"`
}

type BuyerStatsResponse struct {
	TotalTasks    int64  `json:"totalTasks"`
	PendingTasks  int64  `json:"pendingTasks"`
	TotalPayments string `json:"totalPayments"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func workerCards(items []domain.UserAccount) []WorkerCardResponse {
	out := make([]WorkerCardResponse, 0, len(items))
	for _, u := range items {
		out = append(out, WorkerCardResponse{Name: u.Name, PhotoURL: u.PhotoURL, AvailableCoin: u.AvailableCoin})
	}
	return out
}

func paymentResponse(p domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		Email:         p.Email,
		Price:         p.Price.String(),
		Coins:         p.Coins,
		TransactionID: p.TransactionID,
		CreatedAt:     p.CreatedAt,
	}
}

func mapPayments(items []domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(items))
	for _, p := range items {
		out = append(out, paymentResponse(p))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Actor:      e.Actor,
		Payload:    decodeJSONMap(e.Payload),
	}
}
