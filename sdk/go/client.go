package doandearnsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Do and Earn HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

type Account struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	PhotoURL      string `json:"photo_url,omitempty"`
	Role          string `json:"role"`
	AvailableCoin int64  `json:"availableCoin"`
	CreatedAt     string `json:"created_at"`
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
}

// NewTask is the body of CreateTask.
type NewTask struct {
	TaskTitle       string `json:"task_title"`
	TaskDetail      string `json:"task_detail,omitempty"`
	SubmissionInfo  string `json:"submission_info,omitempty"`
	TaskImageURL    string `json:"task_image_url,omitempty"`
	PayableAmount   int64  `json:"payable_amount"`
	RequiredWorkers int64  `json:"required_workers"`
	CompletionDate  string `json:"completion_date,omitempty"`
}

type Submission struct {
	ID                string `json:"id"`
	TaskID            string `json:"task_id"`
	TaskTitle         string `json:"task_title"`
	WorkerEmail       string `json:"worker_email"`
	BuyerEmail        string `json:"buyer_email"`
	PayableAmount     int64  `json:"payable_amount"`
	SubmissionDetails string `json:"submission_details"`
	Status            string `json:"status"`
}

type SubmissionPage struct {
	Submissions      []Submission `json:"submissions"`
	TotalSubmissions int64        `json:"totalSubmissions"`
}

type Withdrawal struct {
	ID               string `json:"id"`
	WorkerEmail      string `json:"worker_email"`
	WithdrawalCoin   int64  `json:"withdrawal_coin"`
	WithdrawalAmount string `json:"withdrawal_amount"`
	PaymentSystem    string `json:"payment_system,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
	Status           string `json:"status"`
}

// WithdrawalRequest is the body of RequestWithdrawal.
type WithdrawalRequest struct {
	WithdrawalCoin   int64  `json:"withdrawal_coin"`
	WithdrawalAmount string `json:"withdrawal_amount,omitempty"`
	PaymentSystem    string `json:"payment_system,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
}

type Payment struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Price         string `json:"price"`
	Coins         int64  `json:"coins"`
	TransactionID string `json:"transaction_id"`
	CreatedAt     string `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type Token struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IssueToken exchanges an account email for a bearer token and keeps it on
// the client.
func (c *Client) IssueToken(ctx context.Context, email string) (Token, error) {
	var resp Token
	if err := c.do(ctx, http.MethodPost, "auth/token", map[string]string{"email": email}, &resp); err != nil {
		return Token{}, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// Register creates a buyer or worker account.
func (c *Client) Register(ctx context.Context, email, name, role string) (Account, error) {
	body := map[string]string{"email": email, "name": name, "role": role}
	var resp Account
	err := c.do(ctx, http.MethodPost, "users", body, &resp)
	return resp, err
}

// Me returns the caller's account.
func (c *Client) Me(ctx context.Context) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// Balance returns an account's available coins.
func (c *Client) Balance(ctx context.Context, email string) (int64, error) {
	var resp struct {
		AvailableCoin int64 `json:"availableCoin"`
	}
	err := c.do(ctx, http.MethodGet, "users/"+url.PathEscape(email)+"/balance", nil, &resp)
	return resp.AvailableCoin, err
}

func (c *Client) SetRole(ctx context.Context, email, role string) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodPatch, "users/"+url.PathEscape(email)+"/role", map[string]string{"role": role}, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", t, &resp)
	return resp, err
}

// Tasks lists tasks with free slots.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

func (c *Client) Task(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ClaimTask takes one worker slot of a task.
func (c *Client) ClaimTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/claim", nil, &resp)
	return resp, err
}

func (c *Client) Submit(ctx context.Context, taskID, details string) (Submission, error) {
	body := map[string]string{"task_id": taskID, "submission_details": details}
	var resp Submission
	err := c.do(ctx, http.MethodPost, "submissions", body, &resp)
	return resp, err
}

// Submissions pages the caller's submissions. Zero page or limit use the
// server defaults.
func (c *Client) Submissions(ctx context.Context, page, limit int) (SubmissionPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp SubmissionPage
	err := c.do(ctx, http.MethodGet, withQuery("submissions", q), nil, &resp)
	return resp, err
}

// PendingSubmissions lists pending submissions on the caller's tasks.
func (c *Client) PendingSubmissions(ctx context.Context) ([]Submission, error) {
	var resp []Submission
	err := c.do(ctx, http.MethodGet, "submissions/pending", nil, &resp)
	return resp, err
}

// Approve approves a submission, crediting its worker.
func (c *Client) Approve(ctx context.Context, id string) (Submission, error) {
	var resp Submission
	err := c.do(ctx, http.MethodPost, "submissions/"+url.PathEscape(id)+"/approve", nil, &resp)
	return resp, err
}

// Reject rejects a submission, restoring a slot on its task.
func (c *Client) Reject(ctx context.Context, id string) (Submission, error) {
	var resp Submission
	err := c.do(ctx, http.MethodPost, "submissions/"+url.PathEscape(id)+"/reject", nil, &resp)
	return resp, err
}

func (c *Client) RequestWithdrawal(ctx context.Context, w WithdrawalRequest) (Withdrawal, error) {
	var resp Withdrawal
	err := c.do(ctx, http.MethodPost, "withdrawals", w, &resp)
	return resp, err
}

// FinalizeWithdrawal marks a withdrawal approved or completed and debits the worker.
func (c *Client) FinalizeWithdrawal(ctx context.Context, id, status string) (Withdrawal, error) {
	body := map[string]string{}
	if status != "" {
		body["status"] = status
	}
	var resp Withdrawal
	err := c.do(ctx, http.MethodPatch, "withdrawals/"+url.PathEscape(id), body, &resp)
	return resp, err
}

// RecordPayment records a confirmed coin purchase.
func (c *Client) RecordPayment(ctx context.Context, price string, coins int64, transactionID string) (Payment, error) {
	body := map[string]any{"price": price, "coins": coins, "transaction_id": transactionID}
	var resp Payment
	err := c.do(ctx, http.MethodPost, "payments", body, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	basePath := strings.Trim(c.BasePath, "/")
	base := strings.TrimRight(c.BaseURL, "/")
	if basePath == "" {
		return base
	}
	return base + "/" + basePath
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}
