package doandearnsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIssueTokenThenAuthenticatedCall(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/token":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["email"] != "w@example.com" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(Token{Token: "tok", Email: body["email"], Role: "worker"})
		case "/v1/me":
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(Account{Email: "w@example.com", Role: "worker", AvailableCoin: 10})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()
	if _, err := c.IssueToken(ctx, "w@example.com"); err != nil {
		t.Fatalf("issue token: %v", err)
	}
	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if me.AvailableCoin != 10 {
		t.Fatalf("unexpected account: %+v", me)
	}
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"code":"insufficient_balance","message":"balance 80 is below 100"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "key"
	_, err := c.FinalizeWithdrawal(context.Background(), "w1", "approved")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired || apiErr.Code != "insufficient_balance" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestEventsPageQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events" || r.URL.Query().Get("limit") != "2" || r.URL.Query().Get("cursor") != "7" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(PaginatedEvents{Items: []Event{{ID: 6}, {ID: 5}}, NextCursor: "5"})
	}))
	defer srv.Close()

	page, err := New(srv.URL).EventsPage(context.Background(), 2, "7")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor != "5" {
		t.Fatalf("unexpected page: %+v", page)
	}
}
