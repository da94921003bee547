package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"doandearn/internal/domain"
	"doandearn/internal/engine"
	"doandearn/internal/repo"
)

func (a api) registerPayments(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID:   "record-payment",
		Method:        http.MethodPost,
		Path:          "/payments",
		Summary:       "Record a confirmed coin purchase",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body PaymentRequest `json:"body"`
	}) (*struct {
		Body PaymentResponse `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		email, _, err := a.requireRole(ctx, domain.RoleBuyer)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := a.engine.RecordPayment(ctx, engine.PaymentOptions{
			Email:         email,
			Price:         input.Body.Price,
			Coins:         input.Body.Coins,
			TransactionID: input.Body.TransactionID,
			Actor:         email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PaymentResponse `json:"body"`
		}{Body: paymentResponse(p)}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-payments",
		Method:      http.MethodGet,
		Path:        "/payments",
		Summary:     "Payments of the caller, or of any account for admins",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Email string `query:"email"`
	}) (*struct {
		Body []PaymentResponse `json:"body"`
	}, error) {
		email, _, err := a.caller(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		target := email
		if input.Email != "" {
			target = input.Email
		}
		if _, _, err := a.requireSelfOrAdmin(ctx, target); err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListPayments(ctx, target)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PaymentResponse `json:"body"`
		}{Body: mapPayments(items)}, nil
	})
}

func (a api) registerStats(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID: "admin-stats",
		Method:      http.MethodGet,
		Path:        "/stats/admin",
		Summary:     "Marketplace totals",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body AdminStatsResponse `json:"body"`
	}, error) {
		if _, _, err := a.requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		s, err := a.engine.AdminStats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdminStatsResponse `json:"body"`
		}{Body: AdminStatsResponse{
			TotalWorkers:       s.TotalWorkers,
			TotalBuyers:        s.TotalBuyers,
			TotalAvailableCoin: s.TotalAvailableCoin,
			TotalPayments:      s.TotalPayments.String(),
		}}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "worker-stats",
		Method:      http.MethodGet,
		Path:        "/stats/worker",
		Summary:     "The caller's submission and earning totals",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.WorkerStats `json:"body"`
	}, error) {
		email, _, err := a.requireRole(ctx, domain.RoleWorker)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := a.engine.WorkerStats(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkerStats `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "buyer-stats",
		Method:      http.MethodGet,
		Path:        "/stats/buyer",
		Summary:     "The caller's task and payment totals",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BuyerStatsResponse `json:"body"`
	}, error) {
		email, _, err := a.requireRole(ctx, domain.RoleBuyer)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := a.engine.BuyerStats(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BuyerStatsResponse `json:"body"`
		}{Body: BuyerStatsResponse{
			TotalTasks:    s.TotalTasks,
			PendingTasks:  s.PendingTasks,
			TotalPayments: s.TotalPayments.String(),
		}}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func (a api) registerEvents(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"account,task,submission,withdrawal,payment"`
		EntityID   string `query:"entity_id"`
		Actor      string `query:"actor"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, _, err := a.requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = parsed
		}
		items, err := a.engine.ListEvents(ctx, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Actor:      input.Actor,
			Before:     before,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
