package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"doandearn/internal/domain"
	"doandearn/internal/engine"
)

type withdrawalOutput struct {
	Body domain.Withdrawal `json:"body"`
}

type withdrawalsOutput struct {
	Body []domain.Withdrawal `json:"body"`
}

func (a api) registerWithdrawals(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID:   "request-withdrawal",
		Method:        http.MethodPost,
		Path:          "/withdrawals",
		Summary:       "Request a payout",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body WithdrawalRequest `json:"body"`
	}) (*withdrawalOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		email, _, err := a.requireRole(ctx, domain.RoleWorker)
		if err != nil {
			return nil, handleError(err)
		}
		worker, err := a.engine.GetAccount(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		w, err := a.engine.RequestWithdrawal(ctx, engine.WithdrawalRequestOptions{
			WorkerEmail:      worker.Email,
			WorkerName:       worker.Name,
			WithdrawalCoin:   input.Body.WithdrawalCoin,
			WithdrawalAmount: input.Body.WithdrawalAmount,
			PaymentSystem:    input.Body.PaymentSystem,
			AccountNumber:    input.Body.AccountNumber,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &withdrawalOutput{Body: w}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-pending-withdrawals",
		Method:      http.MethodGet,
		Path:        "/withdrawals",
		Summary:     "Pending withdrawals",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*withdrawalsOutput, error) {
		if _, _, err := a.requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListPendingWithdrawals(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &withdrawalsOutput{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-my-withdrawals",
		Method:      http.MethodGet,
		Path:        "/withdrawals/mine",
		Summary:     "The caller's withdrawals",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*withdrawalsOutput, error) {
		email, _, err := a.requireRole(ctx, domain.RoleWorker)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListWithdrawalsByWorker(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &withdrawalsOutput{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "finalize-withdrawal",
		Method:      http.MethodPatch,
		Path:        "/withdrawals/{id}",
		Summary:     "Finalize a withdrawal and debit the worker",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusPaymentRequired,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body FinalizeWithdrawalRequest `json:"body"`
	}) (*withdrawalOutput, error) {
		actor, _, err := a.requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		w, err := a.engine.Finalize(ctx, engine.FinalizeOptions{
			ID:          input.ID,
			Status:      input.Body.Status,
			Amount:      input.Body.WithdrawalCoin,
			WorkerEmail: input.Body.WorkerEmail,
			Actor:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &withdrawalOutput{Body: w}, nil
	})
}
