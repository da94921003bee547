package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"doandearn/internal/domain"
	"doandearn/internal/engine"
)

type emailPath struct {
	Email string `path:"email"`
}

func (a api) registerUsers(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Register a buyer or worker account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Status int
		Body   domain.UserAccount `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		u, created, err := a.engine.RegisterAccount(ctx, engine.RegisterOptions{
			Email:    input.Body.Email,
			Name:     input.Body.Name,
			PhotoURL: input.Body.PhotoURL,
			Role:     input.Body.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		return &struct {
			Status int
			Body   domain.UserAccount `json:"body"`
		}{Status: status, Body: u}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current account",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.UserAccount `json:"body"`
	}, error) {
		email, authErr := emailFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := a.engine.GetAccount(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.UserAccount `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List accounts",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role" enum:"buyer,worker,admin"`
	}) (*struct {
		Body []domain.UserAccount `json:"body"`
	}, error) {
		if _, _, err := a.requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListAccounts(ctx, input.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.UserAccount `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{email}",
		Summary:     "Get account",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *emailPath) (*struct {
		Body domain.UserAccount `json:"body"`
	}, error) {
		if _, _, err := a.requireSelfOrAdmin(ctx, input.Email); err != nil {
			return nil, handleError(err)
		}
		u, err := a.engine.GetAccount(ctx, input.Email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.UserAccount `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "set-user-role",
		Method:      http.MethodPatch,
		Path:        "/users/{email}/role",
		Summary:     "Change an account role",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Email string         `path:"email"`
		Body  SetRoleRequest `json:"body"`
	}) (*struct {
		Body domain.UserAccount `json:"body"`
	}, error) {
		actor, _, err := a.requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		u, err := a.engine.SetRole(ctx, input.Email, input.Body.Role, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.UserAccount `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID:   "delete-user",
		Method:        http.MethodDelete,
		Path:          "/users/{email}",
		Summary:       "Delete an account",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *emailPath) (*struct{}, error) {
		actor, _, err := a.requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		if err := a.engine.DeleteAccount(ctx, input.Email, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "get-balance",
		Method:      http.MethodGet,
		Path:        "/users/{email}/balance",
		Summary:     "Get an account balance",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *emailPath) (*struct {
		Body BalanceResponse `json:"body"`
	}, error) {
		if _, _, err := a.requireSelfOrAdmin(ctx, input.Email); err != nil {
			return nil, handleError(err)
		}
		coins, err := a.engine.GetBalance(ctx, input.Email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BalanceResponse `json:"body"`
		}{Body: BalanceResponse{Email: input.Email, AvailableCoin: coins}}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "set-balance",
		Method:      http.MethodPut,
		Path:        "/users/{email}/balance",
		Summary:     "Override an account balance",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Email string            `path:"email"`
		Body  SetBalanceRequest `json:"body"`
	}) (*struct {
		Body BalanceResponse `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actor, _, err := a.requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		u, err := a.engine.SetBalance(ctx, input.Email, input.Body.AvailableCoin, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BalanceResponse `json:"body"`
		}{Body: BalanceResponse{Email: u.Email, AvailableCoin: u.AvailableCoin}}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "best-workers",
		Method:      http.MethodGet,
		Path:        "/best-workers",
		Summary:     "Workers with the highest balances",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"6" minimum:"1" maximum:"50"`
	}) (*struct {
		Body []WorkerCardResponse `json:"body"`
	}, error) {
		items, err := a.engine.TopWorkers(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []WorkerCardResponse `json:"body"`
		}{Body: workerCards(items)}, nil
	})
}
