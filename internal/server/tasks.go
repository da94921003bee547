package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"doandearn/internal/domain"
	"doandearn/internal/engine"
)

type idPath struct {
	ID string `path:"id"`
}

type tasksOutput struct {
	Body []domain.Task `json:"body"`
}

type taskOutput struct {
	Body domain.Task `json:"body"`
}

func (a api) registerTasks(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		email, _, err := a.requireRole(ctx, domain.RoleBuyer)
		if err != nil {
			return nil, handleError(err)
		}
		buyer, err := a.engine.GetAccount(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := a.engine.CreateTask(ctx, engine.TaskCreateOptions{
			BuyerEmail:      buyer.Email,
			BuyerName:       buyer.Name,
			TaskTitle:       input.Body.TaskTitle,
			TaskDetail:      input.Body.TaskDetail,
			SubmissionInfo:  input.Body.SubmissionInfo,
			TaskImageURL:    input.Body.TaskImageURL,
			PayableAmount:   input.Body.PayableAmount,
			RequiredWorkers: input.Body.RequiredWorkers,
			CompletionDate:  input.Body.CompletionDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-open-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "Tasks with open slots",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*tasksOutput, error) {
		if _, _, err := a.requireRole(ctx, domain.RoleWorker, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListOpenTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &tasksOutput{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-all-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/all",
		Summary:     "Every task",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*tasksOutput, error) {
		if _, _, err := a.requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListAllTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &tasksOutput{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-my-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/mine",
		Summary:     "The caller's tasks, latest completion date first",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*tasksOutput, error) {
		email, _, err := a.requireRole(ctx, domain.RoleBuyer)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListTasksByBuyer(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &tasksOutput{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "popular-tasks",
		Method:      http.MethodGet,
		Path:        "/popular-tasks",
		Summary:     "Best paying tasks",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"6" minimum:"1" maximum:"50"`
	}) (*tasksOutput, error) {
		items, err := a.engine.ListPopularTasks(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &tasksOutput{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*taskOutput, error) {
		if _, _, err := a.caller(ctx); err != nil {
			return nil, handleError(err)
		}
		t, err := a.engine.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Edit title, detail and submission info",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		email, err := a.requireTaskOwner(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := a.engine.EditTask(ctx, engine.TaskEditOptions{
			ID:             input.ID,
			TaskTitle:      input.Body.TaskTitle,
			TaskDetail:     input.Body.TaskDetail,
			SubmissionInfo: input.Body.SubmissionInfo,
			Actor:          email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete a task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		email, err := a.requireTaskOwner(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := a.engine.DeleteTask(ctx, input.ID, email); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "claim-task-slot",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/claim",
		Summary:     "Take one of a task's open slots",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *idPath) (*taskOutput, error) {
		email, _, err := a.requireRole(ctx, domain.RoleWorker)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := a.engine.ClaimSlot(ctx, input.ID, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})
}

// requireTaskOwner passes for the task's buyer or an admin.
func (a api) requireTaskOwner(ctx context.Context, id string) (string, error) {
	email, role, err := a.caller(ctx)
	if err != nil {
		return "", err
	}
	t, err := a.engine.GetTask(ctx, id)
	if err != nil {
		return "", err
	}
	if err := requireOwnerOrAdmin(email, role, t.BuyerEmail, domain.RoleBuyer); err != nil {
		return "", err
	}
	return email, nil
}
