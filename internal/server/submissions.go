package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"doandearn/internal/domain"
	"doandearn/internal/engine"
)

type submissionOutput struct {
	Body domain.Submission `json:"body"`
}

type submissionsOutput struct {
	Body []domain.Submission `json:"body"`
}

func (a api) registerSubmissions(humaAPI huma.API) {
	huma.Register(humaAPI, huma.Operation{
		OperationID:   "create-submission",
		Method:        http.MethodPost,
		Path:          "/submissions",
		Summary:       "Submit work against a task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body SubmitRequest `json:"body"`
	}) (*submissionOutput, error) {
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
		s, err := a.engine.Submit(ctx, engine.SubmitOptions{
			TaskID:            input.Body.TaskID,
			WorkerEmail:       worker.Email,
			WorkerName:        worker.Name,
			SubmissionDetails: input.Body.SubmissionDetails,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &submissionOutput{Body: s}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-my-submissions",
		Method:      http.MethodGet,
		Path:        "/submissions",
		Summary:     "The caller's submissions, paged oldest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Page  int `query:"page"`
		Limit int `query:"limit"`
	}) (*struct {
		Body domain.SubmissionPage `json:"body"`
	}, error) {
		email, _, err := a.requireRole(ctx, domain.RoleWorker)
		if err != nil {
			return nil, handleError(err)
		}
		page, err := a.engine.ListByWorker(ctx, email, input.Page, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.SubmissionPage `json:"body"`
		}{Body: page}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-approved-submissions",
		Method:      http.MethodGet,
		Path:        "/submissions/approved",
		Summary:     "The caller's approved submissions",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*submissionsOutput, error) {
		email, _, err := a.requireRole(ctx, domain.RoleWorker)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListApprovedByWorker(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &submissionsOutput{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "list-pending-review",
		Method:      http.MethodGet,
		Path:        "/submissions/pending",
		Summary:     "Pending submissions on the caller's tasks",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*submissionsOutput, error) {
		email, _, err := a.requireRole(ctx, domain.RoleBuyer)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := a.engine.ListPendingByBuyer(ctx, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &submissionsOutput{Body: items}, nil
	})

	huma.Register(humaAPI, huma.Operation{
		OperationID: "get-submission",
		Method:      http.MethodGet,
		Path:        "/submissions/{id}",
		Summary:     "Get a submission",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*submissionOutput, error) {
		email, role, err := a.caller(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := a.engine.GetSubmission(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if email != s.WorkerEmail {
			if err := requireOwnerOrAdmin(email, role, s.BuyerEmail, domain.RoleBuyer); err != nil {
				return nil, handleError(err)
			}
		}
		return &submissionOutput{Body: s}, nil
	})

	a.registerReview(humaAPI, "approve", "Approve a submission and pay the worker", a.engine.Approve)
	a.registerReview(humaAPI, "reject", "Reject a submission and reopen its slot", a.engine.Reject)
}

type reviewFunc func(ctx context.Context, submissionID, actor string) (domain.Submission, error)

func (a api) registerReview(humaAPI huma.API, verb, summary string, review reviewFunc) {
	huma.Register(humaAPI, huma.Operation{
		OperationID: verb + "-submission",
		Method:      http.MethodPost,
		Path:        "/submissions/{id}/" + verb,
		Summary:     summary,
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *idPath) (*submissionOutput, error) {
		email, role, err := a.caller(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := a.engine.GetSubmission(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requireOwnerOrAdmin(email, role, s.BuyerEmail, domain.RoleBuyer); err != nil {
			return nil, handleError(err)
		}
		out, err := review(ctx, input.ID, email)
		if err != nil {
			return nil, handleError(err)
		}
		return &submissionOutput{Body: out}, nil
	})
}
