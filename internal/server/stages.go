package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"stageline/internal/domain"
	"stageline/internal/engine"
)

type stageOutput struct {
	Body domain.Stage `json:"body"`
}

type stageListOutput struct {
	Body []domain.Stage `json:"body"`
}

func registerStages(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stages",
		Method:      http.MethodGet,
		Path:        "/stages",
		Summary:     "List pipeline stages",
	}, func(ctx context.Context, _ *struct{}) (*stageListOutput, error) {
		tenantID, _, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stages, err := e.ListStages(ctx, tenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &stageListOutput{Body: stages}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-stage",
		Method:        http.MethodPost,
		Path:          "/stages",
		Summary:       "Create stage",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body domain.StageInput `json:"body"`
	}) (*stageOutput, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireRole(actor, authCfg.StageAdminRoles); err != nil {
			return nil, err
		}
		stage, err := e.CreateStage(ctx, tenantID, actor, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &stageOutput{Body: stage}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-stages",
		Method:      http.MethodPut,
		Path:        "/stages/reorder",
		Summary:     "Reorder stages",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ReorderStagesRequest `json:"body"`
	}) (*stageListOutput, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireRole(actor, authCfg.StageAdminRoles); err != nil {
			return nil, err
		}
		stages, err := e.ReorderStages(ctx, tenantID, actor, input.Body.Stages)
		if err != nil {
			return nil, handleError(err)
		}
		return &stageListOutput{Body: stages}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "seed-stages",
		Method:      http.MethodPost,
		Path:        "/stages/seed",
		Summary:     "Create the default pipeline when the tenant has no stages",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SeedStagesResponse `json:"body"`
	}, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireRole(actor, authCfg.StageAdminRoles); err != nil {
			return nil, err
		}
		stages, seeded, err := e.SeedStages(ctx, tenantID, actor, nil)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SeedStagesResponse `json:"body"`
		}{Body: SeedStagesResponse{Seeded: seeded, Stages: stages}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stage",
		Method:      http.MethodPut,
		Path:        "/stages/{stage_id}",
		Summary:     "Update stage",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StageID string            `path:"stage_id"`
		Body    domain.StagePatch `json:"body"`
	}) (*stageOutput, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireRole(actor, authCfg.StageAdminRoles); err != nil {
			return nil, err
		}
		stage, err := e.UpdateStage(ctx, tenantID, actor, input.StageID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &stageOutput{Body: stage}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-stage",
		Method:        http.MethodDelete,
		Path:          "/stages/{stage_id}",
		Summary:       "Delete an empty stage",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		StageID string `path:"stage_id"`
	}) (*struct{}, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireRole(actor, authCfg.StageAdminRoles); err != nil {
			return nil, err
		}
		if err := e.DeleteStage(ctx, tenantID, actor, input.StageID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerKanban(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "kanban",
		Method:      http.MethodGet,
		Path:        "/kanban",
		Summary:     "Kanban board",
		Description: "All stages by position, each with its active cards in order.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.KanbanColumn `json:"body"`
	}, error) {
		tenantID, _, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		board, err := e.Kanban(ctx, tenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.KanbanColumn `json:"body"`
		}{Body: board}, nil
	})
}
