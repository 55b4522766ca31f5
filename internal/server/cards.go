package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"stageline/internal/domain"
	"stageline/internal/engine"
)

type cardOutput struct {
	Body domain.CardView `json:"body"`
}

func registerCards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-cards",
		Method:      http.MethodGet,
		Path:        "/cards",
		Summary:     "List cards",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		StageID      string   `query:"stage_id"`
		Status       string   `query:"status" enum:"ACTIVE,COMPLETED,LOST,ABANDONED"`
		AssignedToID string   `query:"assigned_to_id"`
		CustomerID   string   `query:"customer_id"`
		Search       string   `query:"search"`
		Tags         []string `query:"tags"`
		Page         int      `query:"page" minimum:"0"`
		Limit        int      `query:"limit" minimum:"0"`
	}) (*struct {
		Body CardPage `json:"body"`
	}, error) {
		tenantID, _, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		page, err := e.ListCards(ctx, tenantID, domain.CardFilter{
			StageID:      input.StageID,
			Status:       domain.CardStatus(input.Status),
			AssignedToID: input.AssignedToID,
			CustomerID:   input.CustomerID,
			Search:       input.Search,
			Tags:         input.Tags,
			Page:         input.Page,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CardPage `json:"body"`
		}{Body: cardPage(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-card",
		Method:        http.MethodPost,
		Path:          "/cards",
		Summary:       "Create card at the end of a stage",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body domain.CardInput `json:"body"`
	}) (*cardOutput, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		card, err := e.CreateCard(ctx, tenantID, actor, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &cardOutput{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-overdue-cards",
		Method:      http.MethodGet,
		Path:        "/cards/overdue",
		Summary:     "Active cards past their SLA deadline",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.CardView `json:"body"`
	}, error) {
		tenantID, _, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cards, err := e.ListOverdueCards(ctx, tenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.CardView `json:"body"`
		}{Body: cards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-card",
		Method:      http.MethodGet,
		Path:        "/cards/{card_id}",
		Summary:     "Get card",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CardID string `path:"card_id"`
	}) (*cardOutput, error) {
		tenantID, _, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		card, err := e.GetCard(ctx, tenantID, input.CardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &cardOutput{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-card",
		Method:      http.MethodPut,
		Path:        "/cards/{card_id}",
		Summary:     "Update card fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CardID string           `path:"card_id"`
		Body   domain.CardPatch `json:"body"`
	}) (*cardOutput, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		card, err := e.UpdateCard(ctx, tenantID, actor, input.CardID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &cardOutput{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-card",
		Method:        http.MethodDelete,
		Path:          "/cards/{card_id}",
		Summary:       "Soft delete card",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CardID string `path:"card_id"`
	}) (*struct{}, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCard(ctx, tenantID, actor, input.CardID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-card",
		Method:      http.MethodPut,
		Path:        "/cards/{card_id}/move",
		Summary:     "Move card to a stage and position",
		Description: "Positions are 1-based; out of range targets are clamped to the stage bounds.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CardID string          `path:"card_id"`
		Body   MoveCardRequest `json:"body"`
	}) (*cardOutput, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		card, err := e.MoveCard(ctx, tenantID, actor, input.CardID, input.Body.StageID, input.Body.Position)
		if err != nil {
			return nil, handleError(err)
		}
		return &cardOutput{Body: card}, nil
	})
}
