package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"stageline/internal/domain"
	"stageline/internal/engine"
)

func registerTimeline(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "card-timeline",
		Method:      http.MethodGet,
		Path:        "/cards/{card_id}/timeline",
		Summary:     "Card history, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		CardID string `path:"card_id"`
		Page   int    `query:"page" minimum:"0"`
		Limit  int    `query:"limit" minimum:"0"`
	}) (*struct {
		Body EventPage `json:"body"`
	}, error) {
		tenantID, _, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		page, err := e.EntityTimeline(ctx, tenantID, domain.EntityCard, input.CardID, input.Page, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventPage `json:"body"`
		}{Body: eventPage(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recent-events",
		Method:      http.MethodGet,
		Path:        "/timeline/recent",
		Summary:     "Tenant activity feed",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0"`
	}) (*struct {
		Body EventList `json:"body"`
	}, error) {
		tenantID, _, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.RecentEvents(ctx, tenantID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventList `json:"body"`
		}{Body: EventList{Items: mapEvents(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-event",
		Method:        http.MethodPost,
		Path:          "/timeline/events",
		Summary:       "Append an externally produced event",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RecordEventRequest `json:"body"`
	}) (*struct {
		Body RecordEventResponse `json:"body"`
	}, error) {
		tenantID, actor, authErr := caller(ctx)
		if authErr != nil {
			return nil, authErr
		}
		id, err := e.RecordEvent(ctx, tenantID, actor, input.Body.EntityType, input.Body.EntityID, input.Body.Action, input.Body.Metadata)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RecordEventResponse `json:"body"`
		}{Body: RecordEventResponse{ID: id}}, nil
	})
}
