package server

import (
	"encoding/json"
	"time"

	"stageline/internal/domain"
)

// Request payloads

type MoveCardRequest struct {
	StageID  string `json:"stage_id" minLength:"1"`
	Position int    `json:"position"`
}

type ReorderStagesRequest struct {
	Stages []domain.StagePosition `json:"stages"`
}

type RecordEventRequest struct {
	EntityType string         `json:"entity_type" minLength:"1" example:"card"`
	EntityID   string         `json:"entity_id" minLength:"1"`
	Action     string         `json:"action" minLength:"1" example:"SENT"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Response payloads

type SeedStagesResponse struct {
	Seeded bool           `json:"seeded"`
	Stages []domain.Stage `json:"stages"`
}

type RecordEventResponse struct {
	ID int64 `json:"id"`
}

type EventResponse struct {
	ID          int64            `json:"id"`
	TenantID    string           `json:"tenant_id"`
	EntityType  string           `json:"entity_type"`
	EntityID    string           `json:"entity_id"`
	Action      string           `json:"action"`
	ActorUserID string           `json:"actor_user_id,omitempty"`
	ActorRole   string           `json:"actor_role,omitempty"`
	Actor       *domain.ActorRef `json:"actor,omitempty"`
	Metadata    map[string]any   `json:"metadata"`
	IPAddress   string           `json:"ip_address,omitempty"`
	UserAgent   string           `json:"user_agent,omitempty"`
	CreatedAt   time.Time        `json:"created_at" format:"date-time"`
}

type CardPage struct {
	Items      []domain.CardView `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
	HasMore    bool              `json:"has_more"`
}

type EventPage struct {
	Items      []EventResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
	HasMore    bool            `json:"has_more"`
}

type EventList struct {
	Items []EventResponse `json:"items"`
}

func eventResponse(evt domain.TimelineEvent) EventResponse {
	metadata := map[string]any{}
	if evt.Metadata != "" {
		if err := json.Unmarshal([]byte(evt.Metadata), &metadata); err != nil {
			metadata = map[string]any{"raw": evt.Metadata}
		}
	}
	return EventResponse{
		ID:          evt.ID,
		TenantID:    evt.TenantID,
		EntityType:  evt.EntityType,
		EntityID:    evt.EntityID,
		Action:      evt.Action,
		ActorUserID: stringOrEmpty(evt.ActorUserID),
		ActorRole:   stringOrEmpty(evt.ActorRole),
		Actor:       evt.Actor,
		Metadata:    metadata,
		IPAddress:   stringOrEmpty(evt.IPAddress),
		UserAgent:   stringOrEmpty(evt.UserAgent),
		CreatedAt:   evt.CreatedAt,
	}
}

func mapEvents(items []domain.TimelineEvent) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, evt := range items {
		out = append(out, eventResponse(evt))
	}
	return out
}

func cardPage(p domain.Page[domain.CardView]) CardPage {
	return CardPage{
		Items:      p.Items,
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
		HasMore:    p.HasMore,
	}
}

func eventPage(p domain.Page[domain.TimelineEvent]) EventPage {
	return EventPage{
		Items:      mapEvents(p.Items),
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
		HasMore:    p.HasMore,
	}
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
