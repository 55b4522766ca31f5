package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"stageline/internal/apperr"
	"stageline/internal/domain"
	"stageline/internal/repo"
	"stageline/internal/timeline"
)

// RecordEvent appends an event produced outside the pipeline, such as a
// proposal being sent or approved. Any action string is accepted.
func (e Engine) RecordEvent(ctx context.Context, tenantID string, actor domain.Actor, entityType, entityID, action string, data map[string]any) (id int64, err error) {
	defer e.track("record_event", time.Now(), &err)
	entityType = strings.TrimSpace(entityType)
	entityID = strings.TrimSpace(entityID)
	action = strings.TrimSpace(action)
	switch {
	case entityType == "":
		return 0, apperr.Validation("entity_type is required")
	case entityID == "":
		return 0, apperr.Validation("entity_id is required")
	case action == "":
		return 0, apperr.Validation("action is required")
	}
	err = e.inTx(ctx, func(tx *sql.Tx, _ repo.Repo) error {
		var err error
		id, err = e.writer().Append(ctx, tx, timeline.Event{
			TenantID:   tenantID,
			EntityType: entityType,
			EntityID:   entityID,
			Actor:      actor,
			Metadata:   timeline.Note{Tag: action, Data: data},
		})
		return apperr.Persistence("append event", err)
	})
	return id, err
}

// EntityTimeline returns one page of an entity's events, newest first, with
// the acting user joined in.
func (e Engine) EntityTimeline(ctx context.Context, tenantID, entityType, entityID string, page, limit int) (domain.Page[domain.TimelineEvent], error) {
	if entityType == "" || entityID == "" {
		return domain.Page[domain.TimelineEvent]{}, apperr.Validation("entity_type and entity_id are required")
	}
	page, limit = e.pageBounds(page, limit)
	var items []domain.TimelineEvent
	var total int
	err := e.inReadTx(ctx, func(r repo.Repo) error {
		var err error
		items, total, err = r.EntityTimeline(ctx, tenantID, entityType, entityID, limit, (page-1)*limit)
		return apperr.Persistence("entity timeline", err)
	})
	if err != nil {
		return domain.Page[domain.TimelineEvent]{}, err
	}
	return domain.NewPage(items, total, page, limit), nil
}

// RecentEvents is the tenant-wide activity feed, newest first.
func (e Engine) RecentEvents(ctx context.Context, tenantID string, limit int) ([]domain.TimelineEvent, error) {
	if limit < 1 {
		limit = e.Config.Pipeline.RecentLimit
	}
	if maxLimit := e.Config.Pipeline.MaxPageSize; maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	items, err := e.Repo.RecentEvents(ctx, tenantID, limit)
	if err != nil {
		return nil, apperr.Persistence("recent events", err)
	}
	return items, nil
}
