package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"stageline/internal/domain"
)

const eventSelect = `SELECT e.id,e.tenant_id,e.entity_type,e.entity_id,e.action,e.actor_user_id,e.actor_role,e.metadata_json,e.ip_address,e.user_agent,e.created_at,
a.name,a.avatar_url
FROM timeline_events e
LEFT JOIN actors a ON a.id=e.actor_user_id AND a.tenant_id=e.tenant_id`

func scanEvent(row scanner) (domain.TimelineEvent, error) {
	var ev domain.TimelineEvent
	var actorID, actorRole, ip, ua, actorName, avatar sql.NullString
	var createdAt string
	if err := row.Scan(&ev.ID, &ev.TenantID, &ev.EntityType, &ev.EntityID, &ev.Action, &actorID, &actorRole, &ev.Metadata,
		&ip, &ua, &createdAt, &actorName, &avatar); err != nil {
		return ev, err
	}
	ev.ActorUserID = stringPtr(actorID)
	ev.ActorRole = stringPtr(actorRole)
	ev.IPAddress = stringPtr(ip)
	ev.UserAgent = stringPtr(ua)
	if ev.ActorUserID != nil && actorName.Valid {
		ev.Actor = &domain.ActorRef{ID: *ev.ActorUserID, Name: actorName.String, AvatarURL: avatar.String}
	}
	var err error
	ev.CreatedAt, err = parseTime(createdAt)
	return ev, err
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.TimelineEvent, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.TimelineEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

// EntityTimeline returns one page of an entity's events, newest first, and
// the entity's total event count.
func (r Repo) EntityTimeline(ctx context.Context, tenantID, entityType, entityID string, limit, offset int) ([]domain.TimelineEvent, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeline_events WHERE tenant_id=? AND entity_type=? AND entity_id=?`,
		tenantID, entityType, entityID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.queryEvents(ctx, eventSelect+` WHERE e.tenant_id=? AND e.entity_type=? AND e.entity_id=? ORDER BY e.created_at DESC, e.id DESC LIMIT ? OFFSET ?`,
		tenantID, entityType, entityID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// RecentEvents returns the tenant's latest events, newest first.
func (r Repo) RecentEvents(ctx context.Context, tenantID string, limit int) ([]domain.TimelineEvent, error) {
	return r.queryEvents(ctx, eventSelect+` WHERE e.tenant_id=? ORDER BY e.created_at DESC, e.id DESC LIMIT ?`, tenantID, limit)
}

// EventsAfter returns events with IDs greater than the cursor in ascending
// order. An empty tenant spans all tenants.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, tenantID string) ([]domain.TimelineEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"e.id>?"}
	args := []any{cursor}
	if tenantID != "" {
		clauses = append(clauses, "e.tenant_id=?")
		args = append(args, tenantID)
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY e.id ASC LIMIT ?`, eventSelect, strings.Join(clauses, " AND "))
	return r.queryEvents(ctx, query, append(args, limit)...)
}

// LatestEventID returns the highest event id, or 0 when there are none.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM timeline_events`).Scan(&id)
	return id, err
}
