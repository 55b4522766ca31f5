package timeline

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"stageline/internal/domain"
)

// Event is one audit record to append.
type Event struct {
	TenantID   string
	EntityType string
	EntityID   string
	// Action overrides the action implied by Metadata.
	Action   string
	Actor    domain.Actor
	Metadata Metadata
}

type Writer struct {
	Now func() time.Time
}

// Append inserts ev inside tx so the event commits or rolls back together
// with the mutation it describes. It returns the event id.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, ev Event) (int64, error) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	action := ev.Action
	if action == "" && ev.Metadata != nil {
		action = ev.Metadata.Action()
	}
	if action == "" {
		return 0, errors.New("timeline event action is required")
	}
	payload, err := Encode(ev.Metadata)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO timeline_events(tenant_id,entity_type,entity_id,action,actor_user_id,actor_role,metadata_json,ip_address,user_agent,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ev.TenantID, ev.EntityType, ev.EntityID, action,
		nullable(ev.Actor.UserID), nullable(ev.Actor.Role), payload,
		nullable(ev.Actor.IPAddress), nullable(ev.Actor.UserAgent),
		now().UTC().Format(domain.TimestampLayout))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
