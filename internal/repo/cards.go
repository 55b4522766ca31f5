package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stageline/internal/domain"
)

const cardViewSelect = `SELECT c.id,c.tenant_id,c.stage_id,c.position,c.title,c.customer_id,c.vehicle_id,c.assigned_to_id,c.channel,
c.estimated_value,c.complaint,c.diagnosis,c.tags_json,c.status,c.sla_deadline,c.deleted_at,c.created_at,c.updated_at,
cu.name,cu.phone,v.plate,v.brand,v.model,a.name,a.avatar_url,s.name,s.color
FROM cards c
JOIN stages s ON s.id=c.stage_id
LEFT JOIN customers cu ON cu.id=c.customer_id AND cu.tenant_id=c.tenant_id
LEFT JOIN vehicles v ON v.id=c.vehicle_id AND v.tenant_id=c.tenant_id
LEFT JOIN actors a ON a.id=c.assigned_to_id AND a.tenant_id=c.tenant_id`

func scanCardView(row scanner) (domain.CardView, error) {
	var cv domain.CardView
	c := &cv.Card
	var customerID, vehicleID, assignedID, channel, complaint, diagnosis, slaDeadline, deletedAt sql.NullString
	var estimated sql.NullFloat64
	var tagsJSON, status, createdAt, updatedAt string
	var customerName, customerPhone, plate, brand, model, actorName, avatar, stageName, stageColor sql.NullString
	err := row.Scan(&c.ID, &c.TenantID, &c.StageID, &c.Position, &c.Title, &customerID, &vehicleID, &assignedID, &channel,
		&estimated, &complaint, &diagnosis, &tagsJSON, &status, &slaDeadline, &deletedAt, &createdAt, &updatedAt,
		&customerName, &customerPhone, &plate, &brand, &model, &actorName, &avatar, &stageName, &stageColor)
	if err != nil {
		return cv, err
	}
	c.CustomerID = stringPtr(customerID)
	c.VehicleID = stringPtr(vehicleID)
	c.AssignedToID = stringPtr(assignedID)
	c.Channel = stringPtr(channel)
	c.Complaint = stringPtr(complaint)
	c.Diagnosis = stringPtr(diagnosis)
	if estimated.Valid {
		v := estimated.Float64
		c.EstimatedValue = &v
	}
	c.Status = domain.CardStatus(status)
	if c.Tags, err = unmarshalTags(tagsJSON); err != nil {
		return cv, fmt.Errorf("card %s tags: %w", c.ID, err)
	}
	if c.SLADeadline, err = parseTimePtr(slaDeadline); err != nil {
		return cv, err
	}
	if c.DeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return cv, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return cv, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return cv, err
	}
	if c.CustomerID != nil && customerName.Valid {
		cv.Customer = &domain.CustomerRef{ID: *c.CustomerID, Name: customerName.String, Phone: customerPhone.String}
	}
	if c.VehicleID != nil && plate.Valid {
		cv.Vehicle = &domain.VehicleRef{ID: *c.VehicleID, Plate: plate.String, Brand: brand.String, Model: model.String}
	}
	if c.AssignedToID != nil && actorName.Valid {
		cv.AssignedTo = &domain.ActorRef{ID: *c.AssignedToID, Name: actorName.String, AvatarURL: avatar.String}
	}
	if stageName.Valid {
		cv.Stage = &domain.StageRef{ID: c.StageID, Name: stageName.String, Color: stageColor.String}
	}
	return cv, nil
}

func (r Repo) queryCardViews(ctx context.Context, query string, args ...any) ([]domain.CardView, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.CardView{}
	for rows.Next() {
		cv, err := scanCardView(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, cv)
	}
	return res, rows.Err()
}

// GetCard returns a non-deleted card of the tenant with its linked records.
func (r Repo) GetCard(ctx context.Context, tenantID, id string) (domain.CardView, error) {
	cv, err := scanCardView(r.DB.QueryRowContext(ctx, cardViewSelect+` WHERE c.tenant_id=? AND c.id=? AND c.deleted_at IS NULL`, tenantID, id))
	if err == sql.ErrNoRows {
		return cv, ErrNotFound
	}
	return cv, err
}

func (r Repo) InsertCard(ctx context.Context, c domain.Card) error {
	tags, err := marshalTags(c.Tags)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO cards(id,tenant_id,stage_id,position,title,customer_id,vehicle_id,assigned_to_id,channel,estimated_value,complaint,diagnosis,tags_json,status,sla_deadline,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.TenantID, c.StageID, c.Position, c.Title, nullableStringPtr(c.CustomerID), nullableStringPtr(c.VehicleID),
		nullableStringPtr(c.AssignedToID), nullableStringPtr(c.Channel), nullableFloatPtr(c.EstimatedValue),
		nullableStringPtr(c.Complaint), nullableStringPtr(c.Diagnosis), tags, string(c.Status),
		formatTimePtr(c.SLADeadline), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return err
}

// MaxCardPosition returns the highest position among non-deleted cards of the
// stage, or 0 when it has none.
func (r Repo) MaxCardPosition(ctx context.Context, tenantID, stageID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0) FROM cards WHERE tenant_id=? AND stage_id=? AND deleted_at IS NULL`, tenantID, stageID).Scan(&n)
	return n, err
}

// ShiftCards adds delta to the position of every non-deleted card of the stage
// whose position lies in [from, to]. A zero to leaves the range open above.
func (r Repo) ShiftCards(ctx context.Context, tenantID, stageID string, from, to, delta int, at time.Time) (int64, error) {
	clauses := []string{"tenant_id=?", "stage_id=?", "deleted_at IS NULL", "position>=?"}
	args := []any{delta, formatTime(at), tenantID, stageID, from}
	if to > 0 {
		clauses = append(clauses, "position<=?")
		args = append(args, to)
	}
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE cards SET position=position+?, updated_at=? WHERE %s`, strings.Join(clauses, " AND ")), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PlaceCard sets the stage, position and SLA deadline of a card.
func (r Repo) PlaceCard(ctx context.Context, tenantID, id, stageID string, position int, slaDeadline *time.Time, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE cards SET stage_id=?, position=?, sla_deadline=?, updated_at=? WHERE tenant_id=? AND id=? AND deleted_at IS NULL`,
		stageID, position, formatTimePtr(slaDeadline), formatTime(at), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCard applies the non-nil fields of patch.
func (r Repo) UpdateCard(ctx context.Context, tenantID, id string, patch domain.CardPatch, at time.Time) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.CustomerID != nil {
		set("customer_id", nullableStringPtr(patch.CustomerID))
	}
	if patch.VehicleID != nil {
		set("vehicle_id", nullableStringPtr(patch.VehicleID))
	}
	if patch.AssignedToID != nil {
		set("assigned_to_id", nullableStringPtr(patch.AssignedToID))
	}
	if patch.Channel != nil {
		set("channel", nullableStringPtr(patch.Channel))
	}
	if patch.EstimatedValue != nil {
		set("estimated_value", *patch.EstimatedValue)
	}
	if patch.Complaint != nil {
		set("complaint", nullableStringPtr(patch.Complaint))
	}
	if patch.Diagnosis != nil {
		set("diagnosis", nullableStringPtr(patch.Diagnosis))
	}
	if patch.Tags != nil {
		tags, err := marshalTags(*patch.Tags)
		if err != nil {
			return err
		}
		set("tags_json", tags)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	set("updated_at", formatTime(at))
	args = append(args, tenantID, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE cards SET %s WHERE tenant_id=? AND id=? AND deleted_at IS NULL`, strings.Join(fields, ", ")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteCard marks a card deleted and forces its status to LOST.
func (r Repo) SoftDeleteCard(ctx context.Context, tenantID, id string, at time.Time) error {
	ts := formatTime(at)
	res, err := r.DB.ExecContext(ctx, `UPDATE cards SET deleted_at=?, status=?, updated_at=? WHERE tenant_id=? AND id=? AND deleted_at IS NULL`,
		ts, string(domain.CardLost), ts, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func cardFilterClauses(tenantID string, f domain.CardFilter) ([]string, []any) {
	clauses := []string{"c.tenant_id=?", "c.deleted_at IS NULL"}
	args := []any{tenantID}
	if f.StageID != "" {
		clauses = append(clauses, "c.stage_id=?")
		args = append(args, f.StageID)
	}
	if f.Status != "" {
		clauses = append(clauses, "c.status=?")
		args = append(args, string(f.Status))
	}
	if f.AssignedToID != "" {
		clauses = append(clauses, "c.assigned_to_id=?")
		args = append(args, f.AssignedToID)
	}
	if f.CustomerID != "" {
		clauses = append(clauses, "c.customer_id=?")
		args = append(args, f.CustomerID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		clauses = append(clauses, `(fold(c.title) LIKE ? ESCAPE '\' OR fold(COALESCE(cu.name,'')) LIKE ? ESCAPE '\' OR fold(COALESCE(v.plate,'')) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if len(f.Tags) > 0 {
		marks := make([]string, len(f.Tags))
		for i, t := range f.Tags {
			marks[i] = "?"
			args = append(args, t)
		}
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(c.tags_json) t WHERE t.value IN ("+strings.Join(marks, ",")+"))")
	}
	return clauses, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ListCards returns one page of matching cards, newest first, and the total
// number of matches.
func (r Repo) ListCards(ctx context.Context, tenantID string, f domain.CardFilter, limit, offset int) ([]domain.CardView, int, error) {
	clauses, args := cardFilterClauses(tenantID, f)
	where := " WHERE " + strings.Join(clauses, " AND ")
	var total int
	countQuery := `SELECT COUNT(*) FROM cards c
LEFT JOIN customers cu ON cu.id=c.customer_id AND cu.tenant_id=c.tenant_id
LEFT JOIN vehicles v ON v.id=c.vehicle_id AND v.tenant_id=c.tenant_id` + where
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := cardViewSelect + where + ` ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?`
	items, err := r.queryCardViews(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListBoardCards returns the tenant's non-deleted ACTIVE cards ordered by
// stage and position.
func (r Repo) ListBoardCards(ctx context.Context, tenantID string) ([]domain.CardView, error) {
	return r.queryCardViews(ctx, cardViewSelect+` WHERE c.tenant_id=? AND c.deleted_at IS NULL AND c.status=? ORDER BY c.stage_id, c.position ASC, c.created_at ASC`,
		tenantID, string(domain.CardActive))
}

// ListStageCards returns the non-deleted cards of one stage by position.
func (r Repo) ListStageCards(ctx context.Context, tenantID, stageID string) ([]domain.CardView, error) {
	return r.queryCardViews(ctx, cardViewSelect+` WHERE c.tenant_id=? AND c.stage_id=? AND c.deleted_at IS NULL ORDER BY c.position ASC, c.created_at ASC`,
		tenantID, stageID)
}

// ListOverdueCards returns ACTIVE cards whose SLA deadline is before now,
// earliest deadline first.
func (r Repo) ListOverdueCards(ctx context.Context, tenantID string, now time.Time) ([]domain.CardView, error) {
	return r.queryCardViews(ctx, cardViewSelect+` WHERE c.tenant_id=? AND c.deleted_at IS NULL AND c.status=? AND c.sla_deadline IS NOT NULL AND c.sla_deadline<? ORDER BY c.sla_deadline ASC, c.id ASC`,
		tenantID, string(domain.CardActive), formatTime(now))
}
