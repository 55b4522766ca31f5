package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stageline/internal/domain"
)

const stageColumns = `s.id,s.tenant_id,s.name,s.position,s.color,s.sla_hours,s.is_final,s.is_lost,s.created_at,s.updated_at,
(SELECT COUNT(*) FROM cards c WHERE c.tenant_id=s.tenant_id AND c.stage_id=s.id AND c.deleted_at IS NULL AND c.status='ACTIVE')`

func scanStage(row scanner) (domain.Stage, error) {
	var s domain.Stage
	var sla sql.NullInt64
	var createdAt, updatedAt string
	if err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Position, &s.Color, &sla, &s.IsFinal, &s.IsLost, &createdAt, &updatedAt, &s.ActiveCards); err != nil {
		return s, err
	}
	if sla.Valid {
		h := int(sla.Int64)
		s.SLAHours = &h
	}
	var err error
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return s, err
	}
	return s, nil
}

// ListStages returns the tenant's stages by position with their active card counts.
func (r Repo) ListStages(ctx context.Context, tenantID string) ([]domain.Stage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stageColumns+` FROM stages s WHERE s.tenant_id=? ORDER BY s.position ASC, s.created_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Stage{}
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) GetStage(ctx context.Context, tenantID, id string) (domain.Stage, error) {
	s, err := scanStage(r.DB.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages s WHERE s.tenant_id=? AND s.id=?`, tenantID, id))
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) CountStages(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM stages WHERE tenant_id=?`, tenantID).Scan(&n)
	return n, err
}

// MaxStagePosition returns the highest stage position of the tenant, or 0
// when it has no stages. Deletes leave gaps, so this can exceed the count.
func (r Repo) MaxStagePosition(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0) FROM stages WHERE tenant_id=?`, tenantID).Scan(&n)
	return n, err
}

func (r Repo) StageOccupied(ctx context.Context, tenantID string, position int) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM stages WHERE tenant_id=? AND position=?`, tenantID, position).Scan(&n)
	return n > 0, err
}

func (r Repo) InsertStage(ctx context.Context, s domain.Stage) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO stages(id,tenant_id,name,position,color,sla_hours,is_final,is_lost,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.TenantID, s.Name, s.Position, s.Color, nullableIntPtr(s.SLAHours), boolInt(s.IsFinal), boolInt(s.IsLost),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

// UpdateStage writes every mutable column of s.
func (r Repo) UpdateStage(ctx context.Context, s domain.Stage) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE stages SET name=?, position=?, color=?, sla_hours=?, is_final=?, is_lost=?, updated_at=? WHERE tenant_id=? AND id=?`,
		s.Name, s.Position, s.Color, nullableIntPtr(s.SLAHours), boolInt(s.IsFinal), boolInt(s.IsLost), formatTime(s.UpdatedAt), s.TenantID, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetStagePosition(ctx context.Context, tenantID, id string, position int, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE stages SET position=?, updated_at=? WHERE tenant_id=? AND id=?`, position, formatTime(at), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ShiftStages adds delta to the position of every tenant stage in [from, to].
// A zero to leaves the range open above.
func (r Repo) ShiftStages(ctx context.Context, tenantID string, from, to, delta int, at time.Time) error {
	clauses := []string{"tenant_id=?", "position>=?"}
	args := []any{delta, formatTime(at), tenantID, from}
	if to > 0 {
		clauses = append(clauses, "position<=?")
		args = append(args, to)
	}
	_, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE stages SET position=position+?, updated_at=? WHERE %s`, strings.Join(clauses, " AND ")), args...)
	return err
}

func (r Repo) DeleteStage(ctx context.Context, tenantID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM stages WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountStageCards counts every card owned by the stage, soft-deleted ones included.
func (r Repo) CountStageCards(ctx context.Context, tenantID, stageID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE tenant_id=? AND stage_id=?`, tenantID, stageID).Scan(&n)
	return n, err
}
