package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stageline/internal/apperr"
	"stageline/internal/config"
	"stageline/internal/domain"
	"stageline/internal/repo"
	"stageline/internal/timeline"
)

const defaultStageColor = "#6B7280"

// ListStages returns the tenant's stages by position, each with its number of
// live ACTIVE cards.
func (e Engine) ListStages(ctx context.Context, tenantID string) ([]domain.Stage, error) {
	stages, err := e.Repo.ListStages(ctx, tenantID)
	if err != nil {
		return nil, apperr.Persistence("list stages", err)
	}
	return stages, nil
}

// GetStage returns one stage of the tenant.
func (e Engine) GetStage(ctx context.Context, tenantID, id string) (domain.Stage, error) {
	s, err := e.Repo.GetStage(ctx, tenantID, id)
	return s, storeErr(err, "get stage", "stage")
}

// CreateStage inserts a stage at in.Position, shifting the stages at or after
// that position up by one. Positions past the end, and zero, append.
func (e Engine) CreateStage(ctx context.Context, tenantID string, actor domain.Actor, in domain.StageInput) (stage domain.Stage, err error) {
	defer e.track("create_stage", time.Now(), &err)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return domain.Stage{}, err
	}
	err = e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		var err error
		stage, err = e.insertStage(ctx, tx, r, tenantID, actor, in)
		return err
	})
	return stage, err
}

func (e Engine) insertStage(ctx context.Context, tx *sql.Tx, r repo.Repo, tenantID string, actor domain.Actor, in domain.StageInput) (domain.Stage, error) {
	now := e.now()
	last, err := r.MaxStagePosition(ctx, tenantID)
	if err != nil {
		return domain.Stage{}, apperr.Persistence("max stage position", err)
	}
	pos := in.Position
	if pos < 1 || pos > last+1 {
		pos = last + 1
	}
	occupied, err := r.StageOccupied(ctx, tenantID, pos)
	if err != nil {
		return domain.Stage{}, apperr.Persistence("check stage position", err)
	}
	if occupied {
		if err := r.ShiftStages(ctx, tenantID, pos, 0, 1, now); err != nil {
			return domain.Stage{}, apperr.Persistence("shift stages", err)
		}
	}
	s := domain.Stage{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      in.Name,
		Position:  pos,
		Color:     in.Color,
		SLAHours:  in.SLAHours,
		IsFinal:   in.IsFinal || in.IsLost,
		IsLost:    in.IsLost,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.Color == "" {
		s.Color = defaultStageColor
	}
	if err := r.InsertStage(ctx, s); err != nil {
		return domain.Stage{}, apperr.Persistence("insert stage", err)
	}
	if _, err := e.writer().Append(ctx, tx, timeline.Event{
		TenantID:   tenantID,
		EntityType: domain.EntityStage,
		EntityID:   s.ID,
		Actor:      actor,
		Metadata:   timeline.Created{Stage: &timeline.StageSummary{Name: s.Name, Position: s.Position}},
	}); err != nil {
		return domain.Stage{}, apperr.Persistence("append stage event", err)
	}
	return s, nil
}

// UpdateStage applies patch to a stage. A new position moves the stage the
// way a same-stage card move does, so positions stay dense. SLA edits do not
// touch the deadlines of cards already in the stage.
func (e Engine) UpdateStage(ctx context.Context, tenantID string, actor domain.Actor, id string, patch domain.StagePatch) (stage domain.Stage, err error) {
	defer e.track("update_stage", time.Now(), &err)
	if err := requireID("stage", id); err != nil {
		return domain.Stage{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := validateInput(patch); err != nil {
		return domain.Stage{}, err
	}
	err = e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		s, err := r.GetStage(ctx, tenantID, id)
		if err != nil {
			return storeErr(err, "get stage", "stage")
		}
		now := e.now()
		if patch.Name != nil {
			s.Name = *patch.Name
		}
		if patch.Color != nil {
			s.Color = *patch.Color
		}
		if patch.SLAHours != nil {
			if *patch.SLAHours == 0 {
				s.SLAHours = nil
			} else {
				h := *patch.SLAHours
				s.SLAHours = &h
			}
		}
		if patch.IsFinal != nil {
			s.IsFinal = *patch.IsFinal
		}
		if patch.IsLost != nil {
			s.IsLost = *patch.IsLost
		}
		if s.IsLost {
			s.IsFinal = true
		}
		if patch.Position != nil {
			last, err := r.MaxStagePosition(ctx, tenantID)
			if err != nil {
				return apperr.Persistence("max stage position", err)
			}
			target := clamp(*patch.Position, 1, last)
			if err := shiftForMove(func(from, to, delta int) error {
				return r.ShiftStages(ctx, tenantID, from, to, delta, now)
			}, s.Position, target); err != nil {
				return apperr.Persistence("shift stages", err)
			}
			s.Position = target
		}
		s.UpdatedAt = now
		if err := r.UpdateStage(ctx, s); err != nil {
			return storeErr(err, "update stage", "stage")
		}
		if _, err := e.writer().Append(ctx, tx, timeline.Event{
			TenantID:   tenantID,
			EntityType: domain.EntityStage,
			EntityID:   s.ID,
			Actor:      actor,
			Metadata:   timeline.Updated{Changes: patch.Changes()},
		}); err != nil {
			return apperr.Persistence("append stage event", err)
		}
		stage, err = r.GetStage(ctx, tenantID, id)
		return storeErr(err, "reload stage", "stage")
	})
	return stage, err
}

// DeleteStage removes a stage that owns no cards at all, soft-deleted ones
// included. Remaining stages keep their positions.
func (e Engine) DeleteStage(ctx context.Context, tenantID string, actor domain.Actor, id string) (err error) {
	defer e.track("delete_stage", time.Now(), &err)
	if err := requireID("stage", id); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		s, err := r.GetStage(ctx, tenantID, id)
		if err != nil {
			return storeErr(err, "get stage", "stage")
		}
		n, err := r.CountStageCards(ctx, tenantID, id)
		if err != nil {
			return apperr.Persistence("count stage cards", err)
		}
		if n > 0 {
			return apperr.Conflict("stage has cards", fmt.Sprintf("stage %s owns %d card(s); move them out first", s.Name, n))
		}
		if err := r.DeleteStage(ctx, tenantID, id); err != nil {
			return storeErr(err, "delete stage", "stage")
		}
		if _, err := e.writer().Append(ctx, tx, timeline.Event{
			TenantID:   tenantID,
			EntityType: domain.EntityStage,
			EntityID:   s.ID,
			Actor:      actor,
			Metadata:   timeline.Deleted{Stage: &timeline.StageSummary{Name: s.Name, Position: s.Position}},
		}); err != nil {
			return apperr.Persistence("append stage event", err)
		}
		e.log().Debug("stage deleted", "tenant", tenantID, "stage_id", id)
		return nil
	})
}

// ReorderStages applies the given positions all at once and returns the
// refreshed list. The mapping is applied as supplied; an unknown stage
// aborts the whole reorder.
func (e Engine) ReorderStages(ctx context.Context, tenantID string, actor domain.Actor, positions []domain.StagePosition) (stages []domain.Stage, err error) {
	defer e.track("reorder_stages", time.Now(), &err)
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		if err := validateInput(p); err != nil {
			return nil, err
		}
		if seen[p.StageID] {
			return nil, apperr.Validation("duplicate stage in reorder", p.StageID)
		}
		seen[p.StageID] = true
	}
	err = e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		now := e.now()
		for _, p := range positions {
			s, err := r.GetStage(ctx, tenantID, p.StageID)
			if err != nil {
				return storeErr(err, "get stage", "stage")
			}
			if s.Position == p.Position {
				continue
			}
			if err := r.SetStagePosition(ctx, tenantID, s.ID, p.Position, now); err != nil {
				return storeErr(err, "set stage position", "stage")
			}
			if _, err := e.writer().Append(ctx, tx, timeline.Event{
				TenantID:   tenantID,
				EntityType: domain.EntityStage,
				EntityID:   s.ID,
				Actor:      actor,
				Metadata:   timeline.Reordered{From: s.Position, To: p.Position},
			}); err != nil {
				return apperr.Persistence("append stage event", err)
			}
		}
		var err error
		stages, err = r.ListStages(ctx, tenantID)
		return apperr.Persistence("list stages", err)
	})
	return stages, err
}

// SeedStages creates the default pipeline for a tenant that has no stages
// yet. It reports whether anything was created.
func (e Engine) SeedStages(ctx context.Context, tenantID string, actor domain.Actor, templates []config.StageTemplate) (stages []domain.Stage, seeded bool, err error) {
	defer e.track("seed_stages", time.Now(), &err)
	if templates == nil {
		templates = e.Config.Pipeline.DefaultStages
	}
	err = e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		count, err := r.CountStages(ctx, tenantID)
		if err != nil {
			return apperr.Persistence("count stages", err)
		}
		if count == 0 {
			for i, tpl := range templates {
				in := domain.StageInput{
					Name:     tpl.Name,
					Position: i + 1,
					Color:    tpl.Color,
					SLAHours: tpl.SLAHours,
					IsFinal:  tpl.IsFinal,
					IsLost:   tpl.IsLost,
				}
				if err := validateInput(in); err != nil {
					return err
				}
				if _, err := e.insertStage(ctx, tx, r, tenantID, actor, in); err != nil {
					return err
				}
			}
			seeded = len(templates) > 0
		}
		stages, err = r.ListStages(ctx, tenantID)
		return apperr.Persistence("list stages", err)
	})
	return stages, seeded, err
}

// shiftForMove moves the items between from and to by one slot so an item at
// from can take position to. shift receives an inclusive range and a delta.
func shiftForMove(shift func(from, to, delta int) error, from, to int) error {
	switch {
	case to > from:
		return shift(from+1, to, -1)
	case to < from:
		return shift(to, from-1, 1)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
