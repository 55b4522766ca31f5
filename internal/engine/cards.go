package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"stageline/internal/apperr"
	"stageline/internal/domain"
	"stageline/internal/metrics"
	"stageline/internal/repo"
	"stageline/internal/timeline"
)

// CreateCard appends a card to the end of a stage. Its position is computed
// inside the insert transaction.
func (e Engine) CreateCard(ctx context.Context, tenantID string, actor domain.Actor, in domain.CardInput) (card domain.CardView, err error) {
	defer e.track("create_card", time.Now(), &err)
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in); err != nil {
		return domain.CardView{}, err
	}
	err = e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		stage, err := r.GetStage(ctx, tenantID, in.StageID)
		if err != nil {
			return storeErr(err, "get stage", "stage")
		}
		maxPos, err := r.MaxCardPosition(ctx, tenantID, stage.ID)
		if err != nil {
			return apperr.Persistence("max card position", err)
		}
		now := e.now()
		c := domain.Card{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			StageID:        stage.ID,
			Position:       maxPos + 1,
			Title:          in.Title,
			CustomerID:     in.CustomerID,
			VehicleID:      in.VehicleID,
			AssignedToID:   in.AssignedToID,
			Channel:        in.Channel,
			EstimatedValue: in.EstimatedValue,
			Complaint:      in.Complaint,
			Diagnosis:      in.Diagnosis,
			Tags:           in.Tags,
			Status:         domain.CardActive,
			SLADeadline:    ComputeDeadline(stage, now),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := r.InsertCard(ctx, c); err != nil {
			return apperr.Persistence("insert card", err)
		}
		if _, err := e.writer().Append(ctx, tx, timeline.Event{
			TenantID:   tenantID,
			EntityType: domain.EntityCard,
			EntityID:   c.ID,
			Actor:      actor,
			Metadata:   timeline.Created{Card: &timeline.CardSummary{Title: c.Title, StageID: c.StageID}},
		}); err != nil {
			return apperr.Persistence("append card event", err)
		}
		card, err = e.loadCard(ctx, r, tenantID, c.ID)
		return err
	})
	return card, err
}

// UpdateCard applies a field patch. Stage and position only change via
// MoveCard.
func (e Engine) UpdateCard(ctx context.Context, tenantID string, actor domain.Actor, id string, patch domain.CardPatch) (card domain.CardView, err error) {
	defer e.track("update_card", time.Now(), &err)
	if err := requireID("card", id); err != nil {
		return domain.CardView{}, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	if err := validateInput(patch); err != nil {
		return domain.CardView{}, err
	}
	err = e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		if err := r.UpdateCard(ctx, tenantID, id, patch, e.now()); err != nil {
			return storeErr(err, "update card", "card")
		}
		if _, err := e.writer().Append(ctx, tx, timeline.Event{
			TenantID:   tenantID,
			EntityType: domain.EntityCard,
			EntityID:   id,
			Actor:      actor,
			Metadata:   timeline.Updated{Changes: patch.Changes()},
		}); err != nil {
			return apperr.Persistence("append card event", err)
		}
		var err error
		card, err = e.loadCard(ctx, r, tenantID, id)
		return err
	})
	return card, err
}

// MoveCard places a card at targetPosition in targetStageID and renumbers the
// affected siblings so every stage stays dense. The target is clamped to the
// stage bounds; the MOVED event records the position actually taken.
func (e Engine) MoveCard(ctx context.Context, tenantID string, actor domain.Actor, id, targetStageID string, targetPosition int) (card domain.CardView, err error) {
	defer e.track("move_card", time.Now(), &err)
	if err := requireID("card", id); err != nil {
		return domain.CardView{}, err
	}
	if err := requireID("stage", targetStageID); err != nil {
		return domain.CardView{}, err
	}
	if targetPosition < 0 {
		return domain.CardView{}, apperr.Validation("position must not be negative")
	}
	var crossStage bool
	err = e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		current, err := r.GetCard(ctx, tenantID, id)
		if err != nil {
			return storeErr(err, "get card", "card")
		}
		target, err := r.GetStage(ctx, tenantID, targetStageID)
		if err != nil {
			return storeErr(err, "get stage", "stage")
		}
		now := e.now()
		from := timeline.Placement{StageID: current.StageID, Position: current.Position}
		if current.Stage != nil {
			from.StageName = current.Stage.Name
		}
		deadline := current.SLADeadline
		newPos := targetPosition
		crossStage = target.ID != current.StageID

		// Stages may hold gaps when compaction is off; bound by the highest
		// live position.
		last, err := r.MaxCardPosition(ctx, tenantID, target.ID)
		if err != nil {
			return apperr.Persistence("max card position", err)
		}
		if !crossStage {
			newPos = clamp(newPos, 1, last)
			if err := shiftForMove(func(lo, hi, delta int) error {
				_, err := r.ShiftCards(ctx, tenantID, target.ID, lo, hi, delta, now)
				return err
			}, current.Position, newPos); err != nil {
				return apperr.Persistence("shift cards", err)
			}
		} else {
			newPos = clamp(newPos, 1, last+1)
			if _, err := r.ShiftCards(ctx, tenantID, current.StageID, current.Position+1, 0, -1, now); err != nil {
				return apperr.Persistence("close source gap", err)
			}
			if _, err := r.ShiftCards(ctx, tenantID, target.ID, newPos, 0, 1, now); err != nil {
				return apperr.Persistence("open target slot", err)
			}
			if target.SLAHours != nil {
				deadline = ComputeDeadline(target, now)
			}
		}

		if err := r.PlaceCard(ctx, tenantID, id, target.ID, newPos, deadline, now); err != nil {
			return storeErr(err, "place card", "card")
		}
		if _, err := e.writer().Append(ctx, tx, timeline.Event{
			TenantID:   tenantID,
			EntityType: domain.EntityCard,
			EntityID:   id,
			Actor:      actor,
			Metadata: timeline.Moved{
				From: from,
				To:   timeline.Placement{StageID: target.ID, StageName: target.Name, Position: newPos},
			},
		}); err != nil {
			return apperr.Persistence("append card event", err)
		}
		card, err = e.loadCard(ctx, r, tenantID, id)
		return err
	})
	if err == nil {
		metrics.CardMoved(crossStage)
		e.log().Debug("card moved", "tenant", tenantID, "card_id", id, "stage_id", card.StageID, "position", card.Position)
	}
	return card, err
}

// DeleteCard soft-deletes a card and forces its status to LOST. With
// pipeline.compact_on_delete the cards after it move up one slot.
func (e Engine) DeleteCard(ctx context.Context, tenantID string, actor domain.Actor, id string) (err error) {
	defer e.track("delete_card", time.Now(), &err)
	if err := requireID("card", id); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx, r repo.Repo) error {
		c, err := r.GetCard(ctx, tenantID, id)
		if err != nil {
			return storeErr(err, "get card", "card")
		}
		now := e.now()
		if err := r.SoftDeleteCard(ctx, tenantID, id, now); err != nil {
			return storeErr(err, "delete card", "card")
		}
		if e.Config.Pipeline.CompactOnDelete {
			if _, err := r.ShiftCards(ctx, tenantID, c.StageID, c.Position+1, 0, -1, now); err != nil {
				return apperr.Persistence("compact stage", err)
			}
		}
		if _, err := e.writer().Append(ctx, tx, timeline.Event{
			TenantID:   tenantID,
			EntityType: domain.EntityCard,
			EntityID:   id,
			Actor:      actor,
			Metadata:   timeline.Deleted{Card: &timeline.CardSummary{Title: c.Title, StageID: c.StageID}},
		}); err != nil {
			return apperr.Persistence("append card event", err)
		}
		e.log().Debug("card deleted", "tenant", tenantID, "card_id", id)
		return nil
	})
}

// GetCard returns a live card with its linked records.
func (e Engine) GetCard(ctx context.Context, tenantID, id string) (domain.CardView, error) {
	if err := requireID("card", id); err != nil {
		return domain.CardView{}, err
	}
	return e.loadCard(ctx, e.Repo, tenantID, id)
}

// ListCards returns one page of live cards matching f, newest first. The
// total and the page come from the same snapshot.
func (e Engine) ListCards(ctx context.Context, tenantID string, f domain.CardFilter) (domain.Page[domain.CardView], error) {
	if err := validateInput(f); err != nil {
		return domain.Page[domain.CardView]{}, err
	}
	page, limit := e.pageBounds(f.Page, f.Limit)
	var items []domain.CardView
	var total int
	err := e.inReadTx(ctx, func(r repo.Repo) error {
		var err error
		items, total, err = r.ListCards(ctx, tenantID, f, limit, (page-1)*limit)
		return apperr.Persistence("list cards", err)
	})
	if err != nil {
		return domain.Page[domain.CardView]{}, err
	}
	now := e.now()
	for i := range items {
		items[i].IsOverdue = items[i].Overdue(now)
	}
	return domain.NewPage(items, total, page, limit), nil
}

// ListOverdueCards returns the ACTIVE cards past their SLA deadline.
func (e Engine) ListOverdueCards(ctx context.Context, tenantID string) ([]domain.CardView, error) {
	items, err := e.Repo.ListOverdueCards(ctx, tenantID, e.now())
	if err != nil {
		return nil, apperr.Persistence("list overdue cards", err)
	}
	for i := range items {
		items[i].IsOverdue = true
	}
	return items, nil
}

func (e Engine) loadCard(ctx context.Context, r repo.Repo, tenantID, id string) (domain.CardView, error) {
	cv, err := r.GetCard(ctx, tenantID, id)
	if err != nil {
		return domain.CardView{}, storeErr(err, "get card", "card")
	}
	cv.IsOverdue = cv.Overdue(e.now())
	return cv, nil
}
