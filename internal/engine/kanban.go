package engine

import (
	"context"

	"stageline/internal/apperr"
	"stageline/internal/domain"
	"stageline/internal/repo"
)

// Kanban returns every stage by position with its live ACTIVE cards by
// position. Stages and cards come from one read snapshot so the board never
// mixes two states.
func (e Engine) Kanban(ctx context.Context, tenantID string) ([]domain.KanbanColumn, error) {
	var board []domain.KanbanColumn
	err := e.inReadTx(ctx, func(r repo.Repo) error {
		stages, err := r.ListStages(ctx, tenantID)
		if err != nil {
			return apperr.Persistence("list stages", err)
		}
		cards, err := r.ListBoardCards(ctx, tenantID)
		if err != nil {
			return apperr.Persistence("list board cards", err)
		}
		now := e.now()
		byStage := make(map[string][]domain.CardView, len(stages))
		for _, c := range cards {
			c.IsOverdue = c.Overdue(now)
			byStage[c.StageID] = append(byStage[c.StageID], c)
		}
		board = make([]domain.KanbanColumn, 0, len(stages))
		for _, s := range stages {
			col := domain.KanbanColumn{Stage: s, Cards: byStage[s.ID]}
			if col.Cards == nil {
				col.Cards = []domain.CardView{}
			}
			board = append(board, col)
		}
		return nil
	})
	return board, err
}
