package engine

import (
	"time"

	"stageline/internal/domain"
)

// ComputeDeadline returns ref plus the stage SLA, or nil when the stage has
// none. It is evaluated when a card is created and when it enters another
// stage, never retroactively.
func ComputeDeadline(stage domain.Stage, ref time.Time) *time.Time {
	if stage.SLAHours == nil {
		return nil
	}
	d := ref.Add(time.Duration(*stage.SLAHours) * time.Hour)
	return &d
}
