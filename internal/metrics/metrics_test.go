package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCountsByResult(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("move_card", "ok"))
	Observe("move_card", "ok", 3*time.Millisecond)
	Observe("move_card", "not_found", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(operationsTotal.WithLabelValues("move_card", "ok")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(operationsTotal.WithLabelValues("move_card", "not_found")), 1.0)
}

func TestCardMovedKinds(t *testing.T) {
	same := testutil.ToFloat64(cardMovesTotal.WithLabelValues("same_stage"))
	cross := testutil.ToFloat64(cardMovesTotal.WithLabelValues("cross_stage"))
	CardMoved(false)
	CardMoved(true)
	CardMoved(true)
	assert.Equal(t, same+1, testutil.ToFloat64(cardMovesTotal.WithLabelValues("same_stage")))
	assert.Equal(t, cross+2, testutil.ToFloat64(cardMovesTotal.WithLabelValues("cross_stage")))
}
