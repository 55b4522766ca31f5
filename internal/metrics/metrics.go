// Package metrics holds the Prometheus collectors of the pipeline engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts engine operations by name and result.
	// Result labels: "ok", "not_found", "conflict", "validation_error", "persistence_error".
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageline_engine_operations_total",
		Help: "Total pipeline engine operations by result",
	}, []string{"op", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stageline_engine_operation_duration_seconds",
		Help:    "Pipeline engine operation duration",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"op"})

	cardMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageline_card_moves_total",
		Help: "Card moves by kind (same_stage, cross_stage)",
	}, []string{"kind"})

	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stageline_webhook_deliveries_total",
		Help: "Webhook deliveries by result",
	}, []string{"result"})
)

// Observe records one finished operation. result is "ok" or an error type.
func Observe(op, result string, elapsed time.Duration) {
	operationsTotal.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func CardMoved(crossStage bool) {
	kind := "same_stage"
	if crossStage {
		kind = "cross_stage"
	}
	cardMovesTotal.WithLabelValues(kind).Inc()
}

func WebhookDelivered(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	webhookDeliveriesTotal.WithLabelValues(result).Inc()
}
