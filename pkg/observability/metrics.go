package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook reconciliation metrics
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook events received, by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	webhookProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Time spent reconciling a webhook event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// Settlement metrics
	settleOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settle_operations_total",
			Help: "Total number of instant settle operations, by outcome",
		},
		[]string{"outcome"},
	)

	// Gateway client metrics
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of payment gateway API calls, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of payment gateway API calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)
)

// Webhook event outcomes
const (
	WebhookOutcomeApplied      = "applied"
	WebhookOutcomeDuplicate    = "duplicate"
	WebhookOutcomeUnknownOrder = "unknown_order"
	WebhookOutcomeRejected     = "rejected"
	WebhookOutcomeError        = "error"
)

// RecordWebhookEvent records the outcome of one webhook reconciliation
func RecordWebhookEvent(eventType, outcome string, elapsed time.Duration) {
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	webhookProcessingDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

// RecordSettleOperation records an instant settle attempt by outcome
func RecordSettleOperation(outcome string) {
	settleOperationsTotal.WithLabelValues(outcome).Inc()
}

// RecordGatewayRequest records one payment gateway API call
func RecordGatewayRequest(operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
	gatewayRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
