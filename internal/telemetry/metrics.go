package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
// Methods are safe on a nil *Metrics so components can run without instrumentation.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	CarrierErrors       *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	WebhooksReceived    *prometheus.CounterVec
	WebhooksProcessed   *prometheus.CounterVec
	WebhooksParked      *prometheus.CounterVec
	SweepDuration       prometheus.Histogram
	Compensations       *prometheus.CounterVec
	CancelDiscrepancies *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_carrier_requests_total",
				Help: "Total number of carrier requests by operation, carrier, and status",
			},
			[]string{"operation", "carrier", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fulfillment_carrier_request_duration_seconds",
				Help:    "Carrier request duration in seconds by operation and carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),
		CarrierErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_carrier_errors_total",
				Help: "Total carrier API errors by carrier and error type",
			},
			[]string{"carrier", "error_type"},
		),
		Transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_shipment_transitions_total",
				Help: "Shipment status transitions by source and target status",
			},
			[]string{"from", "to"},
		),
		WebhooksReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_webhooks_received_total",
				Help: "Inbound webhook calls logged, by carrier",
			},
			[]string{"carrier"},
		),
		WebhooksProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_webhook_entries_processed_total",
				Help: "Webhook log entries handled by the sweep, by carrier and result",
			},
			[]string{"carrier", "result"},
		),
		WebhooksParked: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_webhook_entries_parked_total",
				Help: "Webhook log entries that exhausted their attempts",
			},
			[]string{"carrier"},
		),
		SweepDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fulfillment_sweep_duration_seconds",
				Help:    "Duration of one webhook sweep cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		Compensations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_compensations_total",
				Help: "Draft shipments cancelled after a failed or abandoned carrier submission",
			},
			[]string{"carrier", "cause"},
		),
		CancelDiscrepancies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_cancel_discrepancies_total",
				Help: "Local cancellations the carrier refused or failed to confirm",
			},
			[]string{"carrier"},
		),
	}
}

// RecordRequest records a carrier request metric.
func (m *Metrics) RecordRequest(operation, carrier, status string, duration float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, carrier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, carrier).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(carrier, errorType string) {
	if m == nil {
		return
	}
	m.CarrierErrors.WithLabelValues(carrier, errorType).Inc()
}

// RecordTransition counts a persisted status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordWebhookReceived counts a logged inbound webhook.
func (m *Metrics) RecordWebhookReceived(carrier string) {
	if m == nil {
		return
	}
	m.WebhooksReceived.WithLabelValues(carrier).Inc()
}

// RecordWebhookResult counts one sweep outcome (applied, duplicate, stale, failed).
func (m *Metrics) RecordWebhookResult(carrier, result string) {
	if m == nil {
		return
	}
	m.WebhooksProcessed.WithLabelValues(carrier, result).Inc()
}

// RecordWebhookParked counts an entry that reached the attempt limit.
func (m *Metrics) RecordWebhookParked(carrier string) {
	if m == nil {
		return
	}
	m.WebhooksParked.WithLabelValues(carrier).Inc()
}

// ObserveSweep records the duration of a sweep cycle.
func (m *Metrics) ObserveSweep(seconds float64) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(seconds)
}

// RecordCompensation counts a draft cancelled by the creation path or the reaper.
func (m *Metrics) RecordCompensation(carrier, cause string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(carrier, cause).Inc()
}

// RecordCancelDiscrepancy counts a cancellation the carrier did not confirm.
func (m *Metrics) RecordCancelDiscrepancy(carrier string) {
	if m == nil {
		return
	}
	m.CancelDiscrepancies.WithLabelValues(carrier).Inc()
}
