package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Options bounds the service's work.
type Options struct {
	AdapterTimeout     time.Duration
	MaxWebhookAttempts int
	SweepBatchSize     int
	DraftTimeout       time.Duration
	RatePolicy         RatePolicy
}

func (o Options) withDefaults() Options {
	if o.AdapterTimeout <= 0 {
		o.AdapterTimeout = 15 * time.Second
	}
	if o.MaxWebhookAttempts <= 0 {
		o.MaxWebhookAttempts = 5
	}
	if o.SweepBatchSize <= 0 {
		o.SweepBatchSize = 100
	}
	if o.DraftTimeout <= 0 {
		o.DraftTimeout = 15 * time.Minute
	}
	if o.RatePolicy == "" {
		o.RatePolicy = PolicyCheapest
	}
	return o
}

// Service is the shipping fulfillment core: orchestrators, webhook
// ingestion and sweep, draft reaper, health checks and rate quoting.
type Service struct {
	router    *Router
	shipments ShipmentRepository
	webhooks  WebhookRepository
	publisher Publisher
	opts      Options
	logger    *otelzap.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	now       Clock
}

// NewService creates the fulfillment service.
func NewService(router *Router, shipments ShipmentRepository, webhooks WebhookRepository, opts Options,
	logger *otelzap.Logger, metrics *telemetry.Metrics, tracer trace.Tracer) *Service {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("fulfillment")
	}
	return &Service{
		router:    router,
		shipments: shipments,
		webhooks:  webhooks,
		publisher: NopPublisher{},
		opts:      opts.withDefaults(),
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		now:       time.Now,
	}
}

// SetPublisher installs the status-change publisher.
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetClock overrides the service clock.
func (s *Service) SetClock(c Clock) {
	s.now = c
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// Providers returns the provider registry.
func (s *Service) Providers() *ProviderRegistry {
	return s.router.Providers()
}

// persistTransition stores a shipment whose status moved from `from`, then
// records and publishes the change. Publish failures are logged only.
func (s *Service) persistTransition(ctx context.Context, sh *Shipment, from Status, reason string) error {
	if err := s.shipments.Update(ctx, sh); err != nil {
		return err
	}
	s.metrics.RecordTransition(string(from), string(sh.Status))
	if err := s.publisher.PublishStatusChanged(ctx, statusChanged(sh, from, reason, s.now())); err != nil {
		s.logger.Ctx(ctx).Warn("Failed to publish status change",
			zap.String("shipment_id", sh.ID.String()),
			zap.String("to", string(sh.Status)),
			zap.Error(err),
		)
	}
	return nil
}

// persistTimeout bounds writes that must land after the caller has gone away.
const persistTimeout = 10 * time.Second

// detached returns a context that ignores cancellation of ctx but keeps its
// values, so outcome writes survive a client disconnect.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

// callTimeout bounds one adapter call.
func (s *Service) callTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.AdapterTimeout)
}

// carrierFailureMessage is the text surfaced for a failed adapter call.
func (s *Service) carrierFailureMessage(carrier string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s did not respond within %s", carrier, s.opts.AdapterTimeout)
	}
	return shipper.CarrierMessage(err)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func errorType(err error) string {
	var se *shipper.ShipperError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &se):
		return se.Code
	default:
		return "unknown"
	}
}
