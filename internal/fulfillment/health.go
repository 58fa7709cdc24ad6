package fulfillment

import (
	"context"
	"time"

	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const healthCheckConcurrency = 4

// CheckProviders probes every active provider and records the result.
// It returns the number of providers checked.
func (s *Service) CheckProviders(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.CheckProviders")
	defer span.End()

	configs, err := s.router.Providers().AllActive(ctx)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(healthCheckConcurrency)
	for _, cfg := range configs {
		g.Go(func() error {
			status := s.probe(ctx, cfg)
			if err := s.router.Providers().RecordHealth(ctx, cfg, status); err != nil {
				s.logger.Ctx(ctx).Error("Failed to record provider health",
					zap.String("carrier", cfg.CarrierCode),
					zap.String("provider_id", cfg.ID.String()),
					zap.Error(err),
				)
				return nil
			}
			if status.State != shipper.HealthHealthy {
				s.logger.Ctx(ctx).Warn("Provider unhealthy",
					zap.String("carrier", cfg.CarrierCode),
					zap.String("provider_id", cfg.ID.String()),
					zap.String("state", string(status.State)),
					zap.String("message", status.Message),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(configs), nil
}

func (s *Service) probe(ctx context.Context, cfg *ProviderConfig) shipper.HealthStatus {
	route, err := s.router.routeFor(ctx, cfg)
	if err != nil {
		return shipper.HealthStatus{State: shipper.HealthUnhealthy, Message: err.Error(), CheckedAt: s.now()}
	}
	callCtx, cancel := s.callTimeout(ctx)
	defer cancel()

	start := time.Now()
	status := route.Adapter.HealthCheck(callCtx, route.Account)
	s.metrics.RecordRequest("health_check", cfg.CarrierCode, string(status.State), time.Since(start).Seconds())
	if status.CheckedAt.IsZero() {
		status.CheckedAt = s.now()
	}
	return status
}
