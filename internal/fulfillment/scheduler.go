package fulfillment

import (
	"context"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// SchedulerConfig holds the job intervals. A non-positive interval disables the job.
type SchedulerConfig struct {
	SweepInterval       time.Duration
	ReaperInterval      time.Duration
	HealthCheckInterval time.Duration
}

// Scheduler runs the sweep, the draft reaper and the health checker in the background.
type Scheduler struct {
	svc     *Service
	sweeper *Sweeper
	config  SchedulerConfig
	logger  *otelzap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler.
func NewScheduler(svc *Service, sweeper *Sweeper, config SchedulerConfig, logger *otelzap.Logger) *Scheduler {
	return &Scheduler{svc: svc, sweeper: sweeper, config: config, logger: logger}
}

// Start launches one loop per enabled job.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.every(ctx, "sweep", s.config.SweepInterval, func(ctx context.Context) error {
		_, err := s.sweeper.Sweep(ctx)
		return err
	})
	s.every(ctx, "draft_reaper", s.config.ReaperInterval, func(ctx context.Context) error {
		_, err := s.svc.ReapDrafts(ctx)
		return err
	})
	s.every(ctx, "health_check", s.config.HealthCheckInterval, func(ctx context.Context) error {
		_, err := s.svc.CheckProviders(ctx)
		return err
	})

	s.logger.Info("Scheduler started",
		zap.Duration("sweep_interval", s.config.SweepInterval),
		zap.Duration("reaper_interval", s.config.ReaperInterval),
		zap.Duration("health_check_interval", s.config.HealthCheckInterval),
	)
}

// Stop cancels the loops and waits for running jobs to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) every(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := job(ctx); err != nil && ctx.Err() == nil {
					s.logger.Ctx(ctx).Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
				}
			}
		}
	}()
}
