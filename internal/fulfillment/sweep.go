package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.uber.org/zap"
)

// Locker is a cross-instance lease held for the length of one sweep cycle.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// LeaseRenewer is implemented by lockers whose lease expires on its own.
// The sweep renews before every entry and stops once the lease is gone.
type LeaseRenewer interface {
	Renew(ctx context.Context) error
}

// SweepReport summarizes one sweep cycle.
type SweepReport struct {
	Skipped   bool // Another sweep held the lock
	LeaseLost bool // The cycle stopped early because the lease could not be renewed
	Selected  int
	Applied   int
	Unchanged int // Duplicates and stale events
	Failed    int
	Parked    int
}

// Sweeper applies logged webhooks to shipments. Only one cycle runs at a
// time within the process; the optional Locker extends that across instances.
type Sweeper struct {
	svc    *Service
	locker Locker
	mu     sync.Mutex
}

// NewSweeper creates a sweeper. locker may be nil for single-instance deployments.
func NewSweeper(svc *Service, locker Locker) *Sweeper {
	return &Sweeper{svc: svc, locker: locker}
}

// Sweep runs one cycle over the oldest pending entries.
func (w *Sweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	if !w.mu.TryLock() {
		return &SweepReport{Skipped: true}, nil
	}
	defer w.mu.Unlock()

	var renew func(context.Context) error
	if w.locker != nil {
		ok, err := w.locker.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring sweep lease: %w", err)
		}
		if !ok {
			return &SweepReport{Skipped: true}, nil
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				w.svc.logger.Ctx(ctx).Warn("Failed to release sweep lease", zap.Error(err))
			}
		}()
		if r, ok := w.locker.(LeaseRenewer); ok {
			renew = r.Renew
		}
	}

	return w.svc.sweep(ctx, renew)
}

// sweep runs one cycle. renew, when set, is called before each entry.
func (s *Service) sweep(ctx context.Context, renew func(context.Context) error) (*SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.Sweep")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start).Seconds()) }()

	maxAttempts := s.opts.MaxWebhookAttempts
	entries, err := s.webhooks.FindPending(ctx, maxAttempts, s.opts.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("selecting pending webhooks: %w", err)
	}

	report := &SweepReport{Selected: len(entries)}
	for i, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if renew != nil {
			if err := renew(ctx); err != nil {
				report.LeaseLost = true
				s.logger.Ctx(ctx).Warn("Sweep lease could not be renewed, stopping cycle",
					zap.Int("remaining", len(entries)-i),
					zap.Error(err),
				)
				break
			}
		}
		log := s.logger.WithOptions(zap.Fields(
			zap.String("webhook_id", e.ID.String()),
			zap.String("carrier", e.Carrier),
		)).Ctx(ctx)

		outcome, tn, procErr := s.processEntry(ctx, e)
		if procErr != nil {
			report.Failed++
			s.metrics.RecordWebhookResult(e.Carrier, "failed")
			attempts, err := s.webhooks.MarkFailed(ctx, e.ID, tn, procErr.Error(), maxAttempts)
			if err != nil {
				log.Error("Failed to record webhook failure", zap.Error(err))
				continue
			}
			if attempts >= maxAttempts {
				report.Parked++
				s.metrics.RecordWebhookParked(e.Carrier)
				log.Error("Webhook parked for manual review",
					zap.String("tracking_number", tn),
					zap.Int("attempts", attempts),
					zap.Error(procErr),
				)
			} else {
				log.Warn("Webhook processing failed",
					zap.String("tracking_number", tn),
					zap.Int("attempts", attempts),
					zap.Error(procErr),
				)
			}
			continue
		}

		if outcome == OutcomeApplied {
			report.Applied++
		} else {
			report.Unchanged++
		}
		s.metrics.RecordWebhookResult(e.Carrier, outcome.String())
		if err := s.webhooks.MarkProcessed(ctx, e.ID, tn, s.now()); err != nil {
			log.Error("Failed to mark webhook processed", zap.Error(err))
		}
	}

	if report.Selected > 0 {
		s.logger.Ctx(ctx).Info("Sweep cycle finished",
			zap.Int("selected", report.Selected),
			zap.Int("applied", report.Applied),
			zap.Int("unchanged", report.Unchanged),
			zap.Int("failed", report.Failed),
			zap.Int("parked", report.Parked),
		)
	}
	return report, nil
}

// processEntry applies one logged call. It returns the tracking number it
// found, if any, so failures can still be filed under it.
func (s *Service) processEntry(ctx context.Context, e *WebhookLogEntry) (Outcome, string, error) {
	adapter, err := s.router.Adapter(e.Carrier)
	if err != nil {
		return 0, "", err
	}

	event, tenants, err := s.authenticate(ctx, adapter, e)
	if err != nil {
		return 0, "", err
	}
	tn := event.TrackingNumber

	sh, err := s.shipments.FindByTrackingNumber(ctx, tn)
	if err != nil {
		return 0, tn, err
	}
	if !tenants[sh.TenantID] {
		return 0, tn, fmt.Errorf("%w: signature does not belong to the tenant of %s", shipper.ErrWebhookUnauthenticated, tn)
	}

	to, ok := adapter.TranslateStatus(event.StatusCode)
	if !ok {
		return 0, tn, fmt.Errorf("unknown %s status code %q", e.Carrier, event.StatusCode)
	}

	from := sh.Status
	outcome, err := sh.ApplyCarrierStatus(to, event.EventTime, s.now())
	if err != nil {
		return 0, tn, err
	}
	if outcome != OutcomeApplied {
		return outcome, tn, nil
	}

	reason := "carrier reported " + event.StatusCode
	if event.Description != "" {
		reason += ": " + event.Description
	}
	if err := s.persistTransition(ctx, sh, from, reason); err != nil {
		return 0, tn, err
	}
	return outcome, tn, nil
}

// authenticate parses the entry with every active config of its carrier and
// returns the event together with the tenants whose secret accepted it.
func (s *Service) authenticate(ctx context.Context, adapter shipper.Shipper, e *WebhookLogEntry) (*shipper.WebhookEvent, map[uuid.UUID]bool, error) {
	configs, err := s.router.Providers().ActiveByCarrier(ctx, e.Carrier)
	if err != nil {
		return nil, nil, err
	}
	if len(configs) == 0 {
		return nil, nil, notFoundError("no active provider is configured for %s", e.Carrier)
	}

	payload := shipper.WebhookPayload{Body: e.RawPayload, Signature: e.Signature}
	var (
		event   *shipper.WebhookEvent
		tenants = make(map[uuid.UUID]bool)
		lastErr error = shipper.ErrWebhookUnauthenticated
	)
	for _, cfg := range configs {
		acct, err := s.router.Account(ctx, cfg)
		if err != nil {
			lastErr = err
			continue
		}
		ev, err := adapter.ParseWebhook(ctx, payload, acct)
		switch {
		case err == nil:
			if event == nil {
				event = ev
			}
			tenants[cfg.TenantID] = true
		case errors.Is(err, shipper.ErrWebhookUnauthenticated):
			continue
		default:
			// The signature matched but the body is unusable; no other config will do better.
			return nil, nil, err
		}
	}
	if event == nil {
		return nil, nil, lastErr
	}
	return event, tenants, nil
}
