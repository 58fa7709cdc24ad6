package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.uber.org/zap"
)

// ReapDrafts cancels drafts that have waited longer than the draft timeout.
// A draft only lingers when the process died between persisting it and
// recording the carrier's answer.
func (s *Service) ReapDrafts(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.ReapDrafts")
	defer span.End()

	cutoff := s.now().Add(-s.opts.DraftTimeout)
	drafts, err := s.shipments.ListDraftsBefore(ctx, cutoff, s.opts.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing stale drafts: %w", err)
	}

	reason := fmt.Sprintf("no carrier outcome recorded within %s", s.opts.DraftTimeout)
	reaped := 0
	for _, sh := range drafts {
		log := s.logger.WithOptions(zap.Fields(
			zap.String("shipment_id", sh.ID.String()),
			zap.String("carrier", sh.CarrierCode),
			zap.String("order_id", sh.OrderID),
		)).Ctx(ctx)
		if err := sh.Cancel(reason, s.now()); err != nil {
			continue
		}
		if err := s.persistTransition(ctx, sh, shipper.StatusDraft, reason); err != nil {
			if errors.Is(err, ErrConflict) {
				// Someone recorded an outcome in the meantime.
				continue
			}
			log.Error("Failed to cancel stale draft", zap.Error(err))
			continue
		}
		reaped++
		s.metrics.RecordCompensation(sh.CarrierCode, "draft_timeout")
		log.Warn("Stale draft cancelled", zap.Time("created_at", sh.CreatedAt))
	}
	return reaped, nil
}
