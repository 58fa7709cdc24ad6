package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.uber.org/zap"
)

// ReceiveWebhook appends an inbound carrier call to the webhook log.
// Nothing is parsed or checked here; the sweep does that. The caller
// acknowledges the carrier once this returns nil.
func (s *Service) ReceiveWebhook(ctx context.Context, carrier string, body []byte, signature string) (*WebhookLogEntry, error) {
	entry := &WebhookLogEntry{
		ID:         uuid.New(),
		Carrier:    shipper.NormalizeCode(carrier),
		RawPayload: append([]byte(nil), body...),
		Signature:  signature,
		ReceivedAt: s.now(),
	}
	if err := s.webhooks.Append(ctx, entry); err != nil {
		s.logger.Ctx(ctx).Error("Failed to log inbound webhook",
			zap.String("carrier", entry.Carrier),
			zap.Int("bytes", len(body)),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordWebhookReceived(entry.Carrier)
	return entry, nil
}

// ReceiveUnreadableWebhook logs a call whose body could not be read in full,
// keeping whatever bytes arrived. The entry goes straight to manual review:
// a truncated payload never parses, so sweeping it would only burn attempts.
func (s *Service) ReceiveUnreadableWebhook(ctx context.Context, carrier string, partial []byte, signature, reason string) (*WebhookLogEntry, error) {
	entry := &WebhookLogEntry{
		ID:                 uuid.New(),
		Carrier:            shipper.NormalizeCode(carrier),
		RawPayload:         append([]byte(nil), partial...),
		Signature:          signature,
		ReceivedAt:         s.now(),
		ProcessingAttempts: s.opts.MaxWebhookAttempts,
		LastError:          reason,
	}
	if err := s.webhooks.Append(ctx, entry); err != nil {
		s.logger.Ctx(ctx).Error("Failed to log unreadable webhook",
			zap.String("carrier", entry.Carrier),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordWebhookReceived(entry.Carrier)
	s.metrics.RecordWebhookParked(entry.Carrier)
	s.logger.Ctx(ctx).Warn("Webhook body unreadable, parked for manual review",
		zap.String("webhook_id", entry.ID.String()),
		zap.String("carrier", entry.Carrier),
		zap.Int("bytes", len(partial)),
		zap.String("reason", reason),
	)
	return entry, nil
}

// WebhookLogsByTracking lists every logged call about a tracking number.
func (s *Service) WebhookLogsByTracking(ctx context.Context, trackingNumber string) ([]*WebhookLogEntry, error) {
	if trackingNumber == "" {
		return nil, validationError("trackingNumber: is required")
	}
	return s.webhooks.FindByTrackingNumber(ctx, trackingNumber)
}

// ParkedWebhooks lists entries that exhausted their attempts, oldest first.
func (s *Service) ParkedWebhooks(ctx context.Context, limit int) ([]*WebhookLogEntry, error) {
	if limit <= 0 {
		limit = s.opts.SweepBatchSize
	}
	return s.webhooks.FindParked(ctx, s.opts.MaxWebhookAttempts, limit)
}

// RequeueWebhook resets an unprocessed entry's attempts so the sweep picks it up again.
func (s *Service) RequeueWebhook(ctx context.Context, id uuid.UUID) (*WebhookLogEntry, error) {
	entry, err := s.webhooks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.ProcessedSuccessfully {
		return nil, conflictError("webhook %s was already processed", id)
	}
	if err := s.webhooks.ResetAttempts(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Ctx(ctx).Info("Webhook requeued for processing",
		zap.String("webhook_id", id.String()),
		zap.String("carrier", entry.Carrier),
		zap.Int("previous_attempts", entry.ProcessingAttempts),
	)
	entry.ProcessingAttempts = 0
	return entry, nil
}
