package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"gorm.io/gorm"
)

// WebhookRepository implements fulfillment.WebhookRepository using GORM.
type WebhookRepository struct {
	db *gorm.DB
}

// NewWebhookRepository creates a webhook log repository.
func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Append stores an inbound call.
func (r *WebhookRepository) Append(ctx context.Context, e *fulfillment.WebhookLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(webhookModelFromDomain(e)).Error
}

// Get loads one entry.
func (r *WebhookRepository) Get(ctx context.Context, id uuid.UUID) (*fulfillment.WebhookLogEntry, error) {
	var m webhookLogModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fulfillment.NewNotFound("webhook %s not found", id)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// FindPending returns unprocessed entries still below maxAttempts, oldest first.
func (r *WebhookRepository) FindPending(ctx context.Context, maxAttempts, limit int) ([]*fulfillment.WebhookLogEntry, error) {
	return r.list(r.db.WithContext(ctx).
		Where("processed_successfully = ? AND processing_attempts < ?", false, maxAttempts).
		Order("received_at ASC").
		Limit(limit))
}

// FindParked returns unprocessed entries that used up their attempts, oldest first.
func (r *WebhookRepository) FindParked(ctx context.Context, maxAttempts, limit int) ([]*fulfillment.WebhookLogEntry, error) {
	return r.list(r.db.WithContext(ctx).
		Where("processed_successfully = ? AND processing_attempts >= ?", false, maxAttempts).
		Order("received_at ASC").
		Limit(limit))
}

// FindByTrackingNumber returns every entry filed under a tracking number, oldest first.
func (r *WebhookRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) ([]*fulfillment.WebhookLogEntry, error) {
	return r.list(r.db.WithContext(ctx).
		Where("tracking_number = ?", trackingNumber).
		Order("received_at ASC"))
}

func (r *WebhookRepository) list(q *gorm.DB) ([]*fulfillment.WebhookLogEntry, error) {
	var models []webhookLogModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*fulfillment.WebhookLogEntry, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

// MarkProcessed flags an entry as applied.
func (r *WebhookRepository) MarkProcessed(ctx context.Context, id uuid.UUID, trackingNumber string, at time.Time) error {
	updates := map[string]interface{}{
		"processed_successfully": true,
		"processed_at":           at,
		"last_error":             "",
	}
	if trackingNumber != "" {
		updates["tracking_number"] = trackingNumber
	}
	return r.update(ctx, id, updates)
}

// MarkFailed records a failed attempt. The attempt count never passes maxAttempts.
func (r *WebhookRepository) MarkFailed(ctx context.Context, id uuid.UUID, trackingNumber, lastError string, maxAttempts int) (int, error) {
	var attempts int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"processing_attempts": gorm.Expr(
				"CASE WHEN processing_attempts + 1 > ? THEN ? ELSE processing_attempts + 1 END",
				maxAttempts, maxAttempts),
			"last_error": lastError,
		}
		if trackingNumber != "" {
			updates["tracking_number"] = trackingNumber
		}
		result := tx.Model(&webhookLogModel{}).
			Where("id = ? AND processed_successfully = ?", id, false).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fulfillment.NewNotFound("unprocessed webhook %s not found", id)
		}

		var m webhookLogModel
		if err := tx.Select("processing_attempts").Where("id = ?", id).First(&m).Error; err != nil {
			return err
		}
		attempts = m.ProcessingAttempts
		return nil
	})
	return attempts, err
}

// ResetAttempts puts a parked entry back in front of the sweep.
func (r *WebhookRepository) ResetAttempts(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, map[string]interface{}{
		"processing_attempts": 0,
		"last_error":          "",
	})
}

func (r *WebhookRepository) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&webhookLogModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fulfillment.NewNotFound("webhook %s not found", id)
	}
	return nil
}

var _ fulfillment.WebhookRepository = (*WebhookRepository)(nil)
