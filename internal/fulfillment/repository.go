package fulfillment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// ShipmentRepository persists shipments.
type ShipmentRepository interface {
	Create(ctx context.Context, s *Shipment) error
	// Update writes s if its Version still matches the stored row and bumps it.
	// A stale write fails with a Conflict error.
	Update(ctx context.Context, s *Shipment) error
	Get(ctx context.Context, id uuid.UUID) (*Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*Shipment, error)
	// FindActiveByOrder returns the newest shipment for the order on the
	// carrier that has not been cancelled. Carrier codes compare case-insensitively.
	FindActiveByOrder(ctx context.Context, tenantID uuid.UUID, orderID, carrierCode string) (*Shipment, error)
	ListDraftsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Shipment, error)
}

// ProviderRepository persists provider configurations.
type ProviderRepository interface {
	Find(ctx context.Context, tenantID uuid.UUID, carrierCode string) (*ProviderConfig, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*ProviderConfig, error)
	ListActiveByCarrier(ctx context.Context, carrierCode string) ([]*ProviderConfig, error)
	ListActive(ctx context.Context) ([]*ProviderConfig, error)
	Save(ctx context.Context, p *ProviderConfig) error
	UpdateHealth(ctx context.Context, id uuid.UUID, state shipper.HealthState, message string, at time.Time) error
}

// WebhookRepository persists the inbound webhook log.
type WebhookRepository interface {
	Append(ctx context.Context, e *WebhookLogEntry) error
	Get(ctx context.Context, id uuid.UUID) (*WebhookLogEntry, error)
	// FindPending returns unprocessed entries below maxAttempts, oldest received first.
	FindPending(ctx context.Context, maxAttempts, limit int) ([]*WebhookLogEntry, error)
	// FindParked returns unprocessed entries that reached maxAttempts, oldest first.
	FindParked(ctx context.Context, maxAttempts, limit int) ([]*WebhookLogEntry, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) ([]*WebhookLogEntry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, trackingNumber string, at time.Time) error
	// MarkFailed increments the attempt count without exceeding maxAttempts and
	// returns the new count.
	MarkFailed(ctx context.Context, id uuid.UUID, trackingNumber, lastError string, maxAttempts int) (int, error)
	ResetAttempts(ctx context.Context, id uuid.UUID) error
}

// CredentialResolver turns an opaque credential reference into carrier credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, ref string) (shipper.Credentials, error)
}

// Clock returns the current time.
type Clock func() time.Time
