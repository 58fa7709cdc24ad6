// Package shipper provides an abstraction layer for shipping carriers.
package shipper

import (
	"context"
)

// Shipper defines the interface that all shipping carriers must implement.
//
// Every call receives the resolved Account it should act for, so one adapter
// instance serves every tenant configured for its carrier.
type Shipper interface {
	// Name returns the carrier code (e.g., "GHTK", "GHN", "FREIGHTCOM").
	Name() string

	// CreateOrder submits a new shipment to the carrier.
	CreateOrder(ctx context.Context, req *CreateOrderRequest, acct *Account) (*CreateOrderResponse, error)

	// CancelOrder cancels an existing shipment identified by its tracking number.
	CancelOrder(ctx context.Context, trackingNumber string, acct *Account) error

	// GetRates returns the rate options the carrier offers for a shipment.
	GetRates(ctx context.Context, req *RateRequest, acct *Account) ([]Rate, error)

	// ParseWebhook authenticates and decodes an inbound status callback.
	ParseWebhook(ctx context.Context, payload WebhookPayload, acct *Account) (*WebhookEvent, error)

	// TranslateStatus maps a carrier status code onto the normalized lifecycle.
	TranslateStatus(code string) (ShipmentStatus, bool)

	// HealthCheck probes the carrier API with the account's credentials.
	HealthCheck(ctx context.Context, acct *Account) HealthStatus
}
