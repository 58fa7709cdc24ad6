package fulfillment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusChanged is emitted for every persisted shipment transition.
type StatusChanged struct {
	ShipmentID     uuid.UUID `json:"shipmentId"`
	TenantID       uuid.UUID `json:"tenantId"`
	OrderID        string    `json:"orderId"`
	CarrierCode    string    `json:"carrierCode"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Publisher delivers status changes to interested modules.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// PublishStatusChanged does nothing.
func (NopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }

func statusChanged(s *Shipment, from Status, reason string, at time.Time) StatusChanged {
	return StatusChanged{
		ShipmentID:     s.ID,
		TenantID:       s.TenantID,
		OrderID:        s.OrderID,
		CarrierCode:    s.CarrierCode,
		TrackingNumber: s.TrackingNumber,
		From:           from,
		To:             s.Status,
		Reason:         reason,
		OccurredAt:     at,
	}
}
