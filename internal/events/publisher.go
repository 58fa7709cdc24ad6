// Package events carries messages between this service and order fulfillment over Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Event types, sent in the "event-type" header.
const (
	TypeStatusChanged     = "shipment.status_changed"
	TypeShipmentRequested = "shipment.requested"
)

// Writer is the part of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusChangedMessage is the wire form of a status change.
type StatusChangedMessage struct {
	ShipmentID     string    `json:"shipmentId"`
	TenantID       string    `json:"tenantId"`
	OrderID        string    `json:"orderId"`
	CarrierCode    string    `json:"carrierCode"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Publisher emits shipment status changes.
type Publisher struct {
	writer Writer
	logger *otelzap.Logger
}

// NewPublisher creates a publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string, logger *otelzap.Logger) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, logger)
}

// NewPublisherWithWriter creates a publisher on an existing writer.
func NewPublisherWithWriter(w Writer, logger *otelzap.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger}
}

// PublishStatusChanged writes one status change keyed by shipment id, so
// changes of one shipment stay ordered within a partition.
func (p *Publisher) PublishStatusChanged(ctx context.Context, ev fulfillment.StatusChanged) error {
	value, err := json.Marshal(StatusChangedMessage{
		ShipmentID:     ev.ShipmentID.String(),
		TenantID:       ev.TenantID.String(),
		OrderID:        ev.OrderID,
		CarrierCode:    ev.CarrierCode,
		TrackingNumber: ev.TrackingNumber,
		From:           string(ev.From),
		To:             string(ev.To),
		Reason:         ev.Reason,
		OccurredAt:     ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal status change: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.ShipmentID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(TypeStatusChanged)},
		},
		Time: ev.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write status change: %w", err)
	}

	p.logger.Ctx(ctx).Debug("Published status change",
		zap.String("shipment_id", ev.ShipmentID.String()),
		zap.String("to", string(ev.To)),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ fulfillment.Publisher = (*Publisher)(nil)
