package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Reader is the part of kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ShipmentRequested asks for a shipment to be created for an order.
type ShipmentRequested struct {
	EventID string `json:"eventId"`
	fulfillment.CreateShipmentCommand
}

// Creator creates shipments. ActiveShipmentForOrder lets a redelivered
// request be recognized before a second shipment is booked.
type Creator interface {
	CreateShipment(ctx context.Context, cmd *fulfillment.CreateShipmentCommand) (*fulfillment.Shipment, error)
	ActiveShipmentForOrder(ctx context.Context, tenantID uuid.UUID, orderID, carrierCode string) (*fulfillment.Shipment, error)
}

// Consumer turns "shipment requested" messages into shipments.
type Consumer struct {
	reader         Reader
	creator        Creator
	logger         *otelzap.Logger
	handleTimeout  time.Duration
	fetchRetryWait time.Duration
}

// NewConsumer creates a consumer reading topic as groupID.
func NewConsumer(brokers []string, topic, groupID string, creator Creator, logger *otelzap.Logger) *Consumer {
	return NewConsumerWithReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), creator, logger)
}

// NewConsumerWithReader creates a consumer on an existing reader.
func NewConsumerWithReader(r Reader, creator Creator, logger *otelzap.Logger) *Consumer {
	return &Consumer{
		reader:         r,
		creator:        creator,
		logger:         logger,
		handleTimeout:  time.Minute,
		fetchRetryWait: time.Second,
	}
}

// Run processes messages until ctx is done. Every message is committed once
// handled: a failed creation is already recorded on the shipment itself.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Ctx(ctx).Warn("Failed to fetch message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.fetchRetryWait):
			}
			continue
		}

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Ctx(ctx).Error("Failed to commit offset", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var req ShipmentRequested
	if err := json.Unmarshal(m.Value, &req); err != nil {
		c.logger.Ctx(ctx).Error("Dropping malformed shipment request",
			zap.Int64("offset", m.Offset),
			zap.ByteString("key", m.Key),
			zap.Error(err),
		)
		return
	}

	handleCtx, cancel := context.WithTimeout(ctx, c.handleTimeout)
	defer cancel()

	existing, err := c.creator.ActiveShipmentForOrder(handleCtx, req.TenantID, req.OrderID, req.CarrierCode)
	switch {
	case err == nil:
		c.logger.Ctx(ctx).Info("Shipment already exists for order, skipping request",
			zap.String("event_id", req.EventID),
			zap.String("order_id", req.OrderID),
			zap.String("shipment_id", existing.ID.String()),
			zap.String("status", string(existing.Status)),
		)
		return
	case !errors.Is(err, fulfillment.ErrNotFound):
		c.logger.Ctx(ctx).Error("Failed to check for an existing shipment",
			zap.String("event_id", req.EventID),
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		return
	}

	sh, err := c.creator.CreateShipment(handleCtx, &req.CreateShipmentCommand)
	if err != nil {
		fields := []zap.Field{
			zap.String("event_id", req.EventID),
			zap.String("order_id", req.OrderID),
			zap.String("carrier", req.CarrierCode),
			zap.String("kind", string(fulfillment.KindOf(err))),
			zap.Error(err),
		}
		if sh != nil {
			fields = append(fields, zap.String("shipment_id", sh.ID.String()))
		}
		c.logger.Ctx(ctx).Warn("Requested shipment was not created", fields...)
		return
	}

	c.logger.Ctx(ctx).Info("Requested shipment created",
		zap.String("event_id", req.EventID),
		zap.String("order_id", req.OrderID),
		zap.String("shipment_id", sh.ID.String()),
		zap.String("tracking_number", sh.TrackingNumber),
	)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
