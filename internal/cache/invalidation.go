// Package cache fans provider-configuration invalidations out to every instance.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel provider changes are announced on.
const DefaultChannel = "fulfillment:providers:invalidate"

// Target drops cached provider configs.
type Target interface {
	Invalidate(tenantID uuid.UUID, carrierCode string)
}

// Message announces that a provider config changed.
type Message struct {
	TenantID    uuid.UUID `json:"tenantId"`
	CarrierCode string    `json:"carrierCode"`
	Origin      string    `json:"origin"`
	Timestamp   int64     `json:"timestamp"`
}

// Invalidator publishes provider changes and applies the ones other instances publish.
type Invalidator struct {
	client  redis.UniversalClient
	channel string
	origin  string
	target  Target
	logger  *otelzap.Logger
}

// NewInvalidator creates an invalidator that drops entries from target.
func NewInvalidator(client redis.UniversalClient, channel string, target Target, logger *otelzap.Logger) *Invalidator {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Invalidator{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		target:  target,
		logger:  logger,
	}
}

// NotifyProviderChanged announces a change to every subscriber.
func (i *Invalidator) NotifyProviderChanged(ctx context.Context, tenantID uuid.UUID, carrierCode string) error {
	data, err := json.Marshal(Message{
		TenantID:    tenantID,
		CarrierCode: carrierCode,
		Origin:      i.origin,
		Timestamp:   time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and blocks until ctx is done.
func (i *Invalidator) Listen(ctx context.Context) error {
	pubsub := i.client.Subscribe(ctx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", i.channel, err)
	}
	i.logger.Info("Subscribed to provider invalidation channel", zap.String("channel", i.channel))

	return i.consume(ctx, pubsub.Channel())
}

func (i *Invalidator) consume(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("Provider invalidation channel closed")
				return nil
			}
			i.handle(msg.Payload)
		}
	}
}

func (i *Invalidator) handle(payload string) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		i.logger.Error("Failed to decode provider invalidation", zap.String("payload", payload), zap.Error(err))
		return
	}
	// The publishing instance already dropped its own entry.
	if m.Origin == i.origin {
		return
	}
	i.target.Invalidate(m.TenantID, m.CarrierCode)
	i.logger.Debug("Provider config invalidated",
		zap.String("tenant_id", m.TenantID.String()),
		zap.String("carrier", m.CarrierCode),
	)
}

var _ fulfillment.InvalidationNotifier = (*Invalidator)(nil)
