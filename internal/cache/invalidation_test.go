package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type publishedMessage struct {
	channel string
	payload []byte
}

type fakeRedis struct {
	redis.UniversalClient

	mu        sync.Mutex
	published []publishedMessage
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

type invalidation struct {
	tenant uuid.UUID
	code   string
}

type recordingTarget struct {
	mu    sync.Mutex
	calls []invalidation
}

func (r *recordingTarget) Invalidate(tenantID uuid.UUID, carrierCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, invalidation{tenant: tenantID, code: carrierCode})
}

func (r *recordingTarget) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestNotifyProviderChanged(t *testing.T) {
	client := &fakeRedis{}
	inv := NewInvalidator(client, "", &recordingTarget{}, otelzap.New(zap.NewNop()))
	tenant := uuid.New()

	require.NoError(t, inv.NotifyProviderChanged(context.Background(), tenant, "GHN"))

	require.Len(t, client.published, 1)
	assert.Equal(t, DefaultChannel, client.published[0].channel)

	var m Message
	require.NoError(t, json.Unmarshal(client.published[0].payload, &m))
	assert.Equal(t, tenant, m.TenantID)
	assert.Equal(t, "GHN", m.CarrierCode)
	assert.NotEmpty(t, m.Origin)
}

func TestConsume_InvalidatesForeignChanges(t *testing.T) {
	target := &recordingTarget{}
	inv := NewInvalidator(&fakeRedis{}, "chan", target, otelzap.New(zap.NewNop()))
	tenant := uuid.New()

	foreign, _ := json.Marshal(Message{TenantID: tenant, CarrierCode: "GHTK", Origin: "other-instance"})
	own, _ := json.Marshal(Message{TenantID: tenant, CarrierCode: "GHTK", Origin: inv.origin})

	ch := make(chan *redis.Message, 3)
	ch <- &redis.Message{Channel: "chan", Payload: "not json"}
	ch <- &redis.Message{Channel: "chan", Payload: string(own)}
	ch <- &redis.Message{Channel: "chan", Payload: string(foreign)}
	close(ch)

	require.NoError(t, inv.consume(context.Background(), ch))

	require.Equal(t, 1, target.count())
	assert.Equal(t, invalidation{tenant: tenant, code: "GHTK"}, target.calls[0])
}

func TestConsume_StopsOnContextCancel(t *testing.T) {
	inv := NewInvalidator(&fakeRedis{}, "chan", &recordingTarget{}, otelzap.New(zap.NewNop()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := inv.consume(ctx, make(chan *redis.Message))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
