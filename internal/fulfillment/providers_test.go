package fulfillment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// memoryProviders is a ProviderRepository that counts reads.
type memoryProviders struct {
	configs   map[uuid.UUID]*fulfillment.ProviderConfig
	finds     int
	afterFind func() // Runs once the row is read, before Find returns
}

func newMemoryProviders() *memoryProviders {
	return &memoryProviders{configs: make(map[uuid.UUID]*fulfillment.ProviderConfig)}
}

func (m *memoryProviders) Find(_ context.Context, tenantID uuid.UUID, code string) (*fulfillment.ProviderConfig, error) {
	m.finds++
	for _, c := range m.configs {
		if c.TenantID == tenantID && c.CarrierCode == code {
			cp := *c
			if m.afterFind != nil {
				m.afterFind()
			}
			return &cp, nil
		}
	}
	return nil, fulfillment.NewNotFound("provider %s is not configured", code)
}

func (m *memoryProviders) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]*fulfillment.ProviderConfig, error) {
	var out []*fulfillment.ProviderConfig
	for _, c := range m.configs {
		if c.TenantID == tenantID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryProviders) ListActiveByCarrier(context.Context, string) ([]*fulfillment.ProviderConfig, error) {
	return nil, nil
}

func (m *memoryProviders) ListActive(context.Context) ([]*fulfillment.ProviderConfig, error) {
	return nil, nil
}

func (m *memoryProviders) Save(_ context.Context, p *fulfillment.ProviderConfig) error {
	cp := *p
	m.configs[p.ID] = &cp
	return nil
}

func (m *memoryProviders) UpdateHealth(_ context.Context, id uuid.UUID, state shipper.HealthState, msg string, at time.Time) error {
	c, ok := m.configs[id]
	if !ok {
		return fulfillment.NewNotFound("provider %s not found", id)
	}
	c.HealthStatus = state
	c.HealthMessage = msg
	c.LastHealthCheck = &at
	return nil
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) NotifyProviderChanged(_ context.Context, tenantID uuid.UUID, code string) error {
	n.calls = append(n.calls, tenantID.String()+"/"+code)
	return nil
}

func TestProviderRegistry_CachesLookups(t *testing.T) {
	repo := newMemoryProviders()
	reg := fulfillment.NewProviderRegistry(repo, time.Minute, otelzap.New(zap.NewNop()))
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	reg.SetClock(func() time.Time { return now })

	tenant := uuid.New()
	cfg := &fulfillment.ProviderConfig{TenantID: tenant, CarrierCode: "ghn", Active: true}
	require.NoError(t, reg.Save(context.Background(), cfg))
	assert.Equal(t, "GHN", cfg.CarrierCode)
	assert.Equal(t, shipper.HealthUnknown, cfg.HealthStatus)

	for i := 0; i < 3; i++ {
		_, err := reg.Lookup(context.Background(), tenant, "GHN")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.finds)

	now = now.Add(2 * time.Minute)
	_, err := reg.Lookup(context.Background(), tenant, "ghn")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.finds)
}

func TestProviderRegistry_WriteInvalidates(t *testing.T) {
	repo := newMemoryProviders()
	reg := fulfillment.NewProviderRegistry(repo, time.Hour, otelzap.New(zap.NewNop()))
	notifier := &recordingNotifier{}
	reg.SetNotifier(notifier)

	tenant := uuid.New()
	cfg := &fulfillment.ProviderConfig{TenantID: tenant, CarrierCode: "GHTK", Active: true}
	require.NoError(t, reg.Save(context.Background(), cfg))
	_, err := reg.Lookup(context.Background(), tenant, "GHTK")
	require.NoError(t, err)

	cfg.Active = false
	require.NoError(t, reg.Save(context.Background(), cfg))

	_, err = reg.Lookup(context.Background(), tenant, "GHTK")
	assert.ErrorIs(t, err, fulfillment.ErrNotFound)
	assert.Len(t, notifier.calls, 2)
	assert.Equal(t, tenant.String()+"/GHTK", notifier.calls[0])
}

func TestProviderRegistry_InvalidationDuringReadIsNotOverwritten(t *testing.T) {
	repo := newMemoryProviders()
	reg := fulfillment.NewProviderRegistry(repo, time.Hour, otelzap.New(zap.NewNop()))

	tenant := uuid.New()
	cfg := &fulfillment.ProviderConfig{ID: uuid.New(), TenantID: tenant, CarrierCode: "GHN", Active: true}
	require.NoError(t, repo.Save(context.Background(), cfg))

	// The provider is deactivated elsewhere after this read but before the cache fill.
	repo.afterFind = func() {
		repo.afterFind = nil
		repo.configs[cfg.ID].Active = false
		reg.Invalidate(tenant, "GHN")
	}
	_, err := reg.Lookup(context.Background(), tenant, "GHN")
	require.NoError(t, err)

	_, err = reg.Lookup(context.Background(), tenant, "GHN")
	assert.ErrorIs(t, err, fulfillment.ErrNotFound)
	assert.Equal(t, 2, repo.finds)
}

func TestProviderRegistry_ExternalInvalidation(t *testing.T) {
	repo := newMemoryProviders()
	reg := fulfillment.NewProviderRegistry(repo, time.Hour, otelzap.New(zap.NewNop()))

	tenant := uuid.New()
	cfg := &fulfillment.ProviderConfig{ID: uuid.New(), TenantID: tenant, CarrierCode: "GHN", Active: true}
	require.NoError(t, repo.Save(context.Background(), cfg))
	_, err := reg.Lookup(context.Background(), tenant, "GHN")
	require.NoError(t, err)

	// Another instance deactivates the provider behind this cache.
	repo.configs[cfg.ID].Active = false
	_, err = reg.Lookup(context.Background(), tenant, "GHN")
	require.NoError(t, err)

	reg.Invalidate(tenant, "ghn")
	_, err = reg.Lookup(context.Background(), tenant, "GHN")
	assert.ErrorIs(t, err, fulfillment.ErrNotFound)
}

func TestProviderRegistry_ListActiveHidesSecrets(t *testing.T) {
	repo := newMemoryProviders()
	reg := fulfillment.NewProviderRegistry(repo, 0, otelzap.New(zap.NewNop()))
	tenant := uuid.New()

	for i, code := range []string{"GHTK", "GHN", "FREIGHTCOM"} {
		require.NoError(t, reg.Save(context.Background(), &fulfillment.ProviderConfig{
			TenantID:       tenant,
			CarrierCode:    code,
			SortOrder:      3 - i,
			Active:         code != "FREIGHTCOM",
			CredentialsRef: "REF_" + code,
			WebhookSecret:  "secret",
		}))
	}

	views, err := reg.ListActive(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "GHN", views[0].CarrierCode)
	assert.Equal(t, "GHTK", views[1].CarrierCode)
	assert.True(t, views[0].HasCredentials)
}
