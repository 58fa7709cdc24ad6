package fulfillment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// InvalidationNotifier tells other instances that a provider config changed.
type InvalidationNotifier interface {
	NotifyProviderChanged(ctx context.Context, tenantID uuid.UUID, carrierCode string) error
}

type cacheKey struct {
	tenant uuid.UUID
	code   string
}

type cacheEntry struct {
	cfg     *ProviderConfig
	expires time.Time
}

// ProviderRegistry is the read-mostly store of provider configs with a
// read-through TTL cache. Every write invalidates the affected entry.
type ProviderRegistry struct {
	repo     ProviderRepository
	ttl      time.Duration
	now      Clock
	logger   *otelzap.Logger
	notifier InvalidationNotifier

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
	gen   uint64 // Bumped by every invalidation; a fill started before one is dropped
}

// NewProviderRegistry creates a registry over repo. A ttl of zero disables caching.
func NewProviderRegistry(repo ProviderRepository, ttl time.Duration, logger *otelzap.Logger) *ProviderRegistry {
	return &ProviderRegistry{
		repo:   repo,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
		cache:  make(map[cacheKey]cacheEntry),
	}
}

// SetNotifier installs the cross-instance invalidation notifier.
func (r *ProviderRegistry) SetNotifier(n InvalidationNotifier) {
	r.notifier = n
}

// SetClock overrides the clock used for cache expiry.
func (r *ProviderRegistry) SetClock(c Clock) {
	r.now = c
}

// Lookup returns the active config of carrierCode for tenantID.
// An absent or disabled config is NotFound: the provider is unavailable.
func (r *ProviderRegistry) Lookup(ctx context.Context, tenantID uuid.UUID, carrierCode string) (*ProviderConfig, error) {
	key := cacheKey{tenant: tenantID, code: shipper.NormalizeCode(carrierCode)}

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()

	var cfg *ProviderConfig
	if ok && r.now().Before(entry.expires) {
		cfg = entry.cfg
	} else {
		r.mu.RLock()
		gen := r.gen
		r.mu.RUnlock()

		found, err := r.repo.Find(ctx, tenantID, key.code)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		cfg = found
		if r.ttl > 0 {
			r.mu.Lock()
			if r.gen == gen {
				r.cache[key] = cacheEntry{cfg: found, expires: r.now().Add(r.ttl)}
			}
			r.mu.Unlock()
		}
	}

	if cfg == nil {
		return nil, notFoundError("provider %s is not configured", key.code)
	}
	if !cfg.Active {
		return nil, notFoundError("provider %s is inactive", key.code)
	}
	return cfg, nil
}

// ListActive returns the tenant's active providers, ordered by sort order.
func (r *ProviderRegistry) ListActive(ctx context.Context, tenantID uuid.UUID) ([]ProviderView, error) {
	cfgs, err := r.activeForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	views := make([]ProviderView, len(cfgs))
	for i, c := range cfgs {
		views[i] = c.View()
	}
	return views, nil
}

func (r *ProviderRegistry) activeForTenant(ctx context.Context, tenantID uuid.UUID) ([]*ProviderConfig, error) {
	all, err := r.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	active := make([]*ProviderConfig, 0, len(all))
	for _, c := range all {
		if c.Active {
			active = append(active, c)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].SortOrder != active[j].SortOrder {
			return active[i].SortOrder < active[j].SortOrder
		}
		return active[i].CarrierCode < active[j].CarrierCode
	})
	return active, nil
}

// ActiveByCarrier lists active configs for a carrier across all tenants.
func (r *ProviderRegistry) ActiveByCarrier(ctx context.Context, carrierCode string) ([]*ProviderConfig, error) {
	return r.repo.ListActiveByCarrier(ctx, shipper.NormalizeCode(carrierCode))
}

// AllActive lists every active config.
func (r *ProviderRegistry) AllActive(ctx context.Context) ([]*ProviderConfig, error) {
	return r.repo.ListActive(ctx)
}

// Save creates or updates a config and invalidates its cache entry.
func (r *ProviderRegistry) Save(ctx context.Context, cfg *ProviderConfig) error {
	cfg.CarrierCode = shipper.NormalizeCode(cfg.CarrierCode)
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.HealthStatus == "" {
		cfg.HealthStatus = shipper.HealthUnknown
	}
	if err := r.repo.Save(ctx, cfg); err != nil {
		return err
	}
	r.changed(ctx, cfg.TenantID, cfg.CarrierCode)
	return nil
}

// RecordHealth stores a health probe result.
func (r *ProviderRegistry) RecordHealth(ctx context.Context, cfg *ProviderConfig, status shipper.HealthStatus) error {
	at := status.CheckedAt
	if at.IsZero() {
		at = r.now()
	}
	if err := r.repo.UpdateHealth(ctx, cfg.ID, status.State, status.Message, at); err != nil {
		return err
	}
	r.changed(ctx, cfg.TenantID, cfg.CarrierCode)
	return nil
}

// Invalidate drops a single cache entry.
func (r *ProviderRegistry) Invalidate(tenantID uuid.UUID, carrierCode string) {
	r.mu.Lock()
	delete(r.cache, cacheKey{tenant: tenantID, code: shipper.NormalizeCode(carrierCode)})
	r.gen++
	r.mu.Unlock()
}

// InvalidateAll empties the cache.
func (r *ProviderRegistry) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[cacheKey]cacheEntry)
	r.gen++
	r.mu.Unlock()
}

func (r *ProviderRegistry) changed(ctx context.Context, tenantID uuid.UUID, code string) {
	r.Invalidate(tenantID, code)
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyProviderChanged(ctx, tenantID, code); err != nil {
		r.logger.Ctx(ctx).Warn("Failed to broadcast provider invalidation",
			zap.String("carrier", code),
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	}
}
