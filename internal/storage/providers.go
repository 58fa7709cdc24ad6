package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"gorm.io/gorm"
)

// ProviderRepository implements fulfillment.ProviderRepository using GORM.
type ProviderRepository struct {
	db *gorm.DB
}

// NewProviderRepository creates a provider configuration repository.
func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// Find returns the tenant's config for a carrier, active or not.
func (r *ProviderRepository) Find(ctx context.Context, tenantID uuid.UUID, carrierCode string) (*fulfillment.ProviderConfig, error) {
	var m providerModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND carrier_code = ?", tenantID, shipper.NormalizeCode(carrierCode)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fulfillment.NewNotFound("provider %s is not configured", shipper.NormalizeCode(carrierCode))
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// ListByTenant returns every config of a tenant.
func (r *ProviderRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*fulfillment.ProviderConfig, error) {
	return r.list(r.db.WithContext(ctx).Where("tenant_id = ?", tenantID))
}

// ListActiveByCarrier returns active configs of one carrier across tenants.
func (r *ProviderRepository) ListActiveByCarrier(ctx context.Context, carrierCode string) ([]*fulfillment.ProviderConfig, error) {
	return r.list(r.db.WithContext(ctx).Where("active = ? AND carrier_code = ?", true, shipper.NormalizeCode(carrierCode)))
}

// ListActive returns every active config.
func (r *ProviderRepository) ListActive(ctx context.Context) ([]*fulfillment.ProviderConfig, error) {
	return r.list(r.db.WithContext(ctx).Where("active = ?", true))
}

func (r *ProviderRepository) list(q *gorm.DB) ([]*fulfillment.ProviderConfig, error) {
	var models []providerModel
	if err := q.Order("sort_order ASC, carrier_code ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*fulfillment.ProviderConfig, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

// Save inserts or replaces a config. A config for the same tenant and carrier
// keeps its original id and creation time.
func (r *ProviderRepository) Save(ctx context.Context, p *fulfillment.ProviderConfig) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing providerModel
		err := tx.Where("tenant_id = ? AND carrier_code = ?", p.TenantID, p.CarrierCode).First(&existing).Error
		switch {
		case err == nil:
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			if p.ID == uuid.Nil {
				p.ID = uuid.New()
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = time.Now()
			}
		default:
			return err
		}
		p.UpdatedAt = time.Now()
		return tx.Save(providerModelFromDomain(p)).Error
	})
}

// UpdateHealth records the outcome of a health probe.
func (r *ProviderRepository) UpdateHealth(ctx context.Context, id uuid.UUID, state shipper.HealthState, message string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&providerModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"health_status":     string(state),
			"health_message":    message,
			"last_health_check": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fulfillment.NewNotFound("provider %s not found", id)
	}
	return nil
}

var _ fulfillment.ProviderRepository = (*ProviderRepository)(nil)
