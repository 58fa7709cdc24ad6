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

// ShipmentRepository implements fulfillment.ShipmentRepository using GORM.
type ShipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository creates a shipment repository.
func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

// Create inserts a new shipment at version 1.
func (r *ShipmentRepository) Create(ctx context.Context, s *fulfillment.Shipment) error {
	if s.Version == 0 {
		s.Version = 1
	}
	return r.db.WithContext(ctx).Create(shipmentModelFromDomain(s)).Error
}

// Update writes every column of s guarded by its version, then bumps s.Version.
func (r *ShipmentRepository) Update(ctx context.Context, s *fulfillment.Shipment) error {
	expected := s.Version
	m := shipmentModelFromDomain(s)
	m.Version = expected + 1

	result := r.db.WithContext(ctx).Model(m).
		Where("version = ?", expected).
		Select("*").
		Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&shipmentModel{}).Where("id = ?", s.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fulfillment.NewNotFound("shipment %s not found", s.ID)
		}
		return fulfillment.NewConflict("shipment %s was modified concurrently", s.ID)
	}
	s.Version = m.Version
	return nil
}

// Get loads a shipment by id.
func (r *ShipmentRepository) Get(ctx context.Context, id uuid.UUID) (*fulfillment.Shipment, error) {
	var m shipmentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fulfillment.NewNotFound("shipment %s not found", id)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// FindByTrackingNumber loads a shipment by its carrier tracking number.
func (r *ShipmentRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*fulfillment.Shipment, error) {
	var m shipmentModel
	if err := r.db.WithContext(ctx).Where("tracking_number = ?", trackingNumber).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fulfillment.NewNotFound("no shipment with tracking number %s", trackingNumber)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// FindActiveByOrder loads the newest non-cancelled shipment for an order on a carrier.
func (r *ShipmentRepository) FindActiveByOrder(ctx context.Context, tenantID uuid.UUID, orderID, carrierCode string) (*fulfillment.Shipment, error) {
	var m shipmentModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND LOWER(carrier_code) = LOWER(?) AND status <> ?",
			tenantID, orderID, carrierCode, string(shipper.StatusCancelled)).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fulfillment.NewNotFound("no active %s shipment for order %s", carrierCode, orderID)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// ListDraftsBefore returns drafts created before cutoff, oldest first.
func (r *ShipmentRepository) ListDraftsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*fulfillment.Shipment, error) {
	var models []shipmentModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(shipper.StatusDraft), cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*fulfillment.Shipment, len(models))
	for i := range models {
		out[i] = models[i].toDomain()
	}
	return out, nil
}

var _ fulfillment.ShipmentRepository = (*ShipmentRepository)(nil)
