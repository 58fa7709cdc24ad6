package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"gorm.io/datatypes"
)

// ============================================================================
// Shipments
// ============================================================================

type shipmentModel struct {
	ID             uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	TenantID       uuid.UUID `gorm:"type:varchar(36);index"`
	OrderID        string    `gorm:"type:varchar(64);index"`
	ProviderID     uuid.UUID `gorm:"type:varchar(36)"`
	CarrierCode    string    `gorm:"type:varchar(32);not null"`
	ServiceType    string    `gorm:"type:varchar(32)"`
	Status         string    `gorm:"type:varchar(32);not null;index:idx_shipments_status_created,priority:1"`
	TrackingNumber *string   `gorm:"type:varchar(64);uniqueIndex"` // NULL until the carrier accepts
	CarrierOrderID string    `gorm:"type:varchar(64)"`

	Snapshot datatypes.JSONType[fulfillment.Snapshot]

	WeightGrams      int
	DeclaredValue    decimal.Decimal `gorm:"type:numeric(18,4)"`
	CODAmount        decimal.Decimal `gorm:"type:numeric(18,4)"`
	BaseFee          decimal.Decimal `gorm:"type:numeric(18,4)"`
	CODFee           decimal.Decimal `gorm:"type:numeric(18,4)"`
	InsuranceFee     decimal.Decimal `gorm:"type:numeric(18,4)"`
	IsFreeship       bool
	RequireInsurance bool
	Notes            string `gorm:"type:text"`

	LabelURL          string `gorm:"type:text"`
	TrackingURL       string `gorm:"type:text"`
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time

	LastCarrierError string `gorm:"type:text"`
	CancelReason     string `gorm:"type:text"`
	CancelledAt      *time.Time

	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;index:idx_shipments_status_created,priority:2"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (shipmentModel) TableName() string { return "shipments" }

func shipmentModelFromDomain(s *fulfillment.Shipment) *shipmentModel {
	var tn *string
	if s.TrackingNumber != "" {
		v := s.TrackingNumber
		tn = &v
	}
	return &shipmentModel{
		ID:                s.ID,
		TenantID:          s.TenantID,
		OrderID:           s.OrderID,
		ProviderID:        s.ProviderID,
		CarrierCode:       s.CarrierCode,
		ServiceType:       string(s.ServiceType),
		Status:            string(s.Status),
		TrackingNumber:    tn,
		CarrierOrderID:    s.CarrierOrderID,
		Snapshot:          datatypes.NewJSONType(s.Snapshot()),
		WeightGrams:       s.WeightGrams,
		DeclaredValue:     s.DeclaredValue,
		CODAmount:         s.CODAmount,
		BaseFee:           s.Fees.Base,
		CODFee:            s.Fees.COD,
		InsuranceFee:      s.Fees.Insurance,
		IsFreeship:        s.IsFreeship,
		RequireInsurance:  s.RequireInsurance,
		Notes:             s.Notes,
		LabelURL:          s.LabelURL,
		TrackingURL:       s.TrackingURL,
		EstimatedDelivery: s.EstimatedDelivery,
		DeliveredAt:       s.DeliveredAt,
		LastCarrierError:  s.LastCarrierError,
		CancelReason:      s.CancelReason,
		CancelledAt:       s.CancelledAt,
		Version:           s.Version,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func (m *shipmentModel) toDomain() *fulfillment.Shipment {
	s := &fulfillment.Shipment{
		ID:                m.ID,
		TenantID:          m.TenantID,
		OrderID:           m.OrderID,
		ProviderID:        m.ProviderID,
		CarrierCode:       m.CarrierCode,
		ServiceType:       shipper.ServiceType(m.ServiceType),
		Status:            fulfillment.Status(m.Status),
		CarrierOrderID:    m.CarrierOrderID,
		WeightGrams:       m.WeightGrams,
		DeclaredValue:     m.DeclaredValue,
		CODAmount:         m.CODAmount,
		Fees:              fulfillment.Fees{Base: m.BaseFee, COD: m.CODFee, Insurance: m.InsuranceFee},
		IsFreeship:        m.IsFreeship,
		RequireInsurance:  m.RequireInsurance,
		Notes:             m.Notes,
		LabelURL:          m.LabelURL,
		TrackingURL:       m.TrackingURL,
		EstimatedDelivery: m.EstimatedDelivery,
		DeliveredAt:       m.DeliveredAt,
		LastCarrierError:  m.LastCarrierError,
		CancelReason:      m.CancelReason,
		CancelledAt:       m.CancelledAt,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.TrackingNumber != nil {
		s.TrackingNumber = *m.TrackingNumber
	}
	s.RestoreSnapshot(m.Snapshot.Data())
	return s
}

// ============================================================================
// Provider configurations
// ============================================================================

type providerModel struct {
	ID                uuid.UUID                             `gorm:"type:varchar(36);primaryKey"`
	TenantID          uuid.UUID                             `gorm:"type:varchar(36);uniqueIndex:idx_providers_tenant_carrier"`
	CarrierCode       string                                `gorm:"type:varchar(32);uniqueIndex:idx_providers_tenant_carrier"`
	DisplayName       string                                `gorm:"type:varchar(128)"`
	Environment       string                                `gorm:"type:varchar(16)"`
	BaseURL           string                                `gorm:"type:text"`
	CredentialsRef    string                                `gorm:"type:text"`
	WebhookSecret     string                                `gorm:"type:text"`
	SupportedServices datatypes.JSONSlice[shipper.ServiceType]
	SortOrder         int
	Active            bool `gorm:"index"`
	SupportsCOD       bool
	SupportsInsurance bool
	MaxWeightGrams    int
	MaxCODAmount      decimal.Decimal `gorm:"type:numeric(18,4)"`
	HealthStatus      string          `gorm:"type:varchar(16)"`
	HealthMessage     string          `gorm:"type:text"`
	LastHealthCheck   *time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

func (providerModel) TableName() string { return "provider_configs" }

func providerModelFromDomain(p *fulfillment.ProviderConfig) *providerModel {
	return &providerModel{
		ID:                p.ID,
		TenantID:          p.TenantID,
		CarrierCode:       p.CarrierCode,
		DisplayName:       p.DisplayName,
		Environment:       string(p.Environment),
		BaseURL:           p.BaseURL,
		CredentialsRef:    p.CredentialsRef,
		WebhookSecret:     p.WebhookSecret,
		SupportedServices: datatypes.NewJSONSlice(p.SupportedServices),
		SortOrder:         p.SortOrder,
		Active:            p.Active,
		SupportsCOD:       p.SupportsCOD,
		SupportsInsurance: p.SupportsInsurance,
		MaxWeightGrams:    p.MaxWeightGrams,
		MaxCODAmount:      p.MaxCODAmount,
		HealthStatus:      string(p.HealthStatus),
		HealthMessage:     p.HealthMessage,
		LastHealthCheck:   p.LastHealthCheck,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func (m *providerModel) toDomain() *fulfillment.ProviderConfig {
	return &fulfillment.ProviderConfig{
		ID:                m.ID,
		TenantID:          m.TenantID,
		CarrierCode:       m.CarrierCode,
		DisplayName:       m.DisplayName,
		Environment:       shipper.Environment(m.Environment),
		BaseURL:           m.BaseURL,
		CredentialsRef:    m.CredentialsRef,
		WebhookSecret:     m.WebhookSecret,
		SupportedServices: []shipper.ServiceType(m.SupportedServices),
		SortOrder:         m.SortOrder,
		Active:            m.Active,
		SupportsCOD:       m.SupportsCOD,
		SupportsInsurance: m.SupportsInsurance,
		MaxWeightGrams:    m.MaxWeightGrams,
		MaxCODAmount:      m.MaxCODAmount,
		HealthStatus:      shipper.HealthState(m.HealthStatus),
		HealthMessage:     m.HealthMessage,
		LastHealthCheck:   m.LastHealthCheck,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ============================================================================
// Webhook log
// ============================================================================

type webhookLogModel struct {
	ID                    uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	Carrier               string    `gorm:"type:varchar(32);index"`
	TrackingNumber        string    `gorm:"type:varchar(64);index"`
	RawPayload            []byte
	Signature             string    `gorm:"type:text"`
	ReceivedAt            time.Time `gorm:"index:idx_webhook_logs_pending,priority:3"`
	ProcessedSuccessfully bool      `gorm:"index:idx_webhook_logs_pending,priority:1"`
	ProcessingAttempts    int       `gorm:"not null;default:0;index:idx_webhook_logs_pending,priority:2"`
	LastError             string    `gorm:"type:text"`
	ProcessedAt           *time.Time
}

func (webhookLogModel) TableName() string { return "webhook_logs" }

func webhookModelFromDomain(e *fulfillment.WebhookLogEntry) *webhookLogModel {
	return &webhookLogModel{
		ID:                    e.ID,
		Carrier:               e.Carrier,
		TrackingNumber:        e.TrackingNumber,
		RawPayload:            e.RawPayload,
		Signature:             e.Signature,
		ReceivedAt:            e.ReceivedAt,
		ProcessedSuccessfully: e.ProcessedSuccessfully,
		ProcessingAttempts:    e.ProcessingAttempts,
		LastError:             e.LastError,
		ProcessedAt:           e.ProcessedAt,
	}
}

func (m *webhookLogModel) toDomain() *fulfillment.WebhookLogEntry {
	return &fulfillment.WebhookLogEntry{
		ID:                    m.ID,
		Carrier:               m.Carrier,
		TrackingNumber:        m.TrackingNumber,
		RawPayload:            m.RawPayload,
		Signature:             m.Signature,
		ReceivedAt:            m.ReceivedAt,
		ProcessedSuccessfully: m.ProcessedSuccessfully,
		ProcessingAttempts:    m.ProcessingAttempts,
		LastError:             m.LastError,
		ProcessedAt:           m.ProcessedAt,
	}
}
