package shipper

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShipmentStatus represents the normalized status of a shipment.
type ShipmentStatus string

const (
	StatusDraft          ShipmentStatus = "draft"
	StatusAwaitingPickup ShipmentStatus = "awaiting_pickup"
	StatusPickedUp       ShipmentStatus = "picked_up"
	StatusInTransit      ShipmentStatus = "in_transit"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusDeliveryFailed ShipmentStatus = "delivery_failed"
	StatusCancelled      ShipmentStatus = "cancelled"
	StatusReturning      ShipmentStatus = "returning"
	StatusReturned       ShipmentStatus = "returned"
)

// ServiceType represents the shipping service type.
type ServiceType string

const (
	ServiceStandard ServiceType = "standard"
	ServiceExpress  ServiceType = "express"
	ServiceEconomy  ServiceType = "economy"
	ServiceSameDay  ServiceType = "same_day"
	ServiceFreight  ServiceType = "freight"
)

// Environment selects the carrier endpoint an account talks to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// HealthState is the coarse outcome of a carrier health probe.
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// Credentials holds resolved carrier secrets keyed by name ("token", "shop_id", "api_key").
type Credentials map[string]string

// Get returns the named credential or an empty string.
func (c Credentials) Get(name string) string {
	if c == nil {
		return ""
	}
	return c[name]
}

// Account is the resolved per-call carrier configuration.
// It is built from a provider configuration after its credential reference is resolved.
type Account struct {
	ProviderID    string
	TenantID      string
	CarrierCode   string
	Environment   Environment
	BaseURL       string // Overrides the environment default when set
	Credentials   Credentials
	WebhookSecret string
}

// Address represents a pickup or delivery address.
type Address struct {
	Line1        string `json:"line1" validate:"required"`
	Line2        string `json:"line2,omitempty"`
	Ward         string `json:"ward,omitempty"`
	District     string `json:"district,omitempty"`
	City         string `json:"city" validate:"required"`
	ProvinceCode string `json:"provinceCode,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	CountryCode  string `json:"countryCode" validate:"omitempty,len=2"` // ISO 3166-1 alpha-2
}

// Contact represents sender or recipient contact info.
type Contact struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// Item is one line of the parcel contents.
type Item struct {
	SKU         string          `json:"sku,omitempty"`
	Name        string          `json:"name" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	WeightGrams int             `json:"weightGrams,omitempty" validate:"gte=0"`
	Price       decimal.Decimal `json:"price"`
}

// Rate represents a shipping rate option from a carrier.
type Rate struct {
	Carrier           string
	ProviderID        string
	ServiceCode       string
	ServiceName       string
	ServiceType       ServiceType
	BaseFee           decimal.Decimal
	CODFee            decimal.Decimal
	InsuranceFee      decimal.Decimal
	Total             decimal.Decimal
	Currency          string
	TransitDays       int
	EstimatedDelivery *time.Time
}

// HealthStatus is the result of a carrier health probe.
type HealthStatus struct {
	State     HealthState
	Message   string
	Latency   time.Duration
	CheckedAt time.Time
}

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateOrderRequest is the request for creating a shipping order.
type CreateOrderRequest struct {
	Reference        string // Local shipment id, used by carriers for idempotency
	OrderID          string
	ServiceType      ServiceType
	PickupAddress    Address
	DeliveryAddress  Address
	Sender           Contact
	Recipient        Contact
	Items            []Item
	WeightGrams      int
	DeclaredValue    decimal.Decimal
	CODAmount        decimal.Decimal
	IsFreeship       bool
	RequireInsurance bool
	Notes            string
}

// CreateOrderResponse is the carrier's answer to a successful submission.
type CreateOrderResponse struct {
	TrackingNumber    string
	CarrierOrderID    string
	BaseFee           decimal.Decimal
	CODFee            decimal.Decimal
	InsuranceFee      decimal.Decimal
	LabelURL          string
	TrackingURL       string
	EstimatedDelivery *time.Time
	RawResponse       []byte
}

// RateRequest is the request for quoting a shipment.
type RateRequest struct {
	PickupAddress    Address
	DeliveryAddress  Address
	WeightGrams      int
	DeclaredValue    decimal.Decimal
	CODAmount        decimal.Decimal
	RequireInsurance bool
	ServiceType      ServiceType // Empty = any service
}

// WebhookPayload is an inbound carrier callback exactly as received.
type WebhookPayload struct {
	Body      []byte
	Signature string
}

// WebhookEvent is a decoded carrier status callback.
type WebhookEvent struct {
	TrackingNumber string
	StatusCode     string
	Description    string
	Location       string
	EventTime      time.Time
}
