package freightcom

import (
	"context"
)

// APIClient defines the interface for Freightcom API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// GetRates fetches shipping rates from Freightcom API
	GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error)

	// CreateShipment books a shipment
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// CancelShipment cancels an existing shipment by tracking number
	CancelShipment(ctx context.Context, trackingNumber string) (*CancelResponse, error)

	// Ping verifies the API key is accepted
	Ping(ctx context.Context) error
}

// ============================================================================
// API Request/Response Types (match Freightcom REST API v2 structure)
// ============================================================================

// RatesRequest represents a Freightcom rate quote request.
// POST /rate endpoint
type RatesRequest struct {
	Services []int           `json:"services,omitempty"` // Service IDs to query (all if omitted)
	Details  ShippingDetails `json:"details"`
}

// ShippingDetails contains shipping information for rate and shipment requests.
type ShippingDetails struct {
	Origin        Location      `json:"origin"`
	Destination   Location      `json:"destination"`
	Packaging     PackagingInfo `json:"packaging"`
	DeclaredValue float64       `json:"declared_value,omitempty"`
	Insurance     bool          `json:"insurance,omitempty"`
	COD           *COD          `json:"cod,omitempty"`
}

// Location represents origin or destination.
type Location struct {
	Name       string `json:"name,omitempty"`
	Address1   string `json:"address_1"`
	Address2   string `json:"address_2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"` // ISO 3166-1 alpha-2 code
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// PackagingInfo contains package details.
type PackagingInfo struct {
	Type     string    `json:"type"` // "package", "envelope", "pallet"
	Packages []Package `json:"packages"`
}

// Package represents a single package. Weight is in kilograms.
type Package struct {
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity,omitempty"`
}

// COD describes a collect-on-delivery amount.
type COD struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// RateRequestResponse is the initial response from POST /rate (async).
type RateRequestResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // "pending", "complete", "error"
}

// RatesResponse represents the Freightcom rate quote response.
// GET /rate/{request_id} endpoint
type RatesResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // "pending", "complete", "error"
	Rates     []Rate `json:"rates,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Rate represents a single shipping rate option.
type Rate struct {
	ServiceID      int     `json:"service_id"`
	ServiceCode    string  `json:"service_code"`
	ServiceName    string  `json:"service_name"`
	BaseRate       float64 `json:"base_rate"`
	FuelSurcharge  float64 `json:"fuel_surcharge"`
	CODFee         float64 `json:"cod_fee"`
	InsuranceFee   float64 `json:"insurance_fee"`
	TotalTax       float64 `json:"total_tax"`
	TotalPrice     float64 `json:"total_price"`
	Currency       string  `json:"currency"`
	TransitDays    int     `json:"transit_days"`
	DeliveryByDate string  `json:"estimated_delivery,omitempty"`
}

// ShipmentRequest represents a Freightcom shipment creation request.
// POST /shipment endpoint
type ShipmentRequest struct {
	UniqueID        string          `json:"unique_id"`         // Max 128 chars, prevents duplicates
	PaymentMethodID int             `json:"payment_method_id"` // From /finance/payment-methods
	ServiceCode     string          `json:"service_code"`
	Details         ShippingDetails `json:"details"`
	Reference       string          `json:"reference,omitempty"`
	Instructions    string          `json:"instructions,omitempty"`
}

// ShipmentResponse represents the Freightcom shipment creation response.
type ShipmentResponse struct {
	ID                string   `json:"id"`
	UniqueID          string   `json:"unique_id"`
	PreviouslyCreated bool     `json:"previously_created"`
	Status            string   `json:"status"`
	TrackingNumbers   []string `json:"tracking_numbers"`
	TrackingURL       string   `json:"tracking_url,omitempty"`
	BaseCharge        float64  `json:"base_charge"`
	CODFee            float64  `json:"cod_fee"`
	InsuranceFee      float64  `json:"insurance_fee"`
	TotalCharged      float64  `json:"total_charged"`
	Currency          string   `json:"currency"`
	EstimatedDelivery string   `json:"estimated_delivery,omitempty"`
	Labels            []Label  `json:"labels,omitempty"`
}

// Label represents a shipping label.
type Label struct {
	Size   string `json:"size"`   // "4x6", "letter"
	Format string `json:"format"` // "pdf", "zpl", "png"
	URL    string `json:"url"`
}

// CancelResponse represents the Freightcom cancellation response.
// DELETE /shipment/{tracking_number}
type CancelResponse struct {
	TrackingNumber     string `json:"tracking_number"`
	Status             string `json:"status"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
}

// TrackingEvent is the body Freightcom posts to the partner's webhook URL,
// signed with HMAC-SHA256 over the raw body.
type TrackingEvent struct {
	ShipmentID     string `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	Timestamp      string `json:"timestamp"`
}

// APIError represents an error from the Freightcom API.
type APIError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"` // Field-level errors
	StatusCode int               `json:"-"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
