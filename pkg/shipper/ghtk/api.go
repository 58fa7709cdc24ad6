package ghtk

import (
	"context"
)

// APIClient defines the interface for GHTK API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// CreateOrder submits a parcel order
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error)

	// CancelOrder cancels an order by its GHTK label
	CancelOrder(ctx context.Context, label string) (*CancelResponse, error)

	// GetFee quotes the delivery fee for a parcel
	GetFee(ctx context.Context, req *FeeRequest) (*FeeResponse, error)

	// Ping verifies the token is accepted
	Ping(ctx context.Context) error
}

// ============================================================================
// API Request/Response Types (match GHTK services/shipment API v1.5)
// ============================================================================

// OrderRequest represents a GHTK order creation request.
// POST /services/shipment/order/?ver=1.5
type OrderRequest struct {
	Products []Product `json:"products"`
	Order    Order     `json:"order"`
}

// Product is one line of the parcel. Weight is in kilograms.
type Product struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Quantity    int     `json:"quantity"`
	Price       int64   `json:"price"`
	ProductCode string  `json:"product_code,omitempty"`
}

// Order carries the pickup/delivery details of a GHTK order.
type Order struct {
	ID            string `json:"id"`
	PickName      string `json:"pick_name"`
	PickAddress   string `json:"pick_address"`
	PickProvince  string `json:"pick_province"`
	PickDistrict  string `json:"pick_district"`
	PickWard      string `json:"pick_ward,omitempty"`
	PickTel       string `json:"pick_tel"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	Province      string `json:"province"`
	District      string `json:"district"`
	Ward          string `json:"ward,omitempty"`
	Hamlet        string `json:"hamlet"`
	Tel           string `json:"tel"`
	Email         string `json:"email,omitempty"`
	Note          string `json:"note,omitempty"`
	IsFreeship    int    `json:"is_freeship"`
	PickMoney     int64  `json:"pick_money"` // COD amount collected from the recipient
	Value         int64  `json:"value"`      // Declared value, drives the insurance fee
	Transport     string `json:"transport,omitempty"`
	DeliverOption string `json:"deliver_option,omitempty"`
}

// OrderResponse represents the GHTK order creation response.
type OrderResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Order   *OrderInfo `json:"order,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// OrderInfo is the accepted order as returned by GHTK.
type OrderInfo struct {
	PartnerID            string `json:"partner_id"`
	Label                string `json:"label"`
	Area                 string `json:"area"`
	Fee                  int64  `json:"fee"`
	InsuranceFee         int64  `json:"insurance_fee"`
	EstimatedPickTime    string `json:"estimated_pick_time"`
	EstimatedDeliverTime string `json:"estimated_deliver_time"`
	TrackingID           int64  `json:"tracking_id"`
	StatusID             int    `json:"status_id"`
}

// ErrorInfo describes a rejected request.
type ErrorInfo struct {
	Code      string `json:"code"`
	PartnerID string `json:"partner_id,omitempty"`
	GHTKLabel string `json:"ghtk_label,omitempty"`
}

// CancelResponse represents the GHTK cancellation response.
// POST /services/shipment/cancel/{label}
type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	LogID   string `json:"log_id,omitempty"`
}

// FeeRequest holds the query parameters of a fee quote.
// GET /services/shipment/fee
type FeeRequest struct {
	PickProvince  string
	PickDistrict  string
	Province      string
	District      string
	WeightGrams   int
	Value         int64
	Transport     string
	DeliverOption string
}

// FeeResponse represents the GHTK fee quote response.
type FeeResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Fee     FeeInfo `json:"fee"`
}

// FeeInfo is the quoted fee breakdown.
type FeeInfo struct {
	Name         string `json:"name"`
	Fee          int64  `json:"fee"`
	InsuranceFee int64  `json:"insurance_fee"`
	Delivery     bool   `json:"delivery"`
}

// Callback is the body GHTK posts to the partner's status URL.
type Callback struct {
	PartnerID  string  `json:"partner_id"`
	LabelID    string  `json:"label_id"`
	StatusID   int     `json:"status_id"`
	ActionTime string  `json:"action_time"`
	ReasonCode string  `json:"reason_code"`
	Reason     string  `json:"reason"`
	Weight     float64 `json:"weight"`
	Fee        int64   `json:"fee"`
	PickMoney  int64   `json:"pick_money"`
}

// APIError represents an error from the GHTK API.
type APIError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
