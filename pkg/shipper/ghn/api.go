package ghn

import (
	"context"
)

// APIClient defines the interface for GHN API operations.
type APIClient interface {
	// CreateOrder submits a shipping order
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderData, error)

	// CancelOrders cancels orders by GHN order code
	CancelOrders(ctx context.Context, orderCodes []string) ([]CancelResult, error)

	// CalculateFee quotes a service for a parcel
	CalculateFee(ctx context.Context, req *FeeRequest) (*FeeData, error)

	// Ping verifies the token and shop are accepted
	Ping(ctx context.Context) error
}

// ============================================================================
// API Request/Response Types (match GHN shiip public-api v2)
// ============================================================================

// Envelope is the wrapper GHN puts around every response body.
type Envelope[T any] struct {
	Code             int    `json:"code"`
	Message          string `json:"message"`
	CodeMessageValue string `json:"code_message_value,omitempty"`
	Data             T      `json:"data"`
}

// Payment types.
const (
	PaymentBySender    = 1
	PaymentByRecipient = 2
)

// Service types.
const (
	ServiceTypeLight = 2 // E-commerce parcels
	ServiceTypeHeavy = 5 // Traditional heavy goods
)

// OrderRequest represents a GHN order creation request.
// POST /v2/shipping-order/create
type OrderRequest struct {
	PaymentTypeID    int         `json:"payment_type_id"`
	Note             string      `json:"note,omitempty"`
	RequiredNote     string      `json:"required_note"`
	ClientOrderCode  string      `json:"client_order_code"`
	FromName         string      `json:"from_name"`
	FromPhone        string      `json:"from_phone"`
	FromAddress      string      `json:"from_address"`
	FromWardName     string      `json:"from_ward_name"`
	FromDistrictName string      `json:"from_district_name"`
	FromProvinceName string      `json:"from_province_name"`
	ToName           string      `json:"to_name"`
	ToPhone          string      `json:"to_phone"`
	ToAddress        string      `json:"to_address"`
	ToWardName       string      `json:"to_ward_name"`
	ToDistrictName   string      `json:"to_district_name"`
	ToProvinceName   string      `json:"to_province_name"`
	CODAmount        int64       `json:"cod_amount"`
	Weight           int         `json:"weight"` // grams
	InsuranceValue   int64       `json:"insurance_value"`
	ServiceTypeID    int         `json:"service_type_id"`
	Items            []OrderItem `json:"items"`
}

// OrderItem is one line of the parcel.
type OrderItem struct {
	Name     string `json:"name"`
	Code     string `json:"code,omitempty"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Weight   int    `json:"weight"`
}

// OrderData is the accepted order.
type OrderData struct {
	OrderCode            string   `json:"order_code"`
	SortCode             string   `json:"sort_code"`
	TransType            string   `json:"trans_type"`
	TotalFee             int64    `json:"total_fee"`
	ExpectedDeliveryTime string   `json:"expected_delivery_time"`
	Fee                  OrderFee `json:"fee"`
}

// OrderFee is the fee breakdown of an accepted order.
type OrderFee struct {
	MainService int64 `json:"main_service"`
	Insurance   int64 `json:"insurance"`
	CODFee      int64 `json:"cod_fee"`
}

// CancelResult reports the outcome for one order code.
// POST /v2/switch-status/cancel
type CancelResult struct {
	OrderCode string `json:"order_code"`
	Result    bool   `json:"result"`
	Message   string `json:"message"`
}

// FeeRequest represents a GHN fee calculation request.
// POST /v2/shipping-order/fee
type FeeRequest struct {
	ServiceTypeID    int    `json:"service_type_id"`
	FromDistrictName string `json:"from_district_name"`
	FromProvinceName string `json:"from_province_name"`
	ToWardName       string `json:"to_ward_name,omitempty"`
	ToDistrictName   string `json:"to_district_name"`
	ToProvinceName   string `json:"to_province_name"`
	Weight           int    `json:"weight"`
	InsuranceValue   int64  `json:"insurance_value"`
	CODValue         int64  `json:"cod_value"`
}

// FeeData is the quoted fee.
type FeeData struct {
	Total        int64 `json:"total"`
	ServiceFee   int64 `json:"service_fee"`
	InsuranceFee int64 `json:"insurance_fee"`
	CODFee       int64 `json:"cod_fee"`
}

// Callback is the body GHN posts to the shop's webhook URL.
type Callback struct {
	OrderCode       string `json:"OrderCode"`
	ClientOrderCode string `json:"ClientOrderCode"`
	Status          string `json:"Status"`
	Type            string `json:"Type"`
	Reason          string `json:"Reason"`
	Warehouse       string `json:"Warehouse"`
	Time            string `json:"Time"`
	ShopID          int    `json:"ShopID"`
}

// APIError represents an error from the GHN API.
type APIError struct {
	Code       int
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return "ghn: " + e.Message
}
