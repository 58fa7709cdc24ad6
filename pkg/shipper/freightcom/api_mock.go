package freightcom

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates       func(ctx context.Context, req *RatesRequest) (*RatesResponse, error)
	OnCreateShipment func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)
	OnCancelShipment func(ctx context.Context, trackingNumber string) (*CancelResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) begin(ctx context.Context) error {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.SimulateErrors {
		return &APIError{Code: "MOCK_ERROR", Message: "Simulated API error", StatusCode: 500}
	}
	return nil
}

// GetRates returns mock shipping rates.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	return &RatesResponse{
		RequestID: "fc-req-" + uuid.New().String()[:8],
		Status:    "complete",
		Rates: []Rate{
			{
				ServiceID:      101,
				ServiceCode:    "GROUND",
				ServiceName:    "Freightcom Ground",
				BaseRate:       15.99,
				FuelSurcharge:  1.92,
				TotalTax:       2.33,
				TotalPrice:     20.24,
				Currency:       "CAD",
				TransitDays:    4,
				DeliveryByDate: time.Now().AddDate(0, 0, 4).Format("2006-01-02"),
			},
			{
				ServiceID:      102,
				ServiceCode:    "EXPRESS",
				ServiceName:    "Freightcom Express",
				BaseRate:       28.99,
				FuelSurcharge:  3.48,
				TotalTax:       4.22,
				TotalPrice:     36.69,
				Currency:       "CAD",
				TransitDays:    2,
				DeliveryByDate: time.Now().AddDate(0, 0, 2).Format("2006-01-02"),
			},
			{
				ServiceID:   301,
				ServiceCode: "LTL",
				ServiceName: "Freightcom LTL Freight",
				BaseRate:    180.00,
				TotalTax:    23.40,
				TotalPrice:  203.40,
				Currency:    "CAD",
				TransitDays: 6,
			},
		},
	}, nil
}

// CreateShipment creates a mock shipment.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	shipmentID := "fc-ship-" + uuid.New().String()[:8]
	trackingNumber := fmt.Sprintf("FC%d", 100000000000+time.Now().UnixNano()%900000000000)

	return &ShipmentResponse{
		ID:                shipmentID,
		UniqueID:          req.UniqueID,
		Status:            "booked",
		TrackingNumbers:   []string{trackingNumber},
		TrackingURL:       "https://track.freightcom.com/" + trackingNumber,
		BaseCharge:        17.91,
		TotalCharged:      20.24,
		Currency:          "CAD",
		EstimatedDelivery: time.Now().AddDate(0, 0, 4).Format("2006-01-02"),
		Labels: []Label{
			{Size: "4x6", Format: "pdf", URL: fmt.Sprintf("https://api.freightcom.com/shipment/%s/label.pdf", shipmentID)},
		},
	}, nil
}

// CancelShipment cancels a mock shipment.
func (m *MockAPIClient) CancelShipment(ctx context.Context, trackingNumber string) (*CancelResponse, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if m.OnCancelShipment != nil {
		return m.OnCancelShipment(ctx, trackingNumber)
	}

	return &CancelResponse{
		TrackingNumber:     trackingNumber,
		Status:             "cancelled",
		ConfirmationNumber: fmt.Sprintf("CANCEL-%d", time.Now().UnixNano()%1000000),
	}, nil
}

// Ping succeeds unless errors are simulated.
func (m *MockAPIClient) Ping(ctx context.Context) error {
	return m.begin(ctx)
}

var _ APIClient = (*MockAPIClient)(nil)
