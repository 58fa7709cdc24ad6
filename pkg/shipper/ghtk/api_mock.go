package ghtk

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

	OnCreateOrder func(ctx context.Context, req *OrderRequest) (*OrderResponse, error)
	OnCancelOrder func(ctx context.Context, label string) (*CancelResponse, error)
	OnGetFee      func(ctx context.Context, req *FeeRequest) (*FeeResponse, error)
	OnPing        func(ctx context.Context) error
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) wait(ctx context.Context) error {
	if m.SimulateLatency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.SimulateLatency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateOrder returns a mock accepted order.
func (m *MockAPIClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK_ERROR", Message: "Simulated API error"}
	}

	if m.OnCreateOrder != nil {
		return m.OnCreateOrder(ctx, req)
	}

	now := time.Now()
	return &OrderResponse{
		Success: true,
		Order: &OrderInfo{
			PartnerID:            req.Order.ID,
			Label:                fmt.Sprintf("S%d.GHTK%d", now.Unix()%100000, now.UnixNano()%1000000000),
			Area:                 "1",
			Fee:                  30000,
			InsuranceFee:         0,
			EstimatedPickTime:    now.Add(4 * time.Hour).Format("2006-01-02 15:04:05"),
			EstimatedDeliverTime: now.AddDate(0, 0, 2).Format("2006-01-02"),
			TrackingID:           now.UnixNano() % 1000000000,
			StatusID:             2,
		},
	}, nil
}

// CancelOrder returns a mock cancellation.
func (m *MockAPIClient) CancelOrder(ctx context.Context, label string) (*CancelResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK_ERROR", Message: "Simulated API error"}
	}

	if m.OnCancelOrder != nil {
		return m.OnCancelOrder(ctx, label)
	}

	return &CancelResponse{Success: true, Message: "", LogID: uuid.New().String()[:8]}, nil
}

// GetFee returns a mock fee quote.
func (m *MockAPIClient) GetFee(ctx context.Context, req *FeeRequest) (*FeeResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK_ERROR", Message: "Simulated API error"}
	}

	if m.OnGetFee != nil {
		return m.OnGetFee(ctx, req)
	}

	fee := int64(22000)
	if req.WeightGrams > 1000 {
		fee += int64((req.WeightGrams-1000)/500+1) * 2500
	}
	return &FeeResponse{
		Success: true,
		Fee: FeeInfo{
			Name:     "area1",
			Fee:      fee,
			Delivery: true,
		},
	}, nil
}

// Ping succeeds unless errors are simulated.
func (m *MockAPIClient) Ping(ctx context.Context) error {
	if m.SimulateErrors {
		return &APIError{Code: "MOCK_ERROR", Message: "Simulated API error"}
	}
	if m.OnPing != nil {
		return m.OnPing(ctx)
	}
	return nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
