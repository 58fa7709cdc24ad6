package ghn

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateOrder  func(ctx context.Context, req *OrderRequest) (*OrderData, error)
	OnCancelOrders func(ctx context.Context, orderCodes []string) ([]CancelResult, error)
	OnCalculateFee func(ctx context.Context, req *FeeRequest) (*FeeData, error)
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
		return &APIError{Code: 500, Message: "Simulated API error", StatusCode: 500}
	}
	return nil
}

// CreateOrder returns a mock accepted order.
func (m *MockAPIClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderData, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if m.OnCreateOrder != nil {
		return m.OnCreateOrder(ctx, req)
	}

	now := time.Now()
	fee := OrderFee{MainService: 25000}
	if req.InsuranceValue > 0 {
		fee.Insurance = req.InsuranceValue / 200
	}
	return &OrderData{
		OrderCode:            fmt.Sprintf("GHN%s", strings.ToUpper(strconv.FormatInt(now.UnixNano()%1e9, 36))),
		SortCode:             "000-A-01-A1",
		TransType:            "truck",
		TotalFee:             fee.MainService + fee.Insurance,
		ExpectedDeliveryTime: now.AddDate(0, 0, 3).UTC().Format(time.RFC3339),
		Fee:                  fee,
	}, nil
}

// CancelOrders reports every order as cancelled.
func (m *MockAPIClient) CancelOrders(ctx context.Context, orderCodes []string) ([]CancelResult, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if m.OnCancelOrders != nil {
		return m.OnCancelOrders(ctx, orderCodes)
	}

	results := make([]CancelResult, len(orderCodes))
	for i, code := range orderCodes {
		results[i] = CancelResult{OrderCode: code, Result: true, Message: "OK"}
	}
	return results, nil
}

// CalculateFee returns a weight-based mock fee.
func (m *MockAPIClient) CalculateFee(ctx context.Context, req *FeeRequest) (*FeeData, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if m.OnCalculateFee != nil {
		return m.OnCalculateFee(ctx, req)
	}

	service := int64(25000)
	if req.ServiceTypeID == ServiceTypeHeavy {
		service = 60000
	}
	if req.Weight > 2000 {
		service += int64((req.Weight-2000)/500+1) * 5000
	}
	insurance := req.InsuranceValue / 200
	return &FeeData{
		Total:        service + insurance,
		ServiceFee:   service,
		InsuranceFee: insurance,
	}, nil
}

// Ping succeeds unless errors are simulated.
func (m *MockAPIClient) Ping(ctx context.Context) error {
	return m.begin(ctx)
}

var _ APIClient = (*MockAPIClient)(nil)
