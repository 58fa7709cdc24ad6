package ghtk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/ghtk"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *ghtk.MockAPIClient) *ghtk.Client {
	logger := otelzap.New(zap.NewNop())
	return ghtk.NewWithAPIClient(ghtk.Config{}, mockClient, logger, nil)
}

func testAccount() *shipper.Account {
	return &shipper.Account{
		ProviderID:    "prov-1",
		CarrierCode:   "GHTK",
		Environment:   shipper.EnvironmentSandbox,
		Credentials:   shipper.Credentials{"token": "secret-token"},
		WebhookSecret: "hook-secret",
	}
}

func testOrder() *shipper.CreateOrderRequest {
	return &shipper.CreateOrderRequest{
		Reference:       "shp-1",
		OrderID:         "ord-1",
		ServiceType:     shipper.ServiceStandard,
		PickupAddress:   shipper.Address{Line1: "1 Le Loi", District: "Quan 1", City: "TP. Ho Chi Minh", CountryCode: "VN"},
		DeliveryAddress: shipper.Address{Line1: "2 Hang Bai", District: "Hoan Kiem", City: "Ha Noi", CountryCode: "VN"},
		Sender:          shipper.Contact{Name: "Shop", Phone: "0900000001"},
		Recipient:       shipper.Contact{Name: "Buyer", Phone: "0900000002"},
		Items: []shipper.Item{
			{SKU: "SKU-1", Name: "T-shirt", Quantity: 2, WeightGrams: 250, Price: decimal.NewFromInt(150000)},
		},
		WeightGrams:      500,
		DeclaredValue:    decimal.NewFromInt(300000),
		CODAmount:        decimal.NewFromInt(300000),
		RequireInsurance: true,
	}
}

func TestClient_CreateOrder_Success(t *testing.T) {
	mockAPI := ghtk.NewMockAPIClient()
	var captured *ghtk.OrderRequest
	mockAPI.OnCreateOrder = func(ctx context.Context, req *ghtk.OrderRequest) (*ghtk.OrderResponse, error) {
		captured = req
		return &ghtk.OrderResponse{
			Success: true,
			Order: &ghtk.OrderInfo{
				Label:                "GHTK123456789",
				TrackingID:           987654,
				Fee:                  32000,
				InsuranceFee:         1500,
				EstimatedDeliverTime: "2026-10-20",
			},
		}, nil
	}
	client := newTestClient(mockAPI)

	resp, err := client.CreateOrder(context.Background(), testOrder(), testAccount())

	require.NoError(t, err)
	assert.Equal(t, "GHTK123456789", resp.TrackingNumber)
	assert.Equal(t, "987654", resp.CarrierOrderID)
	assert.True(t, resp.BaseFee.Equal(decimal.NewFromInt(32000)))
	assert.True(t, resp.InsuranceFee.Equal(decimal.NewFromInt(1500)))
	require.NotNil(t, resp.EstimatedDelivery)
	assert.Equal(t, 20, resp.EstimatedDelivery.Day())
	assert.NotEmpty(t, resp.RawResponse)

	require.NotNil(t, captured)
	assert.Equal(t, "shp-1", captured.Order.ID)
	assert.Equal(t, int64(300000), captured.Order.PickMoney)
	assert.Equal(t, int64(300000), captured.Order.Value)
	assert.Equal(t, "road", captured.Order.Transport)
	assert.InDelta(t, 0.25, captured.Products[0].Weight, 0.0001)
}

func TestClient_CreateOrder_RejectionKeepsCarrierMessage(t *testing.T) {
	mockAPI := ghtk.NewMockAPIClient()
	mockAPI.OnCreateOrder = func(ctx context.Context, req *ghtk.OrderRequest) (*ghtk.OrderResponse, error) {
		return nil, &ghtk.APIError{Code: "ORDER_REJECTED", Message: "Invalid address", StatusCode: 200}
	}
	client := newTestClient(mockAPI)

	_, err := client.CreateOrder(context.Background(), testOrder(), testAccount())

	require.Error(t, err)
	var shipperErr *shipper.ShipperError
	require.True(t, errors.As(err, &shipperErr))
	assert.Equal(t, "Invalid address", shipperErr.Message)
	assert.Equal(t, "Invalid address", shipper.CarrierMessage(err))
	assert.False(t, shipperErr.Retryable)
}

func TestClient_CancelOrder(t *testing.T) {
	mockAPI := ghtk.NewMockAPIClient()
	var cancelled string
	mockAPI.OnCancelOrder = func(ctx context.Context, label string) (*ghtk.CancelResponse, error) {
		cancelled = label
		return &ghtk.CancelResponse{Success: true}, nil
	}
	client := newTestClient(mockAPI)

	err := client.CancelOrder(context.Background(), "GHTK123456789", testAccount())

	require.NoError(t, err)
	assert.Equal(t, "GHTK123456789", cancelled)
}

func TestClient_GetRates_FiltersByService(t *testing.T) {
	client := newTestClient(ghtk.NewMockAPIClient())

	rates, err := client.GetRates(context.Background(), &shipper.RateRequest{
		WeightGrams: 1500,
		ServiceType: shipper.ServiceExpress,
	}, testAccount())

	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "FLY", rates[0].ServiceCode)
	assert.Equal(t, "GHTK", rates[0].Carrier)
	assert.True(t, rates[0].Total.GreaterThan(decimal.NewFromInt(22000)))
}

func TestClient_GetRates_APIError(t *testing.T) {
	mockAPI := ghtk.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.GetRates(context.Background(), &shipper.RateRequest{WeightGrams: 500}, testAccount())

	assert.Error(t, err)
}

func TestClient_ParseWebhook(t *testing.T) {
	client := newTestClient(ghtk.NewMockAPIClient())
	body := []byte(`{"label_id":"GHTK123456789","partner_id":"shp-1","status_id":5,"action_time":"2026-10-18T09:30:00+07:00","reason":""}`)

	event, err := client.ParseWebhook(context.Background(), shipper.WebhookPayload{Body: body, Signature: "hook-secret"}, testAccount())

	require.NoError(t, err)
	assert.Equal(t, "GHTK123456789", event.TrackingNumber)
	assert.Equal(t, "5", event.StatusCode)
	assert.Equal(t, "Delivered", event.Description)
	assert.False(t, event.EventTime.IsZero())

	status, ok := client.TranslateStatus(event.StatusCode)
	assert.True(t, ok)
	assert.Equal(t, shipper.StatusDelivered, status)
}

func TestClient_ParseWebhook_WrongSecret(t *testing.T) {
	client := newTestClient(ghtk.NewMockAPIClient())
	body := []byte(`{"label_id":"GHTK123456789","status_id":5}`)

	_, err := client.ParseWebhook(context.Background(), shipper.WebhookPayload{Body: body, Signature: "nope"}, testAccount())

	assert.ErrorIs(t, err, shipper.ErrWebhookUnauthenticated)
}

func TestClient_ParseWebhook_Malformed(t *testing.T) {
	client := newTestClient(ghtk.NewMockAPIClient())

	_, err := client.ParseWebhook(context.Background(), shipper.WebhookPayload{Body: []byte("not json"), Signature: "hook-secret"}, testAccount())

	assert.ErrorIs(t, err, shipper.ErrMalformedWebhook)
}

func TestClient_TranslateStatus_Unknown(t *testing.T) {
	client := newTestClient(ghtk.NewMockAPIClient())

	_, ok := client.TranslateStatus("999")
	assert.False(t, ok)
}

func TestClient_HealthCheck(t *testing.T) {
	mockAPI := ghtk.NewMockAPIClient()
	client := newTestClient(mockAPI)

	assert.Equal(t, shipper.HealthHealthy, client.HealthCheck(context.Background(), testAccount()).State)

	mockAPI.SimulateErrors = true
	status := client.HealthCheck(context.Background(), testAccount())
	assert.Equal(t, shipper.HealthUnhealthy, status.State)
	assert.NotEmpty(t, status.Message)
}

func TestHTTPAPIClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.Header.Get("Token"))
		assert.Equal(t, "/services/shipment/order/", r.URL.Path)

		var req ghtk.OrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if req.Order.Address == "" {
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "Invalid address"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"order":   map[string]interface{}{"label": "GHTK123456789", "fee": 30000, "tracking_id": 1},
		})
	}))
	defer srv.Close()

	api := ghtk.NewHTTPAPIClient(ghtk.HTTPAPIClientConfig{BaseURL: srv.URL, Token: "secret-token"})

	resp, err := api.CreateOrder(context.Background(), &ghtk.OrderRequest{Order: ghtk.Order{ID: "shp-1", Address: "2 Hang Bai"}})
	require.NoError(t, err)
	assert.Equal(t, "GHTK123456789", resp.Order.Label)

	_, err = api.CreateOrder(context.Background(), &ghtk.OrderRequest{Order: ghtk.Order{ID: "shp-2"}})
	var apiErr *ghtk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid address", apiErr.Message)
}

func TestHTTPAPIClient_CancelOrder_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/shipment/cancel/GHTK1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "already shipped"})
	}))
	defer srv.Close()

	api := ghtk.NewHTTPAPIClient(ghtk.HTTPAPIClientConfig{BaseURL: srv.URL, Token: "t"})

	_, err := api.CancelOrder(context.Background(), "GHTK1")
	var apiErr *ghtk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "already shipped", apiErr.Message)
}

func TestHTTPAPIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message":"upstream down"}`))
	}))
	defer srv.Close()

	api := ghtk.NewHTTPAPIClient(ghtk.HTTPAPIClientConfig{BaseURL: srv.URL})

	err := api.Ping(context.Background())
	var apiErr *ghtk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "HTTP_502", apiErr.Code)
	assert.Equal(t, "upstream down", apiErr.Message)
}
