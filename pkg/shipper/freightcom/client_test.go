package freightcom_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/freightcom"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(mockClient *freightcom.MockAPIClient) *freightcom.Client {
	logger := otelzap.New(zap.NewNop())
	return freightcom.NewWithAPIClient(
		freightcom.Config{PaymentMethodID: 7},
		mockClient,
		logger,
		nil,
	)
}

func testAccount() *shipper.Account {
	return &shipper.Account{
		ProviderID:    "prov-fc",
		CarrierCode:   "FREIGHTCOM",
		Environment:   shipper.EnvironmentSandbox,
		Credentials:   shipper.Credentials{"api_key": "k"},
		WebhookSecret: "fc-secret",
	}
}

func rateRequest() *shipper.RateRequest {
	return &shipper.RateRequest{
		PickupAddress:   shipper.Address{Line1: "123 Main St", City: "Toronto", ProvinceCode: "ON", PostalCode: "M5V 1A1", CountryCode: "CA"},
		DeliveryAddress: shipper.Address{Line1: "456 Oak Ave", City: "Vancouver", ProvinceCode: "BC", PostalCode: "V6B 2W2", CountryCode: "CA"},
		WeightGrams:     5000,
	}
}

func TestClient_GetRates_Success(t *testing.T) {
	client := newTestClient(freightcom.NewMockAPIClient())

	rates, err := client.GetRates(context.Background(), rateRequest(), testAccount())

	require.NoError(t, err)
	assert.Len(t, rates, 3) // Mock returns 3 rates
	assert.Equal(t, "FREIGHTCOM", rates[0].Carrier)
	assert.Equal(t, shipper.ServiceStandard, rates[0].ServiceType)
	assert.Equal(t, shipper.ServiceFreight, rates[2].ServiceType)
	assert.True(t, rates[0].Total.Equal(decimal.RequireFromString("20.24")))
}

func TestClient_GetRates_FiltersByServiceType(t *testing.T) {
	client := newTestClient(freightcom.NewMockAPIClient())
	req := rateRequest()
	req.ServiceType = shipper.ServiceExpress

	rates, err := client.GetRates(context.Background(), req, testAccount())

	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "EXPRESS", rates[0].ServiceCode)
	assert.Equal(t, 2, rates[0].TransitDays)
}

func TestClient_GetRates_APIError(t *testing.T) {
	mockAPI := freightcom.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.GetRates(context.Background(), rateRequest(), testAccount())

	require.Error(t, err)
	assert.True(t, shipper.IsRetryable(err))
}

func TestClient_CreateOrder_Success(t *testing.T) {
	mockAPI := freightcom.NewMockAPIClient()
	var captured *freightcom.ShipmentRequest
	mockAPI.OnCreateShipment = func(ctx context.Context, req *freightcom.ShipmentRequest) (*freightcom.ShipmentResponse, error) {
		captured = req
		return &freightcom.ShipmentResponse{
			ID:              "fc-ship-1",
			Status:          "booked",
			TrackingNumbers: []string{"FC100"},
			BaseCharge:      17.91,
			TotalCharged:    20.24,
			Currency:        "CAD",
		}, nil
	}
	client := newTestClient(mockAPI)

	resp, err := client.CreateOrder(context.Background(), &shipper.CreateOrderRequest{
		Reference:       "shp-1",
		OrderID:         "ord-1",
		ServiceType:     shipper.ServiceFreight,
		PickupAddress:   rateRequest().PickupAddress,
		DeliveryAddress: rateRequest().DeliveryAddress,
		Sender:          shipper.Contact{Name: "John Doe", Phone: "416-555-1234"},
		Recipient:       shipper.Contact{Name: "Jane Smith", Phone: "604-555-5678"},
		WeightGrams:     5000,
	}, testAccount())

	require.NoError(t, err)
	assert.Equal(t, "FC100", resp.TrackingNumber)
	assert.Equal(t, "fc-ship-1", resp.CarrierOrderID)
	assert.True(t, resp.BaseFee.Equal(decimal.RequireFromString("17.91")))

	require.NotNil(t, captured)
	assert.Equal(t, "shp-1", captured.UniqueID)
	assert.Equal(t, 7, captured.PaymentMethodID)
	assert.Equal(t, "LTL", captured.ServiceCode)
	assert.Equal(t, "Jane Smith", captured.Details.Destination.Name)
}

func TestClient_CreateOrder_NoTrackingNumber(t *testing.T) {
	mockAPI := freightcom.NewMockAPIClient()
	mockAPI.OnCreateShipment = func(ctx context.Context, req *freightcom.ShipmentRequest) (*freightcom.ShipmentResponse, error) {
		return &freightcom.ShipmentResponse{ID: "fc-ship-1", Status: "booked"}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.CreateOrder(context.Background(), &shipper.CreateOrderRequest{Reference: "shp-1"}, testAccount())

	assert.Error(t, err)
}

func TestClient_CancelOrder_Success(t *testing.T) {
	client := newTestClient(freightcom.NewMockAPIClient())

	err := client.CancelOrder(context.Background(), "FC100", testAccount())

	assert.NoError(t, err)
}

func TestClient_CancelOrder_CustomError(t *testing.T) {
	mockAPI := freightcom.NewMockAPIClient()
	mockAPI.OnCancelShipment = func(ctx context.Context, trackingNumber string) (*freightcom.CancelResponse, error) {
		return nil, &freightcom.APIError{Code: "CANCEL_DENIED", Message: "shipment already delivered, cannot cancel", StatusCode: 409}
	}
	client := newTestClient(mockAPI)

	err := client.CancelOrder(context.Background(), "FC100", testAccount())

	require.Error(t, err)
	assert.Equal(t, "shipment already delivered, cannot cancel", shipper.CarrierMessage(err))
	assert.False(t, shipper.IsRetryable(err))
}

func TestClient_ParseWebhook(t *testing.T) {
	client := newTestClient(freightcom.NewMockAPIClient())
	body := []byte(`{"shipment_id":"fc-ship-1","tracking_number":"FC100","status":"out_for_delivery","location":"Vancouver, BC","timestamp":"2026-10-18T09:30:00Z"}`)

	event, err := client.ParseWebhook(context.Background(), shipper.WebhookPayload{
		Body:      body,
		Signature: freightcom.Sign(body, "fc-secret"),
	}, testAccount())

	require.NoError(t, err)
	assert.Equal(t, "FC100", event.TrackingNumber)
	assert.Equal(t, "Vancouver, BC", event.Location)
	assert.Equal(t, time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC), event.EventTime)

	status, ok := client.TranslateStatus(event.StatusCode)
	assert.True(t, ok)
	assert.Equal(t, shipper.StatusOutForDelivery, status)
}

func TestClient_ParseWebhook_BadSignature(t *testing.T) {
	client := newTestClient(freightcom.NewMockAPIClient())
	body := []byte(`{"tracking_number":"FC100","status":"delivered"}`)

	_, err := client.ParseWebhook(context.Background(), shipper.WebhookPayload{
		Body:      body,
		Signature: freightcom.Sign(body, "other-secret"),
	}, testAccount())
	assert.ErrorIs(t, err, shipper.ErrWebhookUnauthenticated)

	_, err = client.ParseWebhook(context.Background(), shipper.WebhookPayload{Body: body, Signature: "zz"}, testAccount())
	assert.ErrorIs(t, err, shipper.ErrWebhookUnauthenticated)
}

func TestClient_ParseWebhook_Malformed(t *testing.T) {
	client := newTestClient(freightcom.NewMockAPIClient())
	body := []byte(`{"status":"delivered"}`)

	_, err := client.ParseWebhook(context.Background(), shipper.WebhookPayload{
		Body:      body,
		Signature: freightcom.Sign(body, "fc-secret"),
	}, testAccount())

	assert.ErrorIs(t, err, shipper.ErrMalformedWebhook)
}

func TestClient_HealthCheck(t *testing.T) {
	mockAPI := freightcom.NewMockAPIClient()
	client := newTestClient(mockAPI)

	assert.Equal(t, shipper.HealthHealthy, client.HealthCheck(context.Background(), testAccount()).State)

	mockAPI.SimulateErrors = true
	assert.Equal(t, shipper.HealthUnhealthy, client.HealthCheck(context.Background(), testAccount()).State)
}

func TestClient_Name(t *testing.T) {
	client := newTestClient(freightcom.NewMockAPIClient())

	assert.Equal(t, "FREIGHTCOM", client.Name())
}

func TestHTTPAPIClient_GetRates_Polls(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rate":
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"request_id":"req-1","status":"pending"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/rate/req-1":
			if atomic.AddInt32(&polls, 1) < 2 {
				w.Write([]byte(`{"request_id":"req-1","status":"pending"}`))
				return
			}
			w.Write([]byte(`{"request_id":"req-1","status":"complete","rates":[{"service_code":"GROUND","total_price":12.5,"currency":"CAD"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api := freightcom.NewHTTPAPIClient(freightcom.HTTPAPIClientConfig{
		BaseURL:      srv.URL,
		APIKey:       "k",
		PollInterval: time.Millisecond,
	})

	resp, err := api.GetRates(context.Background(), &freightcom.RatesRequest{})

	require.NoError(t, err)
	require.Len(t, resp.Rates, 1)
	assert.Equal(t, "GROUND", resp.Rates[0].ServiceCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
}

func TestHTTPAPIClient_ParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"code":"INVALID_POSTAL_CODE","message":"Postal code does not match province"}`))
	}))
	defer srv.Close()

	api := freightcom.NewHTTPAPIClient(freightcom.HTTPAPIClientConfig{BaseURL: srv.URL})

	_, err := api.CreateShipment(context.Background(), &freightcom.ShipmentRequest{})

	var apiErr *freightcom.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "INVALID_POSTAL_CODE", apiErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}
