package graphql_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/credentials"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/internal/graphql"
	"github.com/tournevent/fulfillment/internal/storage"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T) (*graphql.Resolver, *mock.Client, uuid.UUID) {
	t.Helper()
	db, err := storage.Open(storage.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() { _ = storage.Close(db) })

	logger := otelzap.New(zap.NewNop())
	carrier := mock.New("ghtk")
	adapters := shipper.NewRegistry()
	adapters.Register(carrier)

	providers := fulfillment.NewProviderRegistry(storage.NewProviderRepository(db), 0, logger)
	tenant := uuid.New()
	require.NoError(t, providers.Save(context.Background(), &fulfillment.ProviderConfig{
		TenantID:    tenant,
		CarrierCode: "GHTK",
		DisplayName: "Giao Hang Tiet Kiem",
		Active:      true,
		SupportsCOD: true,
	}))

	router := fulfillment.NewRouter(providers, adapters, credentials.NewStatic())
	svc := fulfillment.NewService(router, storage.NewShipmentRepository(db), storage.NewWebhookRepository(db),
		fulfillment.Options{}, logger, telemetry.NewMetrics(prometheus.NewRegistry()), nil)

	return graphql.NewResolver(svc, logger), carrier, tenant
}

func createInput(tenant uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"tenantId":        tenant.String(),
		"orderId":         "ORD-77",
		"carrierCode":     "ghtk",
		"serviceType":     "standard",
		"pickupAddress":   map[string]interface{}{"line1": "1 Trang Tien", "city": "Ha Noi"},
		"deliveryAddress": map[string]interface{}{"line1": "9 Le Loi", "city": "Da Nang"},
		"sender":          map[string]interface{}{"name": "Shop", "phone": "0900000001"},
		"recipient":       map[string]interface{}{"name": "Minh", "phone": "0900000002"},
		"items":           []interface{}{map[string]interface{}{"name": "Mug", "quantity": float64(1)}},
		"weightGrams":     float64(800),
		"codAmount":       "150000",
	}
}

func TestMutation_CreateShipment_Success(t *testing.T) {
	resolver, _, tenant := newTestResolver(t)

	out, err := resolver.Execute(context.Background(), ast.Mutation, "createShipment",
		map[string]interface{}{"input": createInput(tenant)})

	require.NoError(t, err)
	sh, ok := out.(*graphql.Shipment)
	require.True(t, ok)
	assert.Equal(t, string(shipper.StatusAwaitingPickup), sh.Status)
	require.NotNil(t, sh.TrackingNumber)
	assert.NotEmpty(t, *sh.TrackingNumber)
	assert.Equal(t, "150000", sh.CODAmount)
	assert.Equal(t, "Minh", sh.Recipient.Name)
	assert.Nil(t, sh.CancelReason)
}

func TestMutation_CreateShipment_ProviderFailureReturnsCancelledShipment(t *testing.T) {
	resolver, carrier, tenant := newTestResolver(t)
	carrier.OnCreateOrder = func(ctx context.Context, req *shipper.CreateOrderRequest, acct *shipper.Account) (*shipper.CreateOrderResponse, error) {
		return nil, shipper.NewShipperError("GHTK", "400", "Không tìm thấy quận/huyện")
	}

	out, err := resolver.Execute(context.Background(), ast.Mutation, "createShipment",
		map[string]interface{}{"input": createInput(tenant)})

	assert.ErrorIs(t, err, fulfillment.ErrProviderFailure)
	assert.Equal(t, "Không tìm thấy quận/huyện", err.Error())
	sh := out.(*graphql.Shipment)
	assert.Equal(t, string(shipper.StatusCancelled), sh.Status)
	assert.Nil(t, sh.TrackingNumber)
}

func TestMutation_CreateShipment_RejectsUnknownInputFields(t *testing.T) {
	resolver, _, tenant := newTestResolver(t)
	input := createInput(tenant)
	input["priority"] = "high"

	_, err := resolver.Execute(context.Background(), ast.Mutation, "createShipment",
		map[string]interface{}{"input": input})
	assert.ErrorIs(t, err, fulfillment.ErrValidation)
}

func TestMutation_CreateShipment_MissingInput(t *testing.T) {
	resolver, _, _ := newTestResolver(t)
	_, err := resolver.Execute(context.Background(), ast.Mutation, "createShipment", map[string]interface{}{})
	assert.ErrorIs(t, err, fulfillment.ErrValidation)
}

func TestMutation_CancelShipment(t *testing.T) {
	resolver, carrier, tenant := newTestResolver(t)
	carrier.OnCancelOrder = func(ctx context.Context, trackingNumber string, acct *shipper.Account) error {
		return shipper.NewShipperError("GHTK", "400", "Đơn hàng đã được lấy")
	}
	created, err := resolver.Mutation().CreateShipment(context.Background(), mustCommand(t, tenant))
	require.NoError(t, err)

	out, err := resolver.Execute(context.Background(), ast.Mutation, "cancelShipment", map[string]interface{}{
		"input": map[string]interface{}{"trackingNumber": *created.TrackingNumber, "reason": "duplicate order"},
	})

	require.NoError(t, err)
	res := out.(*graphql.CancelResult)
	assert.False(t, res.CarrierConfirmed)
	assert.Equal(t, "Đơn hàng đã được lấy", res.CarrierError)
	assert.Equal(t, string(shipper.StatusCancelled), res.Shipment.Status)
}

func TestQuery_ActiveProviders(t *testing.T) {
	resolver, _, tenant := newTestResolver(t)

	out, err := resolver.Execute(context.Background(), ast.Query, "activeProviders",
		map[string]interface{}{"tenantId": tenant.String()})
	require.NoError(t, err)
	views := out.([]fulfillment.ProviderView)
	require.Len(t, views, 1)
	assert.Equal(t, "GHTK", views[0].CarrierCode)

	out, err = resolver.Execute(context.Background(), ast.Query, "activeProviders",
		map[string]interface{}{"tenantId": uuid.NewString()})
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = resolver.Execute(context.Background(), ast.Query, "activeProviders",
		map[string]interface{}{"tenantId": "not-a-uuid"})
	assert.ErrorIs(t, err, fulfillment.ErrValidation)
}

func TestQuery_QuoteRates(t *testing.T) {
	resolver, _, tenant := newTestResolver(t)

	out, err := resolver.Execute(context.Background(), ast.Query, "quoteRates", map[string]interface{}{
		"input": map[string]interface{}{
			"tenantId":        tenant.String(),
			"pickupAddress":   map[string]interface{}{"line1": "1 Trang Tien", "city": "Ha Noi"},
			"deliveryAddress": map[string]interface{}{"line1": "9 Le Loi", "city": "Da Nang"},
			"weightGrams":     float64(1000),
			"policy":          "fastest",
		},
	})

	require.NoError(t, err)
	q := out.(*graphql.Quote)
	assert.Equal(t, "fastest", q.Policy)
	require.NotNil(t, q.Recommended)
	assert.Equal(t, "EXPRESS", q.Recommended.ServiceCode)
	assert.Equal(t, "55000", q.Recommended.Total)
	assert.NotNil(t, q.Skipped)
}

func TestQuery_ShipmentNotFound(t *testing.T) {
	resolver, _, _ := newTestResolver(t)
	_, err := resolver.Execute(context.Background(), ast.Query, "shipment",
		map[string]interface{}{"id": uuid.NewString()})
	assert.ErrorIs(t, err, fulfillment.ErrNotFound)
}

func TestQuery_WebhookLogsAndParked(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	out, err := resolver.Execute(context.Background(), ast.Query, "webhookLogs",
		map[string]interface{}{"trackingNumber": "S1.A1.1"})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = resolver.Execute(context.Background(), ast.Query, "parkedWebhooks",
		map[string]interface{}{"limit": int64(10)})
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = resolver.Execute(context.Background(), ast.Query, "parkedWebhooks",
		map[string]interface{}{"limit": "ten"})
	assert.ErrorIs(t, err, fulfillment.ErrValidation)
}

func TestMutation_RequeueUnknownWebhook(t *testing.T) {
	resolver, _, _ := newTestResolver(t)
	_, err := resolver.Execute(context.Background(), ast.Mutation, "requeueWebhook",
		map[string]interface{}{"id": uuid.NewString()})
	assert.ErrorIs(t, err, fulfillment.ErrNotFound)
}

func TestExecute_UnknownField(t *testing.T) {
	resolver, _, _ := newTestResolver(t)

	_, err := resolver.Execute(context.Background(), ast.Query, "createShipment", nil)
	assert.ErrorIs(t, err, fulfillment.ErrValidation)

	_, err = resolver.Execute(context.Background(), ast.Mutation, "labels", nil)
	assert.ErrorIs(t, err, fulfillment.ErrValidation)
}

func TestFields(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"createShipment", "cancelShipment", "requeueWebhook"},
		graphql.Fields(ast.Mutation))
	assert.ElementsMatch(t,
		[]string{"activeProviders", "quoteRates", "shipment", "webhookLogs", "parkedWebhooks"},
		graphql.Fields(ast.Query))
}

func mustCommand(t *testing.T, tenant uuid.UUID) fulfillment.CreateShipmentCommand {
	t.Helper()
	return fulfillment.CreateShipmentCommand{
		TenantID:        tenant,
		OrderID:         "ORD-78",
		CarrierCode:     "GHTK",
		PickupAddress:   shipper.Address{Line1: "1 Trang Tien", City: "Ha Noi"},
		DeliveryAddress: shipper.Address{Line1: "9 Le Loi", City: "Da Nang"},
		Sender:          shipper.Contact{Name: "Shop", Phone: "0900000001"},
		Recipient:       shipper.Contact{Name: "Minh", Phone: "0900000002"},
		Items:           []shipper.Item{{Name: "Mug", Quantity: 1}},
		WeightGrams:     800,
		CODAmount:       decimal.NewFromInt(150000),
	}
}
