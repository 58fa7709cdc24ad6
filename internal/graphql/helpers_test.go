package graphql

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

func TestDecodeInput(t *testing.T) {
	var cmd fulfillment.CancelShipmentCommand
	err := decodeInput("input", map[string]interface{}{"trackingNumber": "S1.A1.1", "reason": "dup"}, &cmd)
	require.NoError(t, err)
	assert.Equal(t, "S1.A1.1", cmd.TrackingNumber)
	assert.Equal(t, "dup", cmd.Reason)

	err = decodeInput("input", map[string]interface{}{"shipmentId": "nope"}, &cmd)
	assert.ErrorIs(t, err, fulfillment.ErrValidation)

	err = decodeInput("input", nil, &cmd)
	assert.ErrorIs(t, err, fulfillment.ErrValidation)
	assert.Equal(t, "input: is required", err.Error())
}

func TestDecodeInput_MoneyFromStringsAndNumbers(t *testing.T) {
	var cmd fulfillment.QuoteRatesCommand
	err := decodeInput("input", map[string]interface{}{
		"declaredValue": "1250000.50",
		"codAmount":     float64(300000),
	}, &cmd)
	require.NoError(t, err)
	assert.True(t, cmd.DeclaredValue.Equal(decimal.RequireFromString("1250000.50")))
	assert.True(t, cmd.CODAmount.Equal(decimal.NewFromInt(300000)))
}

func TestShipmentToGraphQL(t *testing.T) {
	tenant := uuid.New()
	provider := &fulfillment.ProviderConfig{ID: uuid.New(), TenantID: tenant, CarrierCode: "GHN"}
	cmd := &fulfillment.CreateShipmentCommand{
		TenantID:  tenant,
		OrderID:   "ORD-5",
		Recipient: shipper.Contact{Name: "Hoa", Phone: "0911"},
		Items:     []shipper.Item{{Name: "Book", Quantity: 3}},
		CODAmount: decimal.NewFromInt(90000),
	}
	sh := fulfillment.NewDraft(tenant, provider, cmd, time.Now())
	require.NoError(t, sh.Submit(&shipper.CreateOrderResponse{
		TrackingNumber: "GHN123",
		BaseFee:        decimal.NewFromInt(22000),
		CODFee:         decimal.NewFromInt(1000),
	}, time.Now()))

	out := shipmentToGraphQL(sh)
	assert.Equal(t, string(shipper.StatusAwaitingPickup), out.Status)
	require.NotNil(t, out.TrackingNumber)
	assert.Equal(t, "GHN123", *out.TrackingNumber)
	assert.Nil(t, out.LabelURL)
	assert.Equal(t, "23000", out.Fees.Total)
	assert.Equal(t, "90000", out.CODAmount)
	assert.Equal(t, "Hoa", out.Recipient.Name)
	assert.Len(t, out.Items, 1)

	assert.Nil(t, shipmentToGraphQL(nil))
}

func TestQuoteToGraphQL(t *testing.T) {
	best := shipper.Rate{Carrier: "GHTK", ServiceCode: "road", Total: decimal.NewFromInt(18000), TransitDays: 3}
	q := quoteToGraphQL(&fulfillment.Quote{
		Policy:      fulfillment.PolicyCheapest,
		Rates:       []shipper.Rate{best},
		Recommended: &best,
	})
	assert.Equal(t, "cheapest", q.Policy)
	require.Len(t, q.Rates, 1)
	assert.Equal(t, "18000", q.Recommended.Total)
	assert.NotNil(t, q.Skipped)
}

func TestIntArg(t *testing.T) {
	n, err := intArg(map[string]interface{}{}, "limit")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = intArg(map[string]interface{}{"limit": float64(25)}, "limit")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = intArg(map[string]interface{}{"limit": true}, "limit")
	assert.Error(t, err)
}
