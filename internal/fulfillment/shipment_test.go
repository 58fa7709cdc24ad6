package fulfillment_test

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

func newTestDraft(t *testing.T) *fulfillment.Shipment {
	t.Helper()
	tenant := uuid.New()
	provider := &fulfillment.ProviderConfig{ID: uuid.New(), TenantID: tenant, CarrierCode: "MOCK", Active: true}
	return fulfillment.NewDraft(tenant, provider, validCreateCommand(tenant), time.Now().UTC())
}

func submitted(t *testing.T, tracking string) *fulfillment.Shipment {
	t.Helper()
	sh := newTestDraft(t)
	require.NoError(t, sh.Submit(&shipper.CreateOrderResponse{TrackingNumber: tracking, BaseFee: decimal.NewFromInt(30000)}, time.Now()))
	return sh
}

// ============================================================================
// Status table
// ============================================================================

func TestStatus_TerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, s := range []fulfillment.Status{shipper.StatusDelivered, shipper.StatusCancelled, shipper.StatusReturned} {
		assert.True(t, fulfillment.IsTerminal(s), s)
		assert.Empty(t, fulfillment.Successors(s), s)
	}
}

func TestStatus_DraftOnlyLeadsToAwaitingPickupOrCancelled(t *testing.T) {
	assert.ElementsMatch(t,
		[]fulfillment.Status{shipper.StatusAwaitingPickup, shipper.StatusCancelled},
		fulfillment.Successors(shipper.StatusDraft))
	assert.False(t, fulfillment.CanTransition(shipper.StatusDraft, shipper.StatusDelivered))
}

func TestStatus_EveryNonTerminalStateCanBeCancelled(t *testing.T) {
	for _, s := range []fulfillment.Status{
		shipper.StatusDraft, shipper.StatusAwaitingPickup, shipper.StatusPickedUp, shipper.StatusInTransit,
		shipper.StatusOutForDelivery, shipper.StatusDeliveryFailed, shipper.StatusReturning,
	} {
		assert.True(t, fulfillment.CanTransition(s, shipper.StatusCancelled), s)
	}
}

func TestStatus_ValidStatus(t *testing.T) {
	assert.True(t, fulfillment.ValidStatus(shipper.StatusInTransit))
	assert.True(t, fulfillment.ValidStatus(shipper.StatusCancelled))
	assert.False(t, fulfillment.ValidStatus("LOST"))
}

// ============================================================================
// Shipment transitions
// ============================================================================

func TestShipment_SubmitAssignsTrackingNumber(t *testing.T) {
	sh := newTestDraft(t)
	eta := time.Now().Add(48 * time.Hour)
	err := sh.Submit(&shipper.CreateOrderResponse{
		TrackingNumber:    "S1.A1.123",
		CarrierOrderID:    "ghtk-1",
		BaseFee:           decimal.NewFromInt(30000),
		CODFee:            decimal.NewFromInt(3000),
		EstimatedDelivery: &eta,
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, shipper.StatusAwaitingPickup, sh.Status)
	assert.Equal(t, "S1.A1.123", sh.TrackingNumber)
	assert.True(t, sh.Fees.Total().Equal(decimal.NewFromInt(33000)))
	assert.True(t, sh.Submitted())

	err = sh.Submit(&shipper.CreateOrderResponse{TrackingNumber: "OTHER"}, time.Now())
	assert.ErrorIs(t, err, fulfillment.ErrConflict)
	assert.Equal(t, "S1.A1.123", sh.TrackingNumber)
}

func TestShipment_SubmitWithoutTrackingNumber(t *testing.T) {
	sh := newTestDraft(t)
	err := sh.Submit(&shipper.CreateOrderResponse{}, time.Now())
	assert.ErrorIs(t, err, fulfillment.ErrValidation)
	assert.Equal(t, shipper.StatusDraft, sh.Status)
	assert.Empty(t, sh.TrackingNumber)
}

func TestShipment_ApplyCarrierStatusOutcomes(t *testing.T) {
	sh := submitted(t, "TRK-1")

	outcome, err := sh.ApplyCarrierStatus(shipper.StatusInTransit, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, fulfillment.OutcomeApplied, outcome)

	outcome, err = sh.ApplyCarrierStatus(shipper.StatusInTransit, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, fulfillment.OutcomeDuplicate, outcome)

	outcome, err = sh.ApplyCarrierStatus(shipper.StatusPickedUp, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, fulfillment.OutcomeStale, outcome)
	assert.Equal(t, shipper.StatusInTransit, sh.Status)

	delivered := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	outcome, err = sh.ApplyCarrierStatus(shipper.StatusDelivered, delivered, time.Now())
	require.NoError(t, err)
	assert.Equal(t, fulfillment.OutcomeApplied, outcome)
	require.NotNil(t, sh.DeliveredAt)
	assert.True(t, sh.DeliveredAt.Equal(delivered))

	_, err = sh.ApplyCarrierStatus(shipper.StatusCancelled, time.Time{}, time.Now())
	assert.ErrorIs(t, err, fulfillment.ErrConflict)
	assert.Equal(t, shipper.StatusDelivered, sh.Status)
}

func TestShipment_ApplyCarrierStatusOnDraftIsConflict(t *testing.T) {
	sh := newTestDraft(t)
	_, err := sh.ApplyCarrierStatus(shipper.StatusInTransit, time.Time{}, time.Now())
	assert.ErrorIs(t, err, fulfillment.ErrConflict)
}

func TestShipment_CarrierCancellation(t *testing.T) {
	sh := submitted(t, "TRK-2")
	outcome, err := sh.ApplyCarrierStatus(shipper.StatusCancelled, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, fulfillment.OutcomeApplied, outcome)
	assert.Equal(t, "cancelled by carrier", sh.CancelReason)
	assert.NotNil(t, sh.CancelledAt)
}

func TestShipment_CancelTerminalIsConflict(t *testing.T) {
	sh := newTestDraft(t)
	require.NoError(t, sh.Cancel("changed my mind", time.Now()))
	assert.Equal(t, shipper.StatusCancelled, sh.Status)
	assert.ErrorIs(t, sh.Cancel("again", time.Now()), fulfillment.ErrConflict)
}

func TestShipment_SnapshotIsCopied(t *testing.T) {
	sh := newTestDraft(t)
	snap := sh.Snapshot()
	snap.Items[0].Name = "tampered"
	assert.NotEqual(t, "tampered", sh.Snapshot().Items[0].Name)
}

// ============================================================================
// Errors
// ============================================================================

func TestError_KindMatching(t *testing.T) {
	err := fulfillment.NewNotFound("shipment %s not found", "x")
	assert.ErrorIs(t, err, fulfillment.ErrNotFound)
	assert.NotErrorIs(t, err, fulfillment.ErrConflict)
	assert.Equal(t, fulfillment.KindNotFound, fulfillment.KindOf(err))
	assert.Equal(t, "shipment x not found", err.Error())
	assert.Equal(t, fulfillment.Kind(""), fulfillment.KindOf(assert.AnError))
}
