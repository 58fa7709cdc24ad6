package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Snapshot is the immutable copy of the parties and contents captured at creation.
// It is never re-derived from the order after the shipment exists.
type Snapshot struct {
	PickupAddress   shipper.Address `json:"pickupAddress"`
	DeliveryAddress shipper.Address `json:"deliveryAddress"`
	Sender          shipper.Contact `json:"sender"`
	Recipient       shipper.Contact `json:"recipient"`
	Items           []shipper.Item  `json:"items"`
}

func (s Snapshot) clone() Snapshot {
	items := make([]shipper.Item, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}

// Fees is the carrier's fee breakdown for a shipment.
type Fees struct {
	Base      decimal.Decimal `json:"base"`
	COD       decimal.Decimal `json:"cod"`
	Insurance decimal.Decimal `json:"insurance"`
}

// Total sums the fee components.
func (f Fees) Total() decimal.Decimal {
	return f.Base.Add(f.COD).Add(f.Insurance)
}

// Shipment is one parcel handed to one carrier.
type Shipment struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	OrderID        string
	ProviderID     uuid.UUID
	CarrierCode    string
	ServiceType    shipper.ServiceType
	Status         Status
	TrackingNumber string
	CarrierOrderID string

	snapshot Snapshot

	WeightGrams      int
	DeclaredValue    decimal.Decimal
	CODAmount        decimal.Decimal
	Fees             Fees
	IsFreeship       bool
	RequireInsurance bool
	Notes            string

	LabelURL          string
	TrackingURL       string
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time

	// LastCarrierError keeps the most recent carrier failure, including
	// cancellations the carrier refused while local state moved on.
	LastCarrierError string
	CancelReason     string
	CancelledAt      *time.Time

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDraft builds a Draft shipment with its snapshot captured.
func NewDraft(tenantID uuid.UUID, provider *ProviderConfig, cmd *CreateShipmentCommand, now time.Time) *Shipment {
	return &Shipment{
		ID:          uuid.New(),
		TenantID:    tenantID,
		OrderID:     cmd.OrderID,
		ProviderID:  provider.ID,
		CarrierCode: provider.CarrierCode,
		ServiceType: cmd.ServiceType,
		Status:      shipper.StatusDraft,
		snapshot: Snapshot{
			PickupAddress:   cmd.PickupAddress,
			DeliveryAddress: cmd.DeliveryAddress,
			Sender:          cmd.Sender,
			Recipient:       cmd.Recipient,
			Items:           cmd.Items,
		}.clone(),
		WeightGrams:      cmd.WeightGrams,
		DeclaredValue:    cmd.DeclaredValue,
		CODAmount:        cmd.CODAmount,
		IsFreeship:       cmd.IsFreeship,
		RequireInsurance: cmd.RequireInsurance,
		Notes:            cmd.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Snapshot returns a copy of the creation-time snapshot.
func (s *Shipment) Snapshot() Snapshot {
	return s.snapshot.clone()
}

// RestoreSnapshot sets the snapshot when rehydrating from storage.
func (s *Shipment) RestoreSnapshot(snap Snapshot) {
	s.snapshot = snap.clone()
}

// IsTerminal reports whether the shipment is in a final state.
func (s *Shipment) IsTerminal() bool {
	return IsTerminal(s.Status)
}

// Submitted reports whether the carrier has accepted the shipment.
func (s *Shipment) Submitted() bool {
	return s.Status != shipper.StatusDraft && s.TrackingNumber != ""
}

// orderRequest builds the carrier request from the snapshot.
func (s *Shipment) orderRequest() *shipper.CreateOrderRequest {
	snap := s.Snapshot()
	return &shipper.CreateOrderRequest{
		Reference:        s.ID.String(),
		OrderID:          s.OrderID,
		ServiceType:      s.ServiceType,
		PickupAddress:    snap.PickupAddress,
		DeliveryAddress:  snap.DeliveryAddress,
		Sender:           snap.Sender,
		Recipient:        snap.Recipient,
		Items:            snap.Items,
		WeightGrams:      s.WeightGrams,
		DeclaredValue:    s.DeclaredValue,
		CODAmount:        s.CODAmount,
		IsFreeship:       s.IsFreeship,
		RequireInsurance: s.RequireInsurance,
		Notes:            s.Notes,
	}
}

// Submit records the carrier's acceptance and moves Draft to AwaitingPickup.
// The tracking number is assigned together with the transition and never changes afterwards.
func (s *Shipment) Submit(resp *shipper.CreateOrderResponse, now time.Time) error {
	if s.Status != shipper.StatusDraft {
		return conflictError("shipment %s is %s, only drafts can be submitted", s.ID, s.Status)
	}
	if s.TrackingNumber != "" {
		return conflictError("shipment %s already has tracking number %s", s.ID, s.TrackingNumber)
	}
	if resp == nil || resp.TrackingNumber == "" {
		return validationError("carrier accepted shipment %s without a tracking number", s.ID)
	}

	s.TrackingNumber = resp.TrackingNumber
	s.CarrierOrderID = resp.CarrierOrderID
	s.Fees = Fees{Base: resp.BaseFee, COD: resp.CODFee, Insurance: resp.InsuranceFee}
	s.LabelURL = resp.LabelURL
	s.TrackingURL = resp.TrackingURL
	s.EstimatedDelivery = resp.EstimatedDelivery
	s.Status = shipper.StatusAwaitingPickup
	s.UpdatedAt = now
	return nil
}

// Cancel moves a non-terminal shipment to Cancelled.
func (s *Shipment) Cancel(reason string, now time.Time) error {
	if s.IsTerminal() {
		return conflictError("shipment %s is %s and cannot be cancelled", s.ID, s.Status)
	}
	s.Status = shipper.StatusCancelled
	s.CancelReason = reason
	s.CancelledAt = &now
	s.UpdatedAt = now
	return nil
}

// Outcome describes what applying a carrier status did.
type Outcome int

const (
	// OutcomeApplied means the status moved forward.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the shipment already had this status.
	OutcomeDuplicate
	// OutcomeStale means the event describes an earlier stage and was discarded.
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeStale:
		return "stale"
	}
	return "unknown"
}

// ApplyCarrierStatus applies a status reported by the carrier.
// Repeats and regressions are outcomes, not errors; a move the table forbids is a Conflict.
func (s *Shipment) ApplyCarrierStatus(to Status, eventTime, now time.Time) (Outcome, error) {
	from := s.Status
	switch {
	case to == from:
		return OutcomeDuplicate, nil
	case from == shipper.StatusDraft:
		return 0, conflictError("shipment %s has not been submitted to the carrier yet", s.ID)
	case isRegressive(from, to):
		return OutcomeStale, nil
	case IsTerminal(from):
		return 0, conflictError("shipment %s is %s, cannot move to %s", s.ID, from, to)
	case !CanTransition(from, to):
		return 0, conflictError("shipment %s cannot move from %s to %s", s.ID, from, to)
	}

	s.Status = to
	s.UpdatedAt = now
	switch to {
	case shipper.StatusDelivered:
		at := eventTime
		if at.IsZero() {
			at = now
		}
		s.DeliveredAt = &at
	case shipper.StatusCancelled:
		s.CancelledAt = &now
		s.CancelReason = "cancelled by carrier"
	}
	return OutcomeApplied, nil
}
