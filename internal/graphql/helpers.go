package graphql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Shipment is the admin view of a shipment.
type Shipment struct {
	ID                string              `json:"id"`
	TenantID          string              `json:"tenantId"`
	OrderID           string              `json:"orderId"`
	ProviderID        string              `json:"providerId"`
	CarrierCode       string              `json:"carrierCode"`
	ServiceType       shipper.ServiceType `json:"serviceType,omitempty"`
	Status            string              `json:"status"`
	TrackingNumber    *string             `json:"trackingNumber"`
	CarrierOrderID    *string             `json:"carrierOrderId"`
	PickupAddress     shipper.Address     `json:"pickupAddress"`
	DeliveryAddress   shipper.Address     `json:"deliveryAddress"`
	Sender            shipper.Contact     `json:"sender"`
	Recipient         shipper.Contact     `json:"recipient"`
	Items             []shipper.Item      `json:"items"`
	WeightGrams       int                 `json:"weightGrams"`
	DeclaredValue     string              `json:"declaredValue"`
	CODAmount         string              `json:"codAmount"`
	Fees              Fees                `json:"fees"`
	LabelURL          *string             `json:"labelUrl"`
	TrackingURL       *string             `json:"trackingUrl"`
	EstimatedDelivery *time.Time          `json:"estimatedDelivery"`
	DeliveredAt       *time.Time          `json:"deliveredAt"`
	LastCarrierError  *string             `json:"lastCarrierError"`
	CancelReason      *string             `json:"cancelReason"`
	CancelledAt       *time.Time          `json:"cancelledAt"`
	Version           int                 `json:"version"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// Fees is the carrier fee breakdown, amounts as decimal strings.
type Fees struct {
	Base      string `json:"base"`
	COD       string `json:"cod"`
	Insurance string `json:"insurance"`
	Total     string `json:"total"`
}

// CancelResult is the outcome of cancelShipment.
type CancelResult struct {
	Shipment         *Shipment `json:"shipment"`
	CarrierConfirmed bool      `json:"carrierConfirmed"`
	CarrierError     string    `json:"carrierError,omitempty"`
}

// Rate is one quoted service.
type Rate struct {
	Carrier           string              `json:"carrier"`
	ProviderID        string              `json:"providerId"`
	ServiceCode       string              `json:"serviceCode"`
	ServiceName       string              `json:"serviceName"`
	ServiceType       shipper.ServiceType `json:"serviceType"`
	BaseFee           string              `json:"baseFee"`
	CODFee            string              `json:"codFee"`
	InsuranceFee      string              `json:"insuranceFee"`
	Total             string              `json:"total"`
	Currency          string              `json:"currency"`
	TransitDays       int                 `json:"transitDays"`
	EstimatedDelivery *time.Time          `json:"estimatedDelivery"`
}

// Quote is the result of quoteRates.
type Quote struct {
	Policy      string                      `json:"policy"`
	Rates       []*Rate                     `json:"rates"`
	Recommended *Rate                       `json:"recommended"`
	Skipped     []fulfillment.ProviderError `json:"skipped"`
}

func shipmentToGraphQL(sh *fulfillment.Shipment) *Shipment {
	if sh == nil {
		return nil
	}
	snap := sh.Snapshot()
	return &Shipment{
		ID:                sh.ID.String(),
		TenantID:          sh.TenantID.String(),
		OrderID:           sh.OrderID,
		ProviderID:        sh.ProviderID.String(),
		CarrierCode:       sh.CarrierCode,
		ServiceType:       sh.ServiceType,
		Status:            string(sh.Status),
		TrackingNumber:    optional(sh.TrackingNumber),
		CarrierOrderID:    optional(sh.CarrierOrderID),
		PickupAddress:     snap.PickupAddress,
		DeliveryAddress:   snap.DeliveryAddress,
		Sender:            snap.Sender,
		Recipient:         snap.Recipient,
		Items:             snap.Items,
		WeightGrams:       sh.WeightGrams,
		DeclaredValue:     formatDecimal(sh.DeclaredValue),
		CODAmount:         formatDecimal(sh.CODAmount),
		Fees:              feesToGraphQL(sh.Fees),
		LabelURL:          optional(sh.LabelURL),
		TrackingURL:       optional(sh.TrackingURL),
		EstimatedDelivery: sh.EstimatedDelivery,
		DeliveredAt:       sh.DeliveredAt,
		LastCarrierError:  optional(sh.LastCarrierError),
		CancelReason:      optional(sh.CancelReason),
		CancelledAt:       sh.CancelledAt,
		Version:           sh.Version,
		CreatedAt:         sh.CreatedAt,
		UpdatedAt:         sh.UpdatedAt,
	}
}

func feesToGraphQL(f fulfillment.Fees) Fees {
	return Fees{
		Base:      formatDecimal(f.Base),
		COD:       formatDecimal(f.COD),
		Insurance: formatDecimal(f.Insurance),
		Total:     formatDecimal(f.Total()),
	}
}

func rateToGraphQL(r shipper.Rate) *Rate {
	return &Rate{
		Carrier:           r.Carrier,
		ProviderID:        r.ProviderID,
		ServiceCode:       r.ServiceCode,
		ServiceName:       r.ServiceName,
		ServiceType:       r.ServiceType,
		BaseFee:           formatDecimal(r.BaseFee),
		CODFee:            formatDecimal(r.CODFee),
		InsuranceFee:      formatDecimal(r.InsuranceFee),
		Total:             formatDecimal(r.Total),
		Currency:          r.Currency,
		TransitDays:       r.TransitDays,
		EstimatedDelivery: r.EstimatedDelivery,
	}
}

func quoteToGraphQL(q *fulfillment.Quote) *Quote {
	out := &Quote{
		Policy:  string(q.Policy),
		Rates:   make([]*Rate, len(q.Rates)),
		Skipped: q.Skipped,
	}
	for i, r := range q.Rates {
		out.Rates[i] = rateToGraphQL(r)
	}
	if q.Recommended != nil {
		out.Recommended = rateToGraphQL(*q.Recommended)
	}
	if out.Skipped == nil {
		out.Skipped = []fulfillment.ProviderError{}
	}
	return out
}

func formatDecimal(d decimal.Decimal) string {
	return d.String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func invalidInput(format string, args ...interface{}) error {
	return &fulfillment.Error{Kind: fulfillment.KindValidation, Message: fmt.Sprintf(format, args...)}
}

func parseID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, invalidInput("%s: must be a UUID", name)
	}
	return id, nil
}

// decodeInput converts a GraphQL argument value into dst using dst's json tags.
// Unknown fields are rejected.
func decodeInput(name string, value interface{}, dst interface{}) error {
	if value == nil {
		return invalidInput("%s: is required", name)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return invalidInput("%s: %v", name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidInput("%s: %v", name, err)
	}
	return nil
}
