// Package mock provides a mock shipper implementation for testing.
package mock

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Client is a mock shipper for testing.
// Hooks override the default behavior of each operation; calls are counted.
type Client struct {
	name string

	OnCreateOrder func(ctx context.Context, req *shipper.CreateOrderRequest, acct *shipper.Account) (*shipper.CreateOrderResponse, error)
	OnCancelOrder func(ctx context.Context, trackingNumber string, acct *shipper.Account) error
	OnGetRates    func(ctx context.Context, req *shipper.RateRequest, acct *shipper.Account) ([]shipper.Rate, error)
	OnHealthCheck func(ctx context.Context, acct *shipper.Account) shipper.HealthStatus

	mu          sync.Mutex
	createCalls int
	cancelCalls int
	rateCalls   int
}

// New creates a new mock shipper.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// CreateCalls returns how many times CreateOrder was invoked.
func (c *Client) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createCalls
}

// CancelCalls returns how many times CancelOrder was invoked.
func (c *Client) CancelCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelCalls
}

// RateCalls returns how many times GetRates was invoked.
func (c *Client) RateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateCalls
}

// CreateOrder creates a mock shipping order.
func (c *Client) CreateOrder(ctx context.Context, req *shipper.CreateOrderRequest, acct *shipper.Account) (*shipper.CreateOrderResponse, error) {
	c.mu.Lock()
	c.createCalls++
	c.mu.Unlock()

	if c.OnCreateOrder != nil {
		return c.OnCreateOrder(ctx, req, acct)
	}

	now := time.Now()
	trackingNumber := fmt.Sprintf("%s%d", strings.ToUpper(c.name), now.UnixNano()%1000000000)
	estimatedDelivery := now.Add(3 * 24 * time.Hour)

	return &shipper.CreateOrderResponse{
		TrackingNumber:    trackingNumber,
		CarrierOrderID:    fmt.Sprintf("%s-order-%d", c.name, now.UnixNano()),
		BaseFee:           decimal.NewFromInt(30000),
		CODFee:            decimal.Zero,
		InsuranceFee:      decimal.Zero,
		LabelURL:          fmt.Sprintf("https://labels.%s.mock/%s.pdf", strings.ToLower(c.name), trackingNumber),
		TrackingURL:       fmt.Sprintf("https://track.%s.mock/%s", strings.ToLower(c.name), trackingNumber),
		EstimatedDelivery: &estimatedDelivery,
		RawResponse:       []byte(`{"success":true}`),
	}, nil
}

// CancelOrder cancels a mock shipping order.
func (c *Client) CancelOrder(ctx context.Context, trackingNumber string, acct *shipper.Account) error {
	c.mu.Lock()
	c.cancelCalls++
	c.mu.Unlock()

	if c.OnCancelOrder != nil {
		return c.OnCancelOrder(ctx, trackingNumber, acct)
	}
	return nil
}

// GetRates returns mock shipping rates.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest, acct *shipper.Account) ([]shipper.Rate, error) {
	c.mu.Lock()
	c.rateCalls++
	c.mu.Unlock()

	if c.OnGetRates != nil {
		return c.OnGetRates(ctx, req, acct)
	}

	return []shipper.Rate{
		{
			Carrier:     c.name,
			ServiceCode: "STANDARD",
			ServiceName: fmt.Sprintf("%s Standard", c.name),
			ServiceType: shipper.ServiceStandard,
			BaseFee:     decimal.NewFromInt(30000),
			Total:       decimal.NewFromInt(30000),
			Currency:    "VND",
			TransitDays: 3,
		},
		{
			Carrier:     c.name,
			ServiceCode: "EXPRESS",
			ServiceName: fmt.Sprintf("%s Express", c.name),
			ServiceType: shipper.ServiceExpress,
			BaseFee:     decimal.NewFromInt(55000),
			Total:       decimal.NewFromInt(55000),
			Currency:    "VND",
			TransitDays: 1,
		},
	}, nil
}

// Callback is the JSON body the mock carrier posts to the webhook endpoint.
type Callback struct {
	TrackingNumber string    `json:"trackingNumber"`
	Status         string    `json:"status"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	Time           time.Time `json:"time"`
}

// ParseWebhook decodes a mock callback. When the account has a webhook secret,
// the presented signature must equal it.
func (c *Client) ParseWebhook(ctx context.Context, payload shipper.WebhookPayload, acct *shipper.Account) (*shipper.WebhookEvent, error) {
	if acct != nil && acct.WebhookSecret != "" {
		if subtle.ConstantTimeCompare([]byte(payload.Signature), []byte(acct.WebhookSecret)) != 1 {
			return nil, shipper.ErrWebhookUnauthenticated
		}
	}

	var cb Callback
	if err := json.Unmarshal(payload.Body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", shipper.ErrMalformedWebhook, err)
	}
	if cb.TrackingNumber == "" || cb.Status == "" {
		return nil, fmt.Errorf("%w: tracking number and status are required", shipper.ErrMalformedWebhook)
	}

	return &shipper.WebhookEvent{
		TrackingNumber: cb.TrackingNumber,
		StatusCode:     cb.Status,
		Description:    cb.Description,
		Location:       cb.Location,
		EventTime:      cb.Time,
	}, nil
}

var statusTable = map[string]shipper.ShipmentStatus{
	"awaiting_pickup":  shipper.StatusAwaitingPickup,
	"picked_up":        shipper.StatusPickedUp,
	"in_transit":       shipper.StatusInTransit,
	"out_for_delivery": shipper.StatusOutForDelivery,
	"delivered":        shipper.StatusDelivered,
	"delivery_failed":  shipper.StatusDeliveryFailed,
	"cancelled":        shipper.StatusCancelled,
	"returning":        shipper.StatusReturning,
	"returned":         shipper.StatusReturned,
}

// TranslateStatus maps the mock carrier's status names, which match the normalized ones.
func (c *Client) TranslateStatus(code string) (shipper.ShipmentStatus, bool) {
	status, ok := statusTable[strings.ToLower(code)]
	return status, ok
}

// HealthCheck reports the mock carrier as healthy unless overridden.
func (c *Client) HealthCheck(ctx context.Context, acct *shipper.Account) shipper.HealthStatus {
	if c.OnHealthCheck != nil {
		return c.OnHealthCheck(ctx, acct)
	}
	return shipper.HealthStatus{State: shipper.HealthHealthy, CheckedAt: time.Now()}
}

var _ shipper.Shipper = (*Client)(nil)
