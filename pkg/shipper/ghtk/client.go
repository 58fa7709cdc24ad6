// Package ghtk provides integration with the Giao Hang Tiet Kiem (GHTK) shipping API.
package ghtk

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierName = "GHTK"

// Default endpoints per environment.
const (
	ProductionURL = "https://services.giaohangtietkiem.vn"
	SandboxURL    = "https://services-staging.ghtklab.com"
)

// Config holds GHTK adapter configuration.
// Credentials are not part of it: they arrive with every call in the shipper.Account.
type Config struct {
	ProductionURL string
	SandboxURL    string
	PartnerCode   string
	Timeout       time.Duration
	UseMock       bool // When true, every account shares one mock API client
}

// Client is the GHTK shipper client.
// It implements the shipper.Shipper interface and delegates
// API calls to an APIClient built for the calling account.
type Client struct {
	config    Config
	newClient func(acct *shipper.Account) APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new GHTK client.
// If cfg.UseMock is true, it uses a mock API client for testing.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if cfg.ProductionURL == "" {
		cfg.ProductionURL = ProductionURL
	}
	if cfg.SandboxURL == "" {
		cfg.SandboxURL = SandboxURL
	}

	c := &Client{config: cfg, logger: logger, tracer: tracerOrNoop(tracer)}
	if cfg.UseMock {
		mockClient := NewMockAPIClient()
		c.newClient = func(*shipper.Account) APIClient { return mockClient }
		return c
	}

	c.newClient = func(acct *shipper.Account) APIClient {
		return NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:     c.baseURL(acct),
			Token:       acct.Credentials.Get("token"),
			PartnerCode: cfg.PartnerCode,
			Timeout:     cfg.Timeout,
		})
	}
	return c
}

// NewWithAPIClient creates a new GHTK client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		newClient: func(*shipper.Account) APIClient { return apiClient },
		logger:    logger,
		tracer:    tracerOrNoop(tracer),
	}
}

func tracerOrNoop(tracer trace.Tracer) trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer(carrierName)
	}
	return tracer
}

func (c *Client) baseURL(acct *shipper.Account) string {
	if acct.BaseURL != "" {
		return acct.BaseURL
	}
	if acct.Environment == shipper.EnvironmentProduction {
		return c.config.ProductionURL
	}
	return c.config.SandboxURL
}

// Name returns the carrier code.
func (c *Client) Name() string {
	return carrierName
}

// CreateOrder submits a parcel to GHTK.
func (c *Client) CreateOrder(ctx context.Context, req *shipper.CreateOrderRequest, acct *shipper.Account) (*shipper.CreateOrderResponse, error) {
	ctx, span := c.tracer.Start(ctx, "ghtk.CreateOrder",
		trace.WithAttributes(attribute.String("shipment.reference", req.Reference)))
	defer span.End()

	c.logger.Ctx(ctx).Info("Creating GHTK order",
		zap.String("reference", req.Reference),
		zap.String("order_id", req.OrderID),
		zap.Int("weight_grams", req.WeightGrams),
	)

	apiResp, err := c.newClient(acct).CreateOrder(ctx, orderRequestToAPI(req))
	if err != nil {
		c.logger.Ctx(ctx).Error("GHTK API error", zap.Error(err))
		span.RecordError(err)
		return nil, toShipperError(err)
	}

	return orderResponseToShipper(apiResp), nil
}

// CancelOrder cancels a GHTK order by its label (the tracking number).
func (c *Client) CancelOrder(ctx context.Context, trackingNumber string, acct *shipper.Account) error {
	ctx, span := c.tracer.Start(ctx, "ghtk.CancelOrder",
		trace.WithAttributes(attribute.String("shipment.tracking_number", trackingNumber)))
	defer span.End()

	c.logger.Ctx(ctx).Info("Cancelling GHTK order", zap.String("tracking_number", trackingNumber))

	if _, err := c.newClient(acct).CancelOrder(ctx, trackingNumber); err != nil {
		c.logger.Ctx(ctx).Error("GHTK API error", zap.Error(err))
		span.RecordError(err)
		return toShipperError(err)
	}
	return nil
}

// GetRates quotes GHTK's road and fly services.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest, acct *shipper.Account) ([]shipper.Rate, error) {
	ctx, span := c.tracer.Start(ctx, "ghtk.GetRates")
	defer span.End()

	api := c.newClient(acct)
	var rates []shipper.Rate
	for _, svc := range services {
		if req.ServiceType != "" && req.ServiceType != svc.serviceType {
			continue
		}

		resp, err := api.GetFee(ctx, &FeeRequest{
			PickProvince:  req.PickupAddress.City,
			PickDistrict:  req.PickupAddress.District,
			Province:      req.DeliveryAddress.City,
			District:      req.DeliveryAddress.District,
			WeightGrams:   req.WeightGrams,
			Value:         req.DeclaredValue.IntPart(),
			Transport:     svc.transport,
			DeliverOption: "none",
		})
		if err != nil {
			span.RecordError(err)
			return nil, toShipperError(err)
		}
		if !resp.Fee.Delivery {
			continue
		}

		base := decimal.NewFromInt(resp.Fee.Fee)
		insurance := decimal.Zero
		if req.RequireInsurance {
			insurance = decimal.NewFromInt(resp.Fee.InsuranceFee)
		}
		rates = append(rates, shipper.Rate{
			Carrier:      carrierName,
			ServiceCode:  svc.code,
			ServiceName:  svc.name,
			ServiceType:  svc.serviceType,
			BaseFee:      base,
			InsuranceFee: insurance,
			Total:        base.Add(insurance),
			Currency:     "VND",
			TransitDays:  svc.transitDays,
		})
	}
	return rates, nil
}

// ParseWebhook authenticates and decodes a GHTK status callback.
// GHTK echoes the partner's secret hash with every callback.
func (c *Client) ParseWebhook(ctx context.Context, payload shipper.WebhookPayload, acct *shipper.Account) (*shipper.WebhookEvent, error) {
	if acct == nil || acct.WebhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(payload.Signature), []byte(acct.WebhookSecret)) != 1 {
		return nil, shipper.ErrWebhookUnauthenticated
	}

	var cb Callback
	if err := json.Unmarshal(payload.Body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", shipper.ErrMalformedWebhook, err)
	}
	if cb.LabelID == "" {
		return nil, fmt.Errorf("%w: missing label_id", shipper.ErrMalformedWebhook)
	}

	description := cb.Reason
	if description == "" {
		description = statusDescriptions[cb.StatusID]
	}

	return &shipper.WebhookEvent{
		TrackingNumber: cb.LabelID,
		StatusCode:     strconv.Itoa(cb.StatusID),
		Description:    description,
		EventTime:      parseTime(cb.ActionTime),
	}, nil
}

// TranslateStatus maps a GHTK status_id onto the normalized lifecycle.
func (c *Client) TranslateStatus(code string) (shipper.ShipmentStatus, bool) {
	status, ok := statusTable[strings.TrimSpace(code)]
	return status, ok
}

// HealthCheck pings GHTK with the account token.
func (c *Client) HealthCheck(ctx context.Context, acct *shipper.Account) shipper.HealthStatus {
	start := time.Now()
	err := c.newClient(acct).Ping(ctx)
	return healthFromPing(start, err)
}

// ============================================================================
// Conversion helpers
// ============================================================================

type service struct {
	code        string
	name        string
	transport   string
	serviceType shipper.ServiceType
	transitDays int
}

var services = []service{
	{code: "ROAD", name: "GHTK Road", transport: "road", serviceType: shipper.ServiceStandard, transitDays: 3},
	{code: "FLY", name: "GHTK Fly", transport: "fly", serviceType: shipper.ServiceExpress, transitDays: 1},
}

func transportFor(t shipper.ServiceType) string {
	if t == shipper.ServiceExpress || t == shipper.ServiceSameDay {
		return "fly"
	}
	return "road"
}

func orderRequestToAPI(req *shipper.CreateOrderRequest) *OrderRequest {
	products := make([]Product, len(req.Items))
	for i, item := range req.Items {
		products[i] = Product{
			Name:        item.Name,
			Weight:      float64(item.WeightGrams) / 1000,
			Quantity:    item.Quantity,
			Price:       item.Price.IntPart(),
			ProductCode: item.SKU,
		}
	}

	freeship := 0
	if req.IsFreeship {
		freeship = 1
	}

	value := int64(0)
	if req.RequireInsurance {
		value = req.DeclaredValue.IntPart()
	}

	return &OrderRequest{
		Products: products,
		Order: Order{
			ID:            req.Reference,
			PickName:      req.Sender.Name,
			PickAddress:   req.PickupAddress.Line1,
			PickProvince:  req.PickupAddress.City,
			PickDistrict:  req.PickupAddress.District,
			PickWard:      req.PickupAddress.Ward,
			PickTel:       req.Sender.Phone,
			Name:          req.Recipient.Name,
			Address:       req.DeliveryAddress.Line1,
			Province:      req.DeliveryAddress.City,
			District:      req.DeliveryAddress.District,
			Ward:          req.DeliveryAddress.Ward,
			Hamlet:        "Khác",
			Tel:           req.Recipient.Phone,
			Email:         req.Recipient.Email,
			Note:          req.Notes,
			IsFreeship:    freeship,
			PickMoney:     req.CODAmount.IntPart(),
			Value:         value,
			Transport:     transportFor(req.ServiceType),
			DeliverOption: "none",
		},
	}
}

func orderResponseToShipper(resp *OrderResponse) *shipper.CreateOrderResponse {
	raw, _ := json.Marshal(resp)
	out := &shipper.CreateOrderResponse{RawResponse: raw}
	if resp.Order == nil {
		return out
	}

	out.TrackingNumber = resp.Order.Label
	out.CarrierOrderID = strconv.FormatInt(resp.Order.TrackingID, 10)
	out.BaseFee = decimal.NewFromInt(resp.Order.Fee)
	out.InsuranceFee = decimal.NewFromInt(resp.Order.InsuranceFee)
	out.TrackingURL = "https://i.ghtk.vn/" + resp.Order.Label
	if t := parseTime(resp.Order.EstimatedDeliverTime); !t.IsZero() {
		out.EstimatedDelivery = &t
	}
	return out
}

// toShipperError converts API failures so the carrier's message stays intact.
func toShipperError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shipper.APIFailure(carrierName, apiErr.Code, apiErr.Message, apiErr.StatusCode)
	}
	return shipper.TransportFailure(carrierName, err)
}

func healthFromPing(start time.Time, err error) shipper.HealthStatus {
	latency := time.Since(start)
	status := shipper.HealthStatus{State: shipper.HealthHealthy, Latency: latency, CheckedAt: time.Now()}
	switch {
	case err != nil:
		status.State = shipper.HealthUnhealthy
		status.Message = err.Error()
	case latency > 5*time.Second:
		status.State = shipper.HealthDegraded
		status.Message = "slow response"
	}
	return status
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ============================================================================
// Status mapping
// ============================================================================

var statusTable = map[string]shipper.ShipmentStatus{
	"-1":  shipper.StatusCancelled,
	"1":   shipper.StatusAwaitingPickup,
	"2":   shipper.StatusAwaitingPickup,
	"12":  shipper.StatusAwaitingPickup,
	"3":   shipper.StatusPickedUp,
	"123": shipper.StatusPickedUp,
	"4":   shipper.StatusInTransit,
	"10":  shipper.StatusInTransit,
	"45":  shipper.StatusOutForDelivery,
	"5":   shipper.StatusDelivered,
	"6":   shipper.StatusDelivered,
	"9":   shipper.StatusDeliveryFailed,
	"49":  shipper.StatusDeliveryFailed,
	"20":  shipper.StatusReturning,
	"21":  shipper.StatusReturned,
	"11":  shipper.StatusReturned,
}

var statusDescriptions = map[int]string{
	-1:  "Cancelled",
	1:   "Not yet received",
	2:   "Received",
	3:   "Picked up",
	4:   "Delivering",
	5:   "Delivered",
	6:   "Reconciled",
	9:   "Delivery failed",
	10:  "Delivery delayed",
	11:  "Return reconciled",
	12:  "Picking",
	20:  "Returning",
	21:  "Returned",
	45:  "Shipper delivering",
	49:  "Shipper reported delivery failure",
	123: "Shipper reported pickup",
}

var _ shipper.Shipper = (*Client)(nil)
