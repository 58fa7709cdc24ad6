// Package ghn provides integration with the Giao Hang Nhanh (GHN) shipping API.
package ghn

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
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

const carrierName = "GHN"

// Default endpoints per environment.
const (
	ProductionURL = "https://online-gateway.ghn.vn/shiip/public-api"
	SandboxURL    = "https://dev-online-gateway.ghn.vn/shiip/public-api"
)

// Config holds GHN adapter configuration.
type Config struct {
	ProductionURL string
	SandboxURL    string
	Timeout       time.Duration
	UseMock       bool
}

// Client is the GHN shipper client.
type Client struct {
	config    Config
	newClient func(acct *shipper.Account) APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new GHN client.
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
		baseURL := acct.BaseURL
		if baseURL == "" {
			baseURL = cfg.SandboxURL
			if acct.Environment == shipper.EnvironmentProduction {
				baseURL = cfg.ProductionURL
			}
		}
		return NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: baseURL,
			Token:   acct.Credentials.Get("token"),
			ShopID:  acct.Credentials.Get("shop_id"),
			Timeout: cfg.Timeout,
		})
	}
	return c
}

// NewWithAPIClient creates a new GHN client with a custom API client.
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

// Name returns the carrier code.
func (c *Client) Name() string {
	return carrierName
}

// CreateOrder submits a parcel to GHN.
func (c *Client) CreateOrder(ctx context.Context, req *shipper.CreateOrderRequest, acct *shipper.Account) (*shipper.CreateOrderResponse, error) {
	ctx, span := c.tracer.Start(ctx, "ghn.CreateOrder",
		trace.WithAttributes(attribute.String("shipment.reference", req.Reference)))
	defer span.End()

	c.logger.Ctx(ctx).Info("Creating GHN order",
		zap.String("reference", req.Reference),
		zap.Int("weight_grams", req.WeightGrams),
	)

	data, err := c.newClient(acct).CreateOrder(ctx, orderRequestToAPI(req))
	if err != nil {
		c.logger.Ctx(ctx).Error("GHN API error", zap.Error(err))
		span.RecordError(err)
		return nil, toShipperError(err)
	}

	raw, _ := json.Marshal(data)
	out := &shipper.CreateOrderResponse{
		TrackingNumber: data.OrderCode,
		CarrierOrderID: data.OrderCode,
		BaseFee:        decimal.NewFromInt(data.Fee.MainService),
		CODFee:         decimal.NewFromInt(data.Fee.CODFee),
		InsuranceFee:   decimal.NewFromInt(data.Fee.Insurance),
		TrackingURL:    "https://donhang.ghn.vn/?order_code=" + data.OrderCode,
		RawResponse:    raw,
	}
	if t, err := time.Parse(time.RFC3339, data.ExpectedDeliveryTime); err == nil {
		out.EstimatedDelivery = &t
	}
	return out, nil
}

// CancelOrder cancels a GHN order. GHN answers per order code; a false result is a rejection.
func (c *Client) CancelOrder(ctx context.Context, trackingNumber string, acct *shipper.Account) error {
	ctx, span := c.tracer.Start(ctx, "ghn.CancelOrder",
		trace.WithAttributes(attribute.String("shipment.tracking_number", trackingNumber)))
	defer span.End()

	c.logger.Ctx(ctx).Info("Cancelling GHN order", zap.String("tracking_number", trackingNumber))

	results, err := c.newClient(acct).CancelOrders(ctx, []string{trackingNumber})
	if err != nil {
		c.logger.Ctx(ctx).Error("GHN API error", zap.Error(err))
		span.RecordError(err)
		return toShipperError(err)
	}
	for _, r := range results {
		if r.OrderCode == trackingNumber && !r.Result {
			return shipper.NewShipperError(carrierName, "CANCEL_REJECTED", r.Message)
		}
	}
	return nil
}

// GetRates quotes GHN's light and heavy services.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest, acct *shipper.Account) ([]shipper.Rate, error) {
	ctx, span := c.tracer.Start(ctx, "ghn.GetRates")
	defer span.End()

	api := c.newClient(acct)
	var rates []shipper.Rate
	for _, svc := range services {
		if req.ServiceType != "" && req.ServiceType != svc.serviceType {
			continue
		}
		insurance := int64(0)
		if req.RequireInsurance {
			insurance = req.DeclaredValue.IntPart()
		}
		fee, err := api.CalculateFee(ctx, &FeeRequest{
			ServiceTypeID:    svc.id,
			FromDistrictName: req.PickupAddress.District,
			FromProvinceName: req.PickupAddress.City,
			ToWardName:       req.DeliveryAddress.Ward,
			ToDistrictName:   req.DeliveryAddress.District,
			ToProvinceName:   req.DeliveryAddress.City,
			Weight:           req.WeightGrams,
			InsuranceValue:   insurance,
			CODValue:         req.CODAmount.IntPart(),
		})
		if err != nil {
			span.RecordError(err)
			return nil, toShipperError(err)
		}
		rates = append(rates, shipper.Rate{
			Carrier:      carrierName,
			ServiceCode:  svc.code,
			ServiceName:  svc.name,
			ServiceType:  svc.serviceType,
			BaseFee:      decimal.NewFromInt(fee.ServiceFee),
			CODFee:       decimal.NewFromInt(fee.CODFee),
			InsuranceFee: decimal.NewFromInt(fee.InsuranceFee),
			Total:        decimal.NewFromInt(fee.Total),
			Currency:     "VND",
			TransitDays:  svc.transitDays,
		})
	}
	return rates, nil
}

// ParseWebhook verifies the hex HMAC-SHA256 of the body and decodes a GHN callback.
func (c *Client) ParseWebhook(ctx context.Context, payload shipper.WebhookPayload, acct *shipper.Account) (*shipper.WebhookEvent, error) {
	if acct == nil || acct.WebhookSecret == "" || !validSignature(payload.Body, payload.Signature, acct.WebhookSecret) {
		return nil, shipper.ErrWebhookUnauthenticated
	}

	var cb Callback
	if err := json.Unmarshal(payload.Body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", shipper.ErrMalformedWebhook, err)
	}
	if cb.OrderCode == "" || cb.Status == "" {
		return nil, fmt.Errorf("%w: OrderCode and Status are required", shipper.ErrMalformedWebhook)
	}

	eventTime, _ := time.Parse(time.RFC3339, cb.Time)
	return &shipper.WebhookEvent{
		TrackingNumber: cb.OrderCode,
		StatusCode:     cb.Status,
		Description:    cb.Reason,
		Location:       cb.Warehouse,
		EventTime:      eventTime,
	}, nil
}

// Sign computes the signature GHN attaches to a webhook body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(body []byte, signature, secret string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// TranslateStatus maps a GHN status name onto the normalized lifecycle.
func (c *Client) TranslateStatus(code string) (shipper.ShipmentStatus, bool) {
	status, ok := statusTable[strings.ToLower(strings.TrimSpace(code))]
	return status, ok
}

// HealthCheck lists the account's shops to validate the token.
func (c *Client) HealthCheck(ctx context.Context, acct *shipper.Account) shipper.HealthStatus {
	start := time.Now()
	err := c.newClient(acct).Ping(ctx)
	status := shipper.HealthStatus{State: shipper.HealthHealthy, Latency: time.Since(start), CheckedAt: time.Now()}
	switch {
	case err != nil:
		status.State = shipper.HealthUnhealthy
		status.Message = err.Error()
	case status.Latency > 5*time.Second:
		status.State = shipper.HealthDegraded
		status.Message = "slow response"
	}
	return status
}

// ============================================================================
// Conversion helpers
// ============================================================================

type service struct {
	id          int
	code        string
	name        string
	serviceType shipper.ServiceType
	transitDays int
}

var services = []service{
	{id: ServiceTypeLight, code: "LIGHT", name: "GHN Standard", serviceType: shipper.ServiceStandard, transitDays: 3},
	{id: ServiceTypeHeavy, code: "HEAVY", name: "GHN Heavy Goods", serviceType: shipper.ServiceFreight, transitDays: 5},
}

func orderRequestToAPI(req *shipper.CreateOrderRequest) *OrderRequest {
	items := make([]OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = OrderItem{
			Name:     item.Name,
			Code:     item.SKU,
			Quantity: item.Quantity,
			Price:    item.Price.IntPart(),
			Weight:   item.WeightGrams,
		}
	}

	payment := PaymentByRecipient
	if req.IsFreeship {
		payment = PaymentBySender
	}
	serviceTypeID := ServiceTypeLight
	if req.ServiceType == shipper.ServiceFreight {
		serviceTypeID = ServiceTypeHeavy
	}
	insurance := int64(0)
	if req.RequireInsurance {
		insurance = req.DeclaredValue.IntPart()
	}

	return &OrderRequest{
		PaymentTypeID:    payment,
		Note:             req.Notes,
		RequiredNote:     "KHONGCHOXEMHANG",
		ClientOrderCode:  req.Reference,
		FromName:         req.Sender.Name,
		FromPhone:        req.Sender.Phone,
		FromAddress:      req.PickupAddress.Line1,
		FromWardName:     req.PickupAddress.Ward,
		FromDistrictName: req.PickupAddress.District,
		FromProvinceName: req.PickupAddress.City,
		ToName:           req.Recipient.Name,
		ToPhone:          req.Recipient.Phone,
		ToAddress:        req.DeliveryAddress.Line1,
		ToWardName:       req.DeliveryAddress.Ward,
		ToDistrictName:   req.DeliveryAddress.District,
		ToProvinceName:   req.DeliveryAddress.City,
		CODAmount:        req.CODAmount.IntPart(),
		Weight:           req.WeightGrams,
		InsuranceValue:   insurance,
		ServiceTypeID:    serviceTypeID,
		Items:            items,
	}
}

func toShipperError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shipper.APIFailure(carrierName, fmt.Sprintf("GHN_%d", apiErr.Code), apiErr.Message, apiErr.StatusCode)
	}
	return shipper.TransportFailure(carrierName, err)
}

// ============================================================================
// Status mapping
// ============================================================================

var statusTable = map[string]shipper.ShipmentStatus{
	"ready_to_pick":            shipper.StatusAwaitingPickup,
	"picking":                  shipper.StatusAwaitingPickup,
	"money_collect_picking":    shipper.StatusAwaitingPickup,
	"picked":                   shipper.StatusPickedUp,
	"storing":                  shipper.StatusInTransit,
	"transporting":             shipper.StatusInTransit,
	"sorting":                  shipper.StatusInTransit,
	"delivering":               shipper.StatusOutForDelivery,
	"money_collect_delivering": shipper.StatusOutForDelivery,
	"delivered":                shipper.StatusDelivered,
	"delivery_fail":            shipper.StatusDeliveryFailed,
	"waiting_to_return":        shipper.StatusReturning,
	"return":                   shipper.StatusReturning,
	"return_transporting":      shipper.StatusReturning,
	"returning":                shipper.StatusReturning,
	"returned":                 shipper.StatusReturned,
	"cancel":                   shipper.StatusCancelled,
}

var _ shipper.Shipper = (*Client)(nil)
