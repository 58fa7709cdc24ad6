// Package freightcom provides integration with the Freightcom shipping API.
package freightcom

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

const carrierName = "FREIGHTCOM"

// Default endpoints per environment.
const (
	ProductionURL = "https://external-api.freightcom.com"
	SandboxURL    = "https://customer-external-api.ssd-test.freightcom.com"
)

// Config holds Freightcom configuration.
type Config struct {
	ProductionURL   string
	SandboxURL      string
	PaymentMethodID int // Required for creating shipments
	Timeout         time.Duration
	UseMock         bool // When true, uses mock API client
}

// Client is the Freightcom shipper client.
// It implements the shipper.Shipper interface and delegates
// API calls to an APIClient built for the calling account.
type Client struct {
	config    Config
	newClient func(acct *shipper.Account) APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Freightcom client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
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
			BaseURL: c.baseURL(acct),
			APIKey:  acct.Credentials.Get("api_key"),
			Timeout: cfg.Timeout,
		})
	}
	return c
}

// NewWithAPIClient creates a new Freightcom client with a custom API client.
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

// GetRates returns shipping rates from Freightcom.
func (c *Client) GetRates(ctx context.Context, req *shipper.RateRequest, acct *shipper.Account) ([]shipper.Rate, error) {
	ctx, span := c.tracer.Start(ctx, "freightcom.GetRates")
	defer span.End()

	c.logger.Ctx(ctx).Info("Getting Freightcom rates",
		zap.String("origin_city", req.PickupAddress.City),
		zap.String("destination_city", req.DeliveryAddress.City),
		zap.Int("weight_grams", req.WeightGrams),
	)

	apiResp, err := c.newClient(acct).GetRates(ctx, &RatesRequest{
		Details: shippingDetails(req.PickupAddress, req.DeliveryAddress, req.WeightGrams,
			req.DeclaredValue, req.CODAmount, req.RequireInsurance),
	})
	if err != nil {
		c.logger.Ctx(ctx).Error("Freightcom API error", zap.Error(err))
		span.RecordError(err)
		return nil, toShipperError(err)
	}

	rates := make([]shipper.Rate, 0, len(apiResp.Rates))
	for _, r := range apiResp.Rates {
		serviceType := mapServiceType(r.ServiceCode)
		if req.ServiceType != "" && req.ServiceType != serviceType {
			continue
		}
		rate := shipper.Rate{
			Carrier:      carrierName,
			ServiceCode:  r.ServiceCode,
			ServiceName:  r.ServiceName,
			ServiceType:  serviceType,
			BaseFee:      decimal.NewFromFloat(r.BaseRate).Add(decimal.NewFromFloat(r.FuelSurcharge)),
			CODFee:       decimal.NewFromFloat(r.CODFee),
			InsuranceFee: decimal.NewFromFloat(r.InsuranceFee),
			Total:        decimal.NewFromFloat(r.TotalPrice),
			Currency:     r.Currency,
			TransitDays:  r.TransitDays,
		}
		if t := parseDate(r.DeliveryByDate); !t.IsZero() {
			rate.EstimatedDelivery = &t
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// CreateOrder books a shipment with Freightcom.
// The shipment reference doubles as unique_id so a retried booking is not duplicated.
func (c *Client) CreateOrder(ctx context.Context, req *shipper.CreateOrderRequest, acct *shipper.Account) (*shipper.CreateOrderResponse, error) {
	ctx, span := c.tracer.Start(ctx, "freightcom.CreateOrder",
		trace.WithAttributes(attribute.String("shipment.reference", req.Reference)))
	defer span.End()

	c.logger.Ctx(ctx).Info("Creating Freightcom order",
		zap.String("reference", req.Reference),
		zap.String("recipient", req.Recipient.Name),
	)

	details := shippingDetails(req.PickupAddress, req.DeliveryAddress, req.WeightGrams,
		req.DeclaredValue, req.CODAmount, req.RequireInsurance)
	details.Origin.Name = req.Sender.Name
	details.Origin.Phone = req.Sender.Phone
	details.Origin.Email = req.Sender.Email
	details.Destination.Name = req.Recipient.Name
	details.Destination.Phone = req.Recipient.Phone
	details.Destination.Email = req.Recipient.Email
	details.Packaging.Packages = itemsToPackages(req.Items, req.WeightGrams)

	apiResp, err := c.newClient(acct).CreateShipment(ctx, &ShipmentRequest{
		UniqueID:        req.Reference,
		PaymentMethodID: c.config.PaymentMethodID,
		ServiceCode:     serviceCodeFor(req.ServiceType),
		Details:         details,
		Reference:       req.OrderID,
		Instructions:    req.Notes,
	})
	if err != nil {
		c.logger.Ctx(ctx).Error("Freightcom API error", zap.Error(err))
		span.RecordError(err)
		return nil, toShipperError(err)
	}
	if len(apiResp.TrackingNumbers) == 0 {
		return nil, shipper.NewShipperError(carrierName, "NO_TRACKING_NUMBER", "Freightcom booked the shipment without a tracking number")
	}

	return shipmentResponseToShipper(apiResp), nil
}

// CancelOrder cancels a shipment with Freightcom.
func (c *Client) CancelOrder(ctx context.Context, trackingNumber string, acct *shipper.Account) error {
	ctx, span := c.tracer.Start(ctx, "freightcom.CancelOrder",
		trace.WithAttributes(attribute.String("shipment.tracking_number", trackingNumber)))
	defer span.End()

	c.logger.Ctx(ctx).Info("Cancelling Freightcom order", zap.String("tracking_number", trackingNumber))

	if _, err := c.newClient(acct).CancelShipment(ctx, trackingNumber); err != nil {
		c.logger.Ctx(ctx).Error("Freightcom API error", zap.Error(err))
		span.RecordError(err)
		return toShipperError(err)
	}
	return nil
}

// ParseWebhook verifies the hex HMAC-SHA256 signature of the raw body and decodes the event.
func (c *Client) ParseWebhook(ctx context.Context, payload shipper.WebhookPayload, acct *shipper.Account) (*shipper.WebhookEvent, error) {
	if acct == nil || acct.WebhookSecret == "" || !validSignature(payload.Body, payload.Signature, acct.WebhookSecret) {
		return nil, shipper.ErrWebhookUnauthenticated
	}

	var ev TrackingEvent
	if err := json.Unmarshal(payload.Body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", shipper.ErrMalformedWebhook, err)
	}
	if ev.TrackingNumber == "" || ev.Status == "" {
		return nil, fmt.Errorf("%w: tracking_number and status are required", shipper.ErrMalformedWebhook)
	}

	eventTime, _ := time.Parse(time.RFC3339, ev.Timestamp)
	return &shipper.WebhookEvent{
		TrackingNumber: ev.TrackingNumber,
		StatusCode:     ev.Status,
		Description:    ev.Description,
		Location:       ev.Location,
		EventTime:      eventTime,
	}, nil
}

// Sign computes the signature Freightcom attaches to a webhook body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(body []byte, signature, secret string) bool {
	expected, err := hex.DecodeString(Sign(body, secret))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// TranslateStatus maps a Freightcom tracking status onto the normalized lifecycle.
func (c *Client) TranslateStatus(code string) (shipper.ShipmentStatus, bool) {
	status, ok := statusTable[strings.ToLower(strings.TrimSpace(code))]
	return status, ok
}

// HealthCheck verifies the account's API key against Freightcom.
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
// Conversion helpers: Shipper models -> API models
// ============================================================================

func addressToLocation(addr shipper.Address) Location {
	return Location{
		Address1:   addr.Line1,
		Address2:   addr.Line2,
		City:       addr.City,
		Province:   addr.ProvinceCode,
		PostalCode: addr.PostalCode,
		Country:    addr.CountryCode,
	}
}

func shippingDetails(from, to shipper.Address, weightGrams int, declared, cod decimal.Decimal, insure bool) ShippingDetails {
	details := ShippingDetails{
		Origin:      addressToLocation(from),
		Destination: addressToLocation(to),
		Packaging: PackagingInfo{
			Type:     "package",
			Packages: []Package{{Weight: gramsToKg(weightGrams), Quantity: 1}},
		},
		DeclaredValue: declared.InexactFloat64(),
		Insurance:     insure,
	}
	if cod.IsPositive() {
		details.COD = &COD{Amount: cod.InexactFloat64(), Currency: "CAD"}
	}
	return details
}

func itemsToPackages(items []shipper.Item, totalGrams int) []Package {
	if len(items) == 0 {
		return []Package{{Weight: gramsToKg(totalGrams), Quantity: 1}}
	}
	pkgs := make([]Package, len(items))
	for i, item := range items {
		pkgs[i] = Package{
			Weight:      gramsToKg(item.WeightGrams),
			Description: item.Name,
			Quantity:    item.Quantity,
		}
	}
	return pkgs
}

func gramsToKg(g int) float64 {
	return float64(g) / 1000
}

// ============================================================================
// Conversion helpers: API models -> Shipper models
// ============================================================================

func shipmentResponseToShipper(resp *ShipmentResponse) *shipper.CreateOrderResponse {
	raw, _ := json.Marshal(resp)
	out := &shipper.CreateOrderResponse{
		TrackingNumber: resp.TrackingNumbers[0],
		CarrierOrderID: resp.ID,
		BaseFee:        decimal.NewFromFloat(resp.BaseCharge),
		CODFee:         decimal.NewFromFloat(resp.CODFee),
		InsuranceFee:   decimal.NewFromFloat(resp.InsuranceFee),
		TrackingURL:    resp.TrackingURL,
		RawResponse:    raw,
	}
	if out.BaseFee.IsZero() {
		out.BaseFee = decimal.NewFromFloat(resp.TotalCharged)
	}
	if len(resp.Labels) > 0 {
		out.LabelURL = resp.Labels[0].URL
	}
	if t := parseDate(resp.EstimatedDelivery); !t.IsZero() {
		out.EstimatedDelivery = &t
	}
	return out
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// toShipperError converts API failures so the carrier's message stays intact.
func toShipperError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		e := shipper.APIFailure(carrierName, apiErr.Code, apiErr.Message, apiErr.StatusCode)
		if apiErr.Code == "TIMEOUT" {
			e.Retryable = true
		}
		return e
	}
	return shipper.TransportFailure(carrierName, err)
}

// ============================================================================
// Mapping helpers
// ============================================================================

func mapServiceType(code string) shipper.ServiceType {
	switch strings.ToUpper(code) {
	case "EXPRESS", "PRIORITY", "OVERNIGHT":
		return shipper.ServiceExpress
	case "ECONOMY":
		return shipper.ServiceEconomy
	case "FREIGHT", "LTL":
		return shipper.ServiceFreight
	default:
		return shipper.ServiceStandard
	}
}

func serviceCodeFor(t shipper.ServiceType) string {
	switch t {
	case shipper.ServiceExpress, shipper.ServiceSameDay:
		return "EXPRESS"
	case shipper.ServiceEconomy:
		return "ECONOMY"
	case shipper.ServiceFreight:
		return "LTL"
	default:
		return "GROUND"
	}
}

var statusTable = map[string]shipper.ShipmentStatus{
	"booked":           shipper.StatusAwaitingPickup,
	"awaiting_pickup":  shipper.StatusAwaitingPickup,
	"picked_up":        shipper.StatusPickedUp,
	"in_transit":       shipper.StatusInTransit,
	"out_for_delivery": shipper.StatusOutForDelivery,
	"delivered":        shipper.StatusDelivered,
	"exception":        shipper.StatusDeliveryFailed,
	"delivery_failed":  shipper.StatusDeliveryFailed,
	"returning":        shipper.StatusReturning,
	"returned":         shipper.StatusReturned,
	"cancelled":        shipper.StatusCancelled,
}

var _ shipper.Shipper = (*Client)(nil)
