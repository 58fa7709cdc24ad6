package graphql

import (
	"context"

	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Resolver is the root resolver for the admin schema.
// It holds dependencies needed by all resolvers.
type Resolver struct {
	Service *fulfillment.Service
	Logger  *otelzap.Logger
}

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(svc *fulfillment.Service, logger *otelzap.Logger) *Resolver {
	return &Resolver{
		Service: svc,
		Logger:  logger,
	}
}

// Query returns the query resolver.
func (r *Resolver) Query() *QueryResolver {
	return &QueryResolver{r}
}

// Mutation returns the mutation resolver.
func (r *Resolver) Mutation() *MutationResolver {
	return &MutationResolver{r}
}

// QueryResolver serves read operations.
type QueryResolver struct{ *Resolver }

// MutationResolver serves write operations.
type MutationResolver struct{ *Resolver }

// CreateShipment creates and submits a shipment. On a carrier failure the
// cancelled shipment is returned together with the error.
func (r *MutationResolver) CreateShipment(ctx context.Context, input fulfillment.CreateShipmentCommand) (*Shipment, error) {
	sh, err := r.Service.CreateShipment(ctx, &input)
	if err != nil {
		r.Logger.Ctx(ctx).Info("createShipment failed",
			zap.String("order_id", input.OrderID),
			zap.String("carrier", input.CarrierCode),
			zap.String("kind", string(fulfillment.KindOf(err))),
			zap.Error(err),
		)
	}
	return shipmentToGraphQL(sh), err
}

// CancelShipment cancels a shipment.
func (r *MutationResolver) CancelShipment(ctx context.Context, input fulfillment.CancelShipmentCommand) (*CancelResult, error) {
	res, err := r.Service.CancelShipment(ctx, &input)
	if err != nil {
		return nil, err
	}
	return &CancelResult{
		Shipment:         shipmentToGraphQL(res.Shipment),
		CarrierConfirmed: res.CarrierConfirmed,
		CarrierError:     res.CarrierError,
	}, nil
}

// RequeueWebhook sends a parked webhook back to the sweep.
func (r *MutationResolver) RequeueWebhook(ctx context.Context, id string) (*fulfillment.WebhookLogEntry, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	return r.Service.RequeueWebhook(ctx, uid)
}

// ActiveProviders lists the tenant's active providers.
func (r *QueryResolver) ActiveProviders(ctx context.Context, tenantID string) ([]fulfillment.ProviderView, error) {
	uid, err := parseID("tenantId", tenantID)
	if err != nil {
		return nil, err
	}
	views, err := r.Service.Providers().ListActive(ctx, uid)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []fulfillment.ProviderView{}
	}
	return views, nil
}

// QuoteRates asks the tenant's providers for prices.
func (r *QueryResolver) QuoteRates(ctx context.Context, input fulfillment.QuoteRatesCommand) (*Quote, error) {
	q, err := r.Service.QuoteRates(ctx, &input)
	if err != nil {
		return nil, err
	}
	return quoteToGraphQL(q), nil
}

// Shipment returns a shipment by id.
func (r *QueryResolver) Shipment(ctx context.Context, id string) (*Shipment, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	sh, err := r.Service.GetShipment(ctx, uid)
	if err != nil {
		return nil, err
	}
	return shipmentToGraphQL(sh), nil
}

// WebhookLogs lists the calls logged for a tracking number.
func (r *QueryResolver) WebhookLogs(ctx context.Context, trackingNumber string) ([]*fulfillment.WebhookLogEntry, error) {
	entries, err := r.Service.WebhookLogsByTracking(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*fulfillment.WebhookLogEntry{}
	}
	return entries, nil
}

// ParkedWebhooks lists entries awaiting manual review.
func (r *QueryResolver) ParkedWebhooks(ctx context.Context, limit int) ([]*fulfillment.WebhookLogEntry, error) {
	entries, err := r.Service.ParkedWebhooks(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*fulfillment.WebhookLogEntry{}
	}
	return entries, nil
}
