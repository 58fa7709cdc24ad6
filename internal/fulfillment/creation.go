package fulfillment

import (
	"context"
	"time"

	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CreateShipment validates the request, persists a Draft, submits it to the
// carrier and records the outcome.
//
// When the carrier fails or times out, the Draft is cancelled and a
// ProviderFailure carrying the carrier's message is returned together with
// the cancelled shipment.
func (s *Service) CreateShipment(ctx context.Context, cmd *CreateShipmentCommand) (*Shipment, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.CreateShipment",
		trace.WithAttributes(
			attribute.String("order.id", cmd.OrderID),
			attribute.String("carrier", cmd.CarrierCode),
		))
	defer span.End()

	if err := validateStruct(cmd); err != nil {
		return nil, err
	}

	route, err := s.router.Resolve(ctx, cmd.TenantID, cmd.CarrierCode)
	if err != nil {
		return nil, err
	}
	if gap := route.Config.capabilityGap(cmd.ServiceType, cmd.WeightGrams, cmd.CODAmount, cmd.RequireInsurance); gap != "" {
		return nil, validationError("%s", gap)
	}

	draft := NewDraft(cmd.TenantID, route.Config, cmd, s.now())
	if err := s.shipments.Create(ctx, draft); err != nil {
		return nil, err
	}

	log := s.logger.WithOptions(zap.Fields(
		zap.String("shipment_id", draft.ID.String()),
		zap.String("carrier", draft.CarrierCode),
		zap.String("order_id", draft.OrderID),
	)).Ctx(ctx)
	log.Info("Draft shipment persisted, submitting to carrier")

	callCtx, cancel := s.callTimeout(ctx)
	start := time.Now()
	resp, callErr := route.Adapter.CreateOrder(callCtx, draft.orderRequest(), route.Account)
	cancel()
	s.metrics.RecordRequest("create_order", draft.CarrierCode, resultLabel(callErr), time.Since(start).Seconds())

	if callErr == nil {
		callErr = draft.Submit(resp, s.now())
	}
	// The carrier has answered; its outcome is recorded even if the caller left.
	persistCtx, cancelPersist := detached(ctx)
	defer cancelPersist()

	if callErr != nil {
		span.RecordError(callErr)
		return draft, s.compensate(persistCtx, draft, callErr)
	}

	if err := s.persistTransition(persistCtx, draft, shipper.StatusDraft, "accepted by carrier"); err != nil {
		// The carrier holds an order we could not record; the reaper cancels the
		// draft later and this line is what reconciliation has to go on.
		log.Error("Carrier accepted shipment but the outcome could not be stored",
			zap.String("tracking_number", draft.TrackingNumber),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("Shipment submitted", zap.String("tracking_number", draft.TrackingNumber))
	return draft, nil
}

func (s *Service) compensate(ctx context.Context, draft *Shipment, cause error) error {
	msg := s.carrierFailureMessage(draft.CarrierCode, cause)
	log := s.logger.WithOptions(zap.Fields(
		zap.String("shipment_id", draft.ID.String()),
		zap.String("carrier", draft.CarrierCode),
	)).Ctx(ctx)
	log.Warn("Carrier rejected shipment, cancelling draft", zap.String("carrier_message", msg), zap.Error(cause))

	s.metrics.RecordError(draft.CarrierCode, errorType(cause))
	s.metrics.RecordCompensation(draft.CarrierCode, "create_failed")

	// Only the local status matters here; Cancel cannot fail on a Draft.
	draft.LastCarrierError = msg
	_ = draft.Cancel("carrier submission failed: "+msg, s.now())
	if err := s.persistTransition(ctx, draft, shipper.StatusDraft, draft.CancelReason); err != nil {
		log.Error("Failed to persist compensation, leaving draft for the reaper", zap.Error(err))
	}

	return &Error{Kind: KindProviderFailure, Message: msg, Err: cause}
}
