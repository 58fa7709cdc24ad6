package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultCancelReason = "cancelled by operator"
	// localCancelAttempts bounds re-reads when a concurrent writer bumps the version.
	localCancelAttempts = 3
)

// CancelResult reports a cancellation. The local cancel always happened;
// CarrierError holds what the carrier said when it did not confirm.
type CancelResult struct {
	Shipment         *Shipment
	CarrierConfirmed bool
	CarrierError     string
}

// CancelShipment cancels a shipment locally and, when it was submitted, asks
// the carrier to cancel it too. A carrier refusal is recorded, not returned.
func (s *Service) CancelShipment(ctx context.Context, cmd *CancelShipmentCommand) (*CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.CancelShipment",
		trace.WithAttributes(attribute.String("tracking_number", cmd.TrackingNumber)))
	defer span.End()

	if err := validateStruct(cmd); err != nil {
		return nil, err
	}

	sh, err := s.loadForCancel(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if sh.IsTerminal() {
		return nil, conflictError("shipment %s is %s and cannot be cancelled", sh.ID, sh.Status)
	}

	result := &CancelResult{}
	if sh.Submitted() {
		if remoteErr := s.cancelRemote(ctx, sh); remoteErr != nil {
			result.CarrierError = s.carrierFailureMessage(sh.CarrierCode, remoteErr)
			s.metrics.RecordCancelDiscrepancy(sh.CarrierCode)
			s.logger.Ctx(ctx).Warn("Carrier did not confirm cancellation, cancelling locally",
				zap.String("shipment_id", sh.ID.String()),
				zap.String("tracking_number", sh.TrackingNumber),
				zap.String("carrier", sh.CarrierCode),
				zap.String("carrier_message", result.CarrierError),
				zap.Error(remoteErr),
			)
		} else {
			result.CarrierConfirmed = true
		}
	}

	reason := cmd.Reason
	if reason == "" {
		reason = defaultCancelReason
	}

	// The carrier may already have cancelled; the local record follows regardless of the caller.
	persistCtx, cancelPersist := detached(ctx)
	defer cancelPersist()

	for attempt := 1; ; attempt++ {
		from := sh.Status
		if result.CarrierError != "" {
			sh.LastCarrierError = result.CarrierError
		}
		if err := sh.Cancel(reason, s.now()); err != nil {
			return nil, err
		}
		err := s.persistTransition(persistCtx, sh, from, reason)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflict) || attempt == localCancelAttempts {
			return nil, err
		}
		// A webhook moved the row underneath us; cancel the fresh copy.
		if sh, err = s.shipments.Get(persistCtx, sh.ID); err != nil {
			return nil, err
		}
		if sh.IsTerminal() {
			return nil, conflictError("shipment %s became %s and cannot be cancelled", sh.ID, sh.Status)
		}
	}

	s.logger.Ctx(ctx).Info("Shipment cancelled",
		zap.String("shipment_id", sh.ID.String()),
		zap.String("tracking_number", sh.TrackingNumber),
		zap.Bool("carrier_confirmed", result.CarrierConfirmed),
	)
	result.Shipment = sh
	return result, nil
}

func (s *Service) loadForCancel(ctx context.Context, cmd *CancelShipmentCommand) (*Shipment, error) {
	if cmd.TrackingNumber != "" {
		return s.shipments.FindByTrackingNumber(ctx, cmd.TrackingNumber)
	}
	return s.shipments.Get(ctx, cmd.ShipmentID)
}

func (s *Service) cancelRemote(ctx context.Context, sh *Shipment) error {
	route, err := s.router.ResolveProvider(ctx, sh.TenantID, sh.CarrierCode, sh.ProviderID)
	if err != nil {
		return err
	}
	callCtx, cancel := s.callTimeout(ctx)
	defer cancel()

	start := time.Now()
	err = route.Adapter.CancelOrder(callCtx, sh.TrackingNumber, route.Account)
	s.metrics.RecordRequest("cancel_order", sh.CarrierCode, resultLabel(err), time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(sh.CarrierCode, errorType(err))
	}
	return err
}

// GetShipment returns a shipment by id.
func (s *Service) GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error) {
	return s.shipments.Get(ctx, id)
}

// ActiveShipmentForOrder returns the order's non-cancelled shipment on the
// carrier, or a NotFound error when there is none.
func (s *Service) ActiveShipmentForOrder(ctx context.Context, tenantID uuid.UUID, orderID, carrierCode string) (*Shipment, error) {
	return s.shipments.FindActiveByOrder(ctx, tenantID, orderID, carrierCode)
}

// FindByTrackingNumber returns the shipment the carrier knows by trackingNumber.
func (s *Service) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*Shipment, error) {
	return s.shipments.FindByTrackingNumber(ctx, trackingNumber)
}
