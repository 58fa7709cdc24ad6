package fulfillment

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// CreateShipmentCommand asks for a new shipment for one order.
type CreateShipmentCommand struct {
	TenantID         uuid.UUID           `json:"tenantId" validate:"required"`
	OrderID          string              `json:"orderId" validate:"required,max=64"`
	CarrierCode      string              `json:"carrierCode" validate:"required"`
	ServiceType      shipper.ServiceType `json:"serviceType" validate:"omitempty,oneof=standard express economy same_day freight"`
	PickupAddress    shipper.Address     `json:"pickupAddress"`
	DeliveryAddress  shipper.Address     `json:"deliveryAddress"`
	Sender           shipper.Contact     `json:"sender"`
	Recipient        shipper.Contact     `json:"recipient"`
	Items            []shipper.Item      `json:"items" validate:"required,min=1,dive"`
	WeightGrams      int                 `json:"weightGrams" validate:"gt=0"`
	DeclaredValue    decimal.Decimal     `json:"declaredValue" validate:"nonnegative"`
	CODAmount        decimal.Decimal     `json:"codAmount" validate:"nonnegative"`
	IsFreeship       bool                `json:"isFreeship"`
	RequireInsurance bool                `json:"requireInsurance"`
	Notes            string              `json:"notes" validate:"max=500"`
}

// CancelShipmentCommand asks to cancel a shipment, by tracking number or,
// for a shipment that never reached the carrier, by id.
type CancelShipmentCommand struct {
	TrackingNumber string    `json:"trackingNumber" validate:"required_without=ShipmentID"`
	ShipmentID     uuid.UUID `json:"shipmentId"`
	Reason         string    `json:"reason" validate:"max=500"`
}

// QuoteRatesCommand asks every eligible provider of a tenant for prices.
type QuoteRatesCommand struct {
	TenantID         uuid.UUID           `json:"tenantId" validate:"required"`
	PickupAddress    shipper.Address     `json:"pickupAddress"`
	DeliveryAddress  shipper.Address     `json:"deliveryAddress"`
	WeightGrams      int                 `json:"weightGrams" validate:"gt=0"`
	DeclaredValue    decimal.Decimal     `json:"declaredValue" validate:"nonnegative"`
	CODAmount        decimal.Decimal     `json:"codAmount" validate:"nonnegative"`
	RequireInsurance bool                `json:"requireInsurance"`
	ServiceType      shipper.ServiceType `json:"serviceType" validate:"omitempty,oneof=standard express economy same_day freight"`
	Policy           RatePolicy          `json:"policy" validate:"omitempty,oneof=cheapest fastest"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("nonnegative", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return !d.IsNegative()
	})
	return v
}

// validateStruct runs tag validation and folds failures into one Validation error.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldPath(fe)+": "+validationMessage(fe))
	}
	return &Error{Kind: KindValidation, Message: strings.Join(msgs, "; "), Err: err}
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "email":
		return "invalid email format"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "nonnegative":
		return "must not be negative"
	default:
		return "invalid value"
	}
}
