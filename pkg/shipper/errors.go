package shipper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ShipperError represents an error from a shipping carrier.
type ShipperError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ShipperError.
func (e *ShipperError) Is(target error) bool {
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// Sentinel errors for common shipping scenarios.
var (
	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")

	// ErrWebhookUnauthenticated indicates the callback signature does not match the account secret.
	ErrWebhookUnauthenticated = errors.New("webhook signature mismatch")

	// ErrMalformedWebhook indicates the callback body could not be decoded.
	ErrMalformedWebhook = errors.New("malformed webhook payload")
)

// CodeTransport marks failures that happened before the carrier answered.
const CodeTransport = "TRANSPORT"

// APIFailure builds the error for a carrier answer that was not a success.
// Throttling and server-side statuses are retryable; everything else is a rejection.
func APIFailure(carrier, code, message string, httpStatus int) *ShipperError {
	return NewShipperError(carrier, code, message).
		WithStatusCode(httpStatus).
		WithRetryable(httpStatus == http.StatusTooManyRequests || httpStatus >= http.StatusInternalServerError)
}

// TransportFailure wraps an error raised while talking to the carrier.
// Context errors are returned unchanged so callers can tell a timeout from a rejection.
func TransportFailure(carrier string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return NewShipperError(carrier, CodeTransport, err.Error()).
		WithCause(err).
		WithRetryable(true)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}

// CarrierMessage returns the message the carrier reported, without local decoration.
// Errors that did not come from a carrier are rendered as-is.
func CarrierMessage(err error) string {
	if err == nil {
		return ""
	}
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) && shipperErr.Message != "" {
		return shipperErr.Message
	}
	return err.Error()
}
