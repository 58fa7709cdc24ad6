package freightcom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration // Interval between polling for async operations
	PollTimeout  time.Duration // Max time to wait for async operations
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 500 * time.Millisecond
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout == 0 {
		pollTimeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}
}

// GetRates fetches shipping rates from the Freightcom API.
// This is an async operation: POST /rate returns a request_id,
// then we poll GET /rate/{request_id} until complete.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/rate", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var rateReq RateRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&rateReq); err != nil {
		return nil, fmt.Errorf("failed to decode rate request response: %w", err)
	}

	return c.pollRates(ctx, rateReq.RequestID)
}

// pollRates polls the rate endpoint until results are ready or timeout.
func (c *HTTPAPIClient) pollRates(ctx context.Context, requestID string) (*RatesResponse, error) {
	deadline := time.Now().Add(c.pollTimeout)
	path := "/rate/" + url.PathEscape(requestID)

	for {
		if time.Now().After(deadline) {
			return nil, &APIError{Code: "TIMEOUT", Message: "Rate request timed out waiting for results"}
		}

		var result RatesResponse
		if err := c.getJSON(ctx, path, &result); err != nil {
			return nil, err
		}

		switch result.Status {
		case "complete":
			return &result, nil
		case "error":
			return nil, &APIError{Code: "RATE_ERROR", Message: result.Error}
		case "pending":
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
		default:
			return nil, &APIError{Code: "UNKNOWN_STATUS", Message: fmt.Sprintf("Unknown rate status: %s", result.Status)}
		}
	}
}

// CreateShipment creates a new shipment via the Freightcom API.
// POST /shipment - may return 202 Accepted for async processing.
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/shipment", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return nil, c.parseError(resp)
	}

	var result ShipmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode shipment response: %w", err)
	}

	if result.Status == "pending" || result.Status == "processing" {
		return c.pollShipment(ctx, result.ID)
	}

	return &result, nil
}

// pollShipment polls the shipment endpoint until it's booked.
func (c *HTTPAPIClient) pollShipment(ctx context.Context, shipmentID string) (*ShipmentResponse, error) {
	deadline := time.Now().Add(c.pollTimeout)
	path := "/shipment/" + url.PathEscape(shipmentID)

	for {
		if time.Now().After(deadline) {
			return nil, &APIError{Code: "TIMEOUT", Message: "Shipment creation timed out"}
		}

		var result ShipmentResponse
		if err := c.getJSON(ctx, path, &result); err != nil {
			return nil, err
		}

		switch result.Status {
		case "booked", "confirmed", "complete":
			return &result, nil
		case "error", "failed", "rejected":
			return nil, &APIError{Code: "SHIPMENT_ERROR", Message: fmt.Sprintf("Shipment failed with status: %s", result.Status)}
		case "pending", "processing":
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
		default:
			return &result, nil
		}
	}
}

// CancelShipment cancels a shipment via the Freightcom API.
// DELETE /shipment/{tracking_number}
func (c *HTTPAPIClient) CancelShipment(ctx context.Context, trackingNumber string) (*CancelResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/shipment/"+url.PathEscape(trackingNumber), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, c.parseError(resp)
	}

	result := CancelResponse{TrackingNumber: trackingNumber, Status: "cancelled"}
	if resp.StatusCode == http.StatusOK {
		// An OK with an unreadable body still means the cancel went through.
		_ = json.NewDecoder(resp.Body).Decode(&result)
	}
	return &result, nil
}

// Ping lists payment methods, which requires a valid API key.
func (c *HTTPAPIClient) Ping(ctx context.Context) error {
	var methods []json.RawMessage
	return c.getJSON(ctx, "/finance/payment-methods", &methods)
}

func (c *HTTPAPIClient) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *HTTPAPIClient) sleep(ctx context.Context) error {
	t := time.NewTimer(c.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("User-Agent", "tournevent-fulfillment/1.0")

	return c.httpClient.Do(req)
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	var simpleErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &simpleErr); err == nil {
		if simpleErr.Error != "" {
			msg = simpleErr.Error
		} else if simpleErr.Message != "" {
			msg = simpleErr.Message
		}
	}

	return &APIError{
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    msg,
		StatusCode: resp.StatusCode,
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
