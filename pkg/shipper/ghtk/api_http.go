package ghtk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	token      string
	partner    string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL     string
	Token       string
	PartnerCode string // Sent as X-Client-Source
	Timeout     time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		partner: cfg.PartnerCode,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateOrder submits an order. GHTK answers 200 with success=false on business rejections.
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/services/shipment/order/?ver=1.5", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	if !result.Success {
		code := "ORDER_REJECTED"
		if result.Error != nil && result.Error.Code != "" {
			code = result.Error.Code
		}
		return nil, &APIError{Code: code, Message: result.Message, StatusCode: resp.StatusCode}
	}

	return &result, nil
}

// CancelOrder cancels an order by label.
func (c *HTTPAPIClient) CancelOrder(ctx context.Context, label string) (*CancelResponse, error) {
	path := "/services/shipment/cancel/" + url.PathEscape(label)

	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result CancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode cancel response: %w", err)
	}

	if !result.Success {
		return nil, &APIError{Code: "CANCEL_REJECTED", Message: result.Message, StatusCode: resp.StatusCode}
	}

	return &result, nil
}

// GetFee quotes the delivery fee.
func (c *HTTPAPIClient) GetFee(ctx context.Context, req *FeeRequest) (*FeeResponse, error) {
	q := url.Values{}
	q.Set("pick_province", req.PickProvince)
	q.Set("pick_district", req.PickDistrict)
	q.Set("province", req.Province)
	q.Set("district", req.District)
	q.Set("weight", strconv.Itoa(req.WeightGrams))
	q.Set("value", strconv.FormatInt(req.Value, 10))
	if req.Transport != "" {
		q.Set("transport", req.Transport)
	}
	if req.DeliverOption != "" {
		q.Set("deliver_option", req.DeliverOption)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/services/shipment/fee?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result FeeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode fee response: %w", err)
	}

	if !result.Success {
		return nil, &APIError{Code: "FEE_REJECTED", Message: result.Message, StatusCode: resp.StatusCode}
	}

	return &result, nil
}

// Ping checks that the token is accepted.
func (c *HTTPAPIClient) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/services/authenticated", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
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
	req.Header.Set("Token", c.token)
	if c.partner != "" {
		req.Header.Set("X-Client-Source", c.partner)
	}
	req.Header.Set("User-Agent", "tournevent-fulfillment/1.0")

	return c.httpClient.Do(req)
}

// parseError extracts error information from an HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var simpleErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &simpleErr); err == nil && simpleErr.Message != "" {
		return &APIError{
			Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:    simpleErr.Message,
			StatusCode: resp.StatusCode,
		}
	}

	return &APIError{
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    string(body),
		StatusCode: resp.StatusCode,
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
