package ghn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	token      string
	shopID     string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	Token   string
	ShopID  string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		shopID:     cfg.ShopID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateOrder submits a shipping order.
func (c *HTTPAPIClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderData, error) {
	var env Envelope[OrderData]
	if err := c.call(ctx, "/v2/shipping-order/create", req, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// CancelOrders cancels orders that have not been picked up yet.
func (c *HTTPAPIClient) CancelOrders(ctx context.Context, orderCodes []string) ([]CancelResult, error) {
	body := map[string][]string{"order_codes": orderCodes}
	var env Envelope[[]CancelResult]
	if err := c.call(ctx, "/v2/switch-status/cancel", body, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CalculateFee quotes a parcel.
func (c *HTTPAPIClient) CalculateFee(ctx context.Context, req *FeeRequest) (*FeeData, error) {
	var env Envelope[FeeData]
	if err := c.call(ctx, "/v2/shipping-order/fee", req, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Ping lists the token's shops.
func (c *HTTPAPIClient) Ping(ctx context.Context) error {
	var env Envelope[json.RawMessage]
	return c.call(ctx, "/v2/shop/all", map[string]int{"offset": 0, "limit": 1}, &env)
}

// call posts body to path and decodes the envelope into out.
// GHN reports failures both as non-2xx statuses and as code != 200 in the envelope.
func (c *HTTPAPIClient) call(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Token", c.token)
	if c.shopID != "" {
		req.Header.Set("ShopId", c.shopID)
	}
	req.Header.Set("User-Agent", "tournevent-fulfillment/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	var head struct {
		Code             int    `json:"code"`
		Message          string `json:"message"`
		CodeMessageValue string `json:"code_message_value"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Code: resp.StatusCode, Message: string(raw), StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	if resp.StatusCode >= 300 || head.Code != http.StatusOK {
		msg := head.CodeMessageValue
		if msg == "" {
			msg = head.Message
		}
		if msg == "" {
			msg = "HTTP " + strconv.Itoa(resp.StatusCode)
		}
		return &APIError{Code: head.Code, Message: msg, StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
