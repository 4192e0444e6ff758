/**
 * @description
 * This package provides a client for the Xsolla merchant APIs. It encapsulates
 * the two token-issuance calls (Pay Station admin token for one-time items,
 * subscription token) and the transaction-report lookup, all authenticated
 * with the merchant's basic-auth credentials.
 *
 * Token issuance is a synchronous, user-facing call path: the client never
 * retries, honors context cancellation, and normalizes provider failures into
 * GatewayError so callers can mirror Xsolla's status and message verbatim.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http, time: Standard Go libraries.
 * - internal/domain: PurchaseIntent and ProviderToken models.
 */
package xsollaclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/questforge/payment-relay-service/internal/domain"
)

const (
	defaultStoreBaseURL = "https://store.xsolla.com"
	defaultAPIBaseURL   = "https://api.xsolla.com"

	// Pay Station UI theme ids documented by Xsolla.
	themeDark = "63295aab2e47fab76f7708e3"
)

// GatewayError is a normalized provider failure. Status and Message mirror
// what Xsolla returned; Unavailable marks network-level failures (timeout,
// connection refused) where no provider response exists.
type GatewayError struct {
	Status      int
	Code        string
	Message     string
	Unavailable bool
}

func (e *GatewayError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("xsolla unavailable: %s", e.Message)
	}
	return fmt.Sprintf("xsolla rejected request: status=%d message=%s", e.Status, e.Message)
}

// Client is a client for the Xsolla merchant APIs.
type Client struct {
	storeBaseURL string
	apiBaseURL   string
	merchantID   string
	apiKey       string
	projectID    string
	httpClient   *http.Client
}

// Option configures optional Client settings.
type Option func(*Client)

// WithBaseURLs overrides the store and merchant API endpoints, primarily for
// tests pointing at a local server.
func WithBaseURLs(storeBase, apiBase string) Option {
	return func(c *Client) {
		if storeBase != "" {
			c.storeBaseURL = strings.TrimSuffix(storeBase, "/")
		}
		if apiBase != "" {
			c.apiBaseURL = strings.TrimSuffix(apiBase, "/")
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new Xsolla API client.
func NewClient(merchantID, apiKey, projectID string, opts ...Option) *Client {
	c := &Client{
		storeBaseURL: defaultStoreBaseURL,
		apiBaseURL:   defaultAPIBaseURL,
		merchantID:   merchantID,
		apiKey:       apiKey,
		projectID:    projectID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePaymentToken requests a one-time payment token for the intent,
// branching on purchase kind. The returned token carries the raw provider
// fields plus the sandbox flag the token was issued under.
func (c *Client) CreatePaymentToken(ctx context.Context, intent domain.PurchaseIntent) (*domain.ProviderToken, error) {
	var (
		url  string
		body any
	)

	switch intent.Kind {
	case domain.PurchaseSubscription:
		url = fmt.Sprintf("%s/merchant/v2/merchants/%s/token", c.apiBaseURL, c.merchantID)
		body = c.subscriptionTokenBody(intent)
	case domain.PurchaseOneTimeItem:
		url = fmt.Sprintf("%s/api/v3/project/%s/admin/payment/token", c.storeBaseURL, c.projectID)
		body = c.itemTokenBody(intent)
	default:
		return nil, fmt.Errorf("unsupported purchase kind %q", intent.Kind)
	}

	raw, status, requestID, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}

	return &domain.ProviderToken{
		Status:    status,
		Sandbox:   intent.Sandbox,
		RequestID: requestID,
		Fields:    raw,
	}, nil
}

// GetInvoice fetches the transaction details report for an invoice id. The
// provider's status code is returned alongside the raw payload so the caller
// can mirror it.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (json.RawMessage, int, error) {
	url := fmt.Sprintf("%s/merchant/v2/merchants/%s/reports/transactions/%s/details", c.apiBaseURL, c.merchantID, invoiceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", c.basicAuth())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &GatewayError{Unavailable: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &GatewayError{Unavailable: true, Message: err.Error()}
	}
	return raw, resp.StatusCode, nil
}

// itemTokenBody builds the admin payment token request for a one-time item.
// Shape follows the Shop Builder admin-create-payment-token operation.
func (c *Client) itemTokenBody(intent domain.PurchaseIntent) map[string]any {
	quantity := intent.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	return map[string]any{
		"user": map[string]any{
			"id":    map[string]any{"value": intent.UserID},
			"name":  map[string]any{"value": intent.Name},
			"email": map[string]any{"value": intent.Email},
			// country.value selects the order currency; allow_modify lets
			// the buyer correct it on the hosted page.
			"country": map[string]any{"value": intent.Country, "allow_modify": true},
		},
		"purchase": map[string]any{
			"items": []map[string]any{
				{"sku": intent.SKU, "quantity": quantity},
			},
		},
		"sandbox": intent.Sandbox,
		"settings": map[string]any{
			"language":   "en",
			"currency":   "USD",
			"return_url": "http://localhost:2567/",
			"ui": map[string]any{
				"theme": themeDark,
			},
		},
	}
}

// subscriptionTokenBody builds the subscriptions token request.
func (c *Client) subscriptionTokenBody(intent domain.PurchaseIntent) map[string]any {
	mode := "production"
	if intent.Sandbox {
		mode = "sandbox"
	}

	return map[string]any{
		"user": map[string]any{
			"id":      map[string]any{"value": intent.UserID, "hidden": true},
			"name":    map[string]any{"value": intent.Name, "hidden": false},
			"email":   map[string]any{"value": intent.Email},
			"country": map[string]any{"value": intent.Country, "allow_modify": true},
		},
		"purchase": map[string]any{
			"subscription": map[string]any{
				"plan_id": intent.PlanID,
			},
		},
		"settings": map[string]any{
			"project_id": c.projectIDNumber(),
			"language":   "en",
			"mode":       mode,
			"currency":   "USD",
		},
	}
}

func (c *Client) projectIDNumber() any {
	var n int64
	if _, err := fmt.Sscanf(c.projectID, "%d", &n); err == nil {
		return n
	}
	return c.projectID
}

func (c *Client) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.merchantID+":"+c.apiKey))
}

// do performs an authenticated JSON request and normalizes failures. On a
// non-2xx status the response body is parsed as structured JSON when the
// content type indicates JSON, otherwise treated as opaque text.
func (c *Client) do(ctx context.Context, method, url string, body any) (json.RawMessage, int, string, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.basicAuth())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, 0, "", err
		}
		return nil, 0, "", &GatewayError{Unavailable: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", &GatewayError{Unavailable: true, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gw := &GatewayError{Status: resp.StatusCode}
		mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if strings.Contains(mediaType, "json") {
			gw.Code, gw.Message = extractErrorMessage(respBody)
		} else {
			gw.Message = strings.TrimSpace(string(respBody))
		}
		if gw.Message == "" {
			gw.Message = http.StatusText(resp.StatusCode)
		}
		log.Printf("level=warn component=xsolla_client msg=\"provider rejected request\" method=%s url=%s status=%d message=%q", method, url, resp.StatusCode, gw.Message)
		return nil, resp.StatusCode, "", gw
	}

	return respBody, resp.StatusCode, resp.Header.Get("X-Request-Id"), nil
}

// extractErrorMessage digs the best human-readable message out of the
// provider's error body. Xsolla uses several shapes across its APIs.
func extractErrorMessage(body []byte) (code, message string) {
	var payload struct {
		ErrorMessageExtended string `json:"errorMessageExtended"`
		ExtendedMessage      string `json:"extended_message"`
		Message              string `json:"message"`
		Error                struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", strings.TrimSpace(string(body))
	}

	code = payload.Error.Code
	switch {
	case payload.ErrorMessageExtended != "":
		message = payload.ErrorMessageExtended
	case payload.ExtendedMessage != "":
		message = payload.ExtendedMessage
	case payload.Message != "":
		message = payload.Message
	case payload.Error.Description != "":
		message = payload.Error.Description
	}
	return code, message
}
