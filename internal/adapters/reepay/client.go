// Package reepay implements the PaymentGateway port against the Billwerk+
// (Reepay) REST API.
package reepay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stenbridge/settlement-service/internal/domain"
	"github.com/stenbridge/settlement-service/internal/domain/ports"
	pkghttp "github.com/stenbridge/settlement-service/pkg/http"
	"github.com/stenbridge/settlement-service/pkg/resilience"
)

// maxAttempts bounds retries of transient gateway failures per call
const maxAttempts = 3

// Config holds the gateway connection settings
type Config struct {
	BaseURL    string // e.g. https://api.reepay.com
	APIKey     string // private key, sent as basic-auth username
	Timeout    time.Duration
	MaxRetries int // 0 means maxAttempts
}

// Client is an HTTP client for the gateway API. Authentication is HTTP basic
// with the private API key as username and an empty password.
//
// Mutating calls carry no idempotency keys; retries are limited to transport
// errors and 5xx responses, where the request provably did not change state or
// a redelivered webhook will reconcile it.
type Client struct {
	config     Config
	httpClient *http.Client
	backoff    resilience.BackoffStrategy
	logger     *zap.Logger
}

// NewClient creates a gateway client
func NewClient(config Config, logger *zap.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), timeout),
		backoff:    resilience.DefaultExponentialBackoff(),
		logger:     logger,
	}
}

type chargeRequest struct {
	Amount int64 `json:"amount,omitempty"` // minor units; zero means full amount
}

type refundRequest struct {
	Invoice string `json:"invoice"`
	Amount  int64  `json:"amount,omitempty"`
	Text    string `json:"text,omitempty"`
}

type chargeResponse struct {
	Handle      string          `json:"handle"`
	State       string          `json:"state"`
	Transaction string          `json:"transaction"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Settled     *time.Time      `json:"settled,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorState  json.RawMessage `json:"error_state,omitempty"`
}

type refundResponse struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Invoice     string     `json:"invoice"`
	Transaction string     `json:"transaction"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Created     *time.Time `json:"created,omitempty"`
}

type cardResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Card  *struct {
		MaskedCard string `json:"masked_card"`
		CardType   string `json:"card_type"`
		ExpDate    string `json:"exp_date"` // MM-YY
	} `json:"card,omitempty"`
}

type webhookSettingsBody struct {
	URLs        []string `json:"urls"`
	Disabled    bool     `json:"disabled"`
	AlertEmails []string `json:"alert_emails,omitempty"`
}

type errorResponse struct {
	Code             int    `json:"code"`
	Error            string `json:"error"`
	Message          string `json:"message"`
	TransactionError string `json:"transaction_error"`
}

// Capture settles amount (major units) of the charge's authorization via
// POST /v1/charge/{handle}/settle.
func (c *Client) Capture(ctx context.Context, req *ports.CaptureRequest) (*ports.GatewayResult, error) {
	body := chargeRequest{Amount: domain.ToMinorUnits(req.Amount, req.Currency)}

	var resp chargeResponse
	path := fmt.Sprintf("/v1/charge/%s/settle", req.Handle)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return c.chargeResult(&resp), nil
}

// Cancel releases an unsettled authorization via POST /v1/charge/{handle}/cancel.
func (c *Client) Cancel(ctx context.Context, handle string) (*ports.GatewayResult, error) {
	var resp chargeResponse
	path := fmt.Sprintf("/v1/charge/%s/cancel", handle)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return c.chargeResult(&resp), nil
}

// Refund returns settled funds via POST /v1/refund.
func (c *Client) Refund(ctx context.Context, req *ports.RefundRequest) (*ports.GatewayResult, error) {
	body := refundRequest{
		Invoice: req.Handle,
		Amount:  domain.ToMinorUnits(req.Amount, req.Currency),
		Text:    req.Reason,
	}

	var resp refundResponse
	if err := c.do(ctx, http.MethodPost, "/v1/refund", body, &resp); err != nil {
		return nil, err
	}

	result := &ports.GatewayResult{
		Transaction: resp.Transaction,
		State:       resp.State,
		Amount:      domain.ToMajorUnits(resp.Amount, resp.Currency),
		Currency:    resp.Currency,
	}
	if resp.Created != nil {
		result.Timestamp = *resp.Created
	}
	return result, nil
}

// GetCard fetches stored-credential metadata via GET /v1/payment_method/{id}.
func (c *Client) GetCard(ctx context.Context, tokenID string) (*ports.Card, error) {
	var resp cardResponse
	path := fmt.Sprintf("/v1/payment_method/%s", tokenID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if domain.GetErrorCode(err) == domain.ErrorCodeGatewayError && isNotFound(err) {
			return nil, domain.NewDomainError(domain.ErrorCodeTokenCardNotFound, "card not found at gateway").
				WithDetail("token_id", tokenID)
		}
		return nil, err
	}

	card := &ports.Card{TokenID: resp.ID, State: resp.State}
	if resp.Card != nil {
		card.MaskedCard = resp.Card.MaskedCard
		card.CardType = resp.Card.CardType
		card.ExpMonth, card.ExpYear = parseExpDate(resp.Card.ExpDate)
	}
	return card, nil
}

// DeleteCard deactivates a stored credential via DELETE /v1/payment_method/{id}.
func (c *Client) DeleteCard(ctx context.Context, tokenID string) error {
	path := fmt.Sprintf("/v1/payment_method/%s", tokenID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetWebhookSettings reads the account webhook configuration.
func (c *Client) GetWebhookSettings(ctx context.Context) (*ports.WebhookSettings, error) {
	var resp webhookSettingsBody
	if err := c.do(ctx, http.MethodGet, "/v1/account/webhook_settings", nil, &resp); err != nil {
		return nil, err
	}
	return &ports.WebhookSettings{
		URLs:        resp.URLs,
		Disabled:    resp.Disabled,
		AlertEmails: resp.AlertEmails,
	}, nil
}

// SetWebhookSettings updates the account webhook configuration.
func (c *Client) SetWebhookSettings(ctx context.Context, settings *ports.WebhookSettings) error {
	body := webhookSettingsBody{
		URLs:        settings.URLs,
		Disabled:    settings.Disabled,
		AlertEmails: settings.AlertEmails,
	}
	return c.do(ctx, http.MethodPut, "/v1/account/webhook_settings", body, nil)
}

func (c *Client) chargeResult(resp *chargeResponse) *ports.GatewayResult {
	result := &ports.GatewayResult{
		Transaction: resp.Transaction,
		State:       resp.State,
		Amount:      domain.ToMajorUnits(resp.Amount, resp.Currency),
		Currency:    resp.Currency,
	}
	if resp.Settled != nil {
		result.Timestamp = *resp.Settled
	}
	return result
}

// do executes one API call with bounded retries. Only transport errors and
// 5xx responses are retried; 4xx responses are terminal.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	attempts := c.config.MaxRetries
	if attempts <= 0 {
		attempts = maxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff.NextDelay(attempt - 1)
			c.logger.Warn("retrying gateway request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return domain.WrapError(domain.ErrorCodeGatewayTimeout, "gateway request cancelled", ctx.Err())
			}
		}

		retryable, err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out interface{}) (retryable bool, err error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.config.APIKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, domain.WrapError(domain.ErrorCodeGatewayTimeout, "gateway request cancelled", ctx.Err())
		}
		return true, domain.WrapError(domain.ErrorCodeGatewayTimeout, "gateway request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return true, domain.WrapError(domain.ErrorCodeGatewayError, "read gateway response", err)
	}

	if resp.StatusCode >= 500 {
		return true, c.apiError(resp.StatusCode, payload)
	}
	if resp.StatusCode >= 400 {
		return false, c.apiError(resp.StatusCode, payload)
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return false, domain.WrapError(domain.ErrorCodeGatewayError, "decode gateway response", err)
		}
	}
	return false, nil
}

func (c *Client) apiError(status int, payload []byte) error {
	var apiErr errorResponse
	message := fmt.Sprintf("gateway returned status %d", status)
	if json.Unmarshal(payload, &apiErr) == nil {
		if apiErr.Message != "" {
			message = apiErr.Message
		} else if apiErr.Error != "" {
			message = apiErr.Error
		}
	}
	return domain.NewDomainError(domain.ErrorCodeGatewayError, message).
		WithDetail("status", status).
		WithDetail("transaction_error", apiErr.TransactionError)
}

func isNotFound(err error) bool {
	var derr *domain.DomainError
	if !errors.As(err, &derr) {
		return false
	}
	status, ok := derr.Details["status"].(int)
	return ok && status == http.StatusNotFound
}

// parseExpDate splits the gateway's MM-YY expiry format.
func parseExpDate(expDate string) (month, year int) {
	var mm, yy int
	if _, err := fmt.Sscanf(expDate, "%d-%d", &mm, &yy); err != nil {
		return 0, 0
	}
	if yy < 100 {
		yy += 2000
	}
	return mm, yy
}

var _ ports.PaymentGateway = (*Client)(nil)
