// Package gateway implements the HTTP client for the external payment
// provider and its webhook signature primitive.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/errs"
	"github.com/edupay/payment-core/internal/interfaces"
	"github.com/edupay/payment-core/internal/models"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ interfaces.Gateway = (*Client)(nil)

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

type createIntentBody struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentMethod string            `json:"payment_method"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type createRefundBody struct {
	PaymentIntent string `json:"payment_intent"`
	Amount        int64  `json:"amount,omitempty"`
}

type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req interfaces.CreateIntentRequest) (*models.PaymentIntent, error) {
	body := createIntentBody{
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethodID,
		Metadata:      req.Metadata,
	}

	var intent models.PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", body, req.IdempotencyKey, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+id, nil, "", &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *Client) CreateRefund(ctx context.Context, gatewayRef string, amount int64) (*models.Refund, error) {
	body := createRefundBody{
		PaymentIntent: gatewayRef,
		Amount:        amount,
	}

	var refund models.Refund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", body, "", &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errs.Internal(fmt.Errorf("marshal gateway request: %w", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errs.Internal(fmt.Errorf("build gateway request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		e := errs.Classify("api_connection_error")
		e.Cause = err
		return e
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		e := errs.Classify("api_connection_error")
		e.Cause = err
		return e
	}

	if resp.StatusCode >= 400 {
		var apiErr apiErrorBody
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error.Code == "" {
			c.logger.Error("gateway returned undecodable error",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
			)
			e := errs.Classify("unknown")
			e.Cause = fmt.Errorf("gateway status %d", resp.StatusCode)
			return e
		}
		e := errs.Classify(apiErr.Error.Code)
		e.Cause = fmt.Errorf("gateway: %s", apiErr.Error.Message)
		return e
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Internal(fmt.Errorf("decode gateway response: %w", err))
	}
	return nil
}
