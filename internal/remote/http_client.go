package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPClient talks to the remote authority over JSON. Every transport or
// server-side failure is normalized to ErrUnavailable so callers can queue.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.Named("remote.client"),
	}
}

func (c *HTTPClient) GetBalance(ctx context.Context, userID int64) (Balance, error) {
	var out Balance
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/users/%d/balance", userID), nil, &out)
	return out, err
}

func (c *HTTPClient) Deduct(ctx context.Context, userID int64, amount int64, idempotencyKey string) (Balance, error) {
	var out Balance
	body := map[string]any{"amount": amount, "idempotency_key": idempotencyKey}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/users/%d/balance/deduct", userID), body, &out)
	return out, err
}

func (c *HTTPClient) Credit(ctx context.Context, userID int64, amount int64, idempotencyKey string) (Balance, error) {
	var out Balance
	body := map[string]any{"amount": amount, "idempotency_key": idempotencyKey}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/users/%d/balance/credit", userID), body, &out)
	return out, err
}

func (c *HTTPClient) GetSubscription(ctx context.Context, userID int64) (*Subscription, error) {
	var out Subscription
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/users/%d/subscription", userID), nil, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

func (c *HTTPClient) CreateSubscription(ctx context.Context, userID int64, planID, cycle string) (*Subscription, error) {
	var out Subscription
	body := map[string]any{"plan_id": planID, "billing_cycle": cycle}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/users/%d/subscription", userID), body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CancelSubscription(ctx context.Context, userID int64, reason string) (*Subscription, error) {
	var out Subscription
	body := map[string]any{"reason": reason}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/users/%d/subscription/cancel", userID), body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateAutoRenew(ctx context.Context, userID int64, enabled bool) (*Subscription, error) {
	var out Subscription
	body := map[string]any{"auto_renew": enabled}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/users/%d/subscription/auto-renew", userID), body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreatePaymentOrder(ctx context.Context, amount int64, purchaseType string, metadata map[string]any) (PaymentOrder, error) {
	var out PaymentOrder
	body := map[string]any{"amount": amount, "type": purchaseType, "metadata": metadata}
	err := c.do(ctx, http.MethodPost, "/v1/payments/orders", body, &out)
	return out, err
}

func (c *HTTPClient) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (bool, error) {
	var out struct {
		Verified bool `json:"verified"`
	}
	body := map[string]any{
		"order_id":   orderID,
		"payment_id": paymentID,
		"signature":  signature,
	}
	if err := c.do(ctx, http.MethodPost, "/v1/payments/verify", body, &out); err != nil {
		return false, err
	}
	return out.Verified, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug("remote call failed", zap.String("path", path), zap.Error(err))
		return ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return ErrUnavailable
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}
