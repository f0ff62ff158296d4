package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotFound indicates Square has no record for the requested identifier.
var ErrNotFound = errors.New("square: not found")

// Payment is the subset of the Square payment object the ledger cares about.
type Payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
}

// Refund is the subset of the Square refund object the ledger cares about.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// Client calls the Square Connect API for payment and refund lookups.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

// NewClient builds a Square client with traced outbound HTTP.
func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		AccessToken: strings.TrimSpace(accessToken),
		HTTPClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetPayment fetches the current state of a Square payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	var envelope struct {
		Payment Payment `json:"payment"`
	}
	if err := c.get(ctx, "/v2/payments/"+paymentID, &envelope); err != nil {
		return Payment{}, err
	}
	return envelope.Payment, nil
}

// GetRefund fetches the current state of a Square refund.
func (c *Client) GetRefund(ctx context.Context, refundID string) (Refund, error) {
	var envelope struct {
		Refund Refund `json:"refund"`
	}
	if err := c.get(ctx, "/v2/refunds/"+refundID, &envelope); err != nil {
		return Refund{}, err
	}
	return envelope.Refund, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.BaseURL == "" || c.AccessToken == "" {
		return errors.New("square: client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("square: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("square: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("square: unexpected status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("square: decode response: %w", err)
	}
	return nil
}
