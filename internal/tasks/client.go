package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks. Implements job.Enqueuer.
type Client struct {
	inner        *asynq.Client
	RefreshDelay time.Duration
}

// NewClient builds an asynq client from a Redis URL.
func NewClient(redisURL string, refreshDelay time.Duration) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{inner: asynq.NewClient(opt), RefreshDelay: refreshDelay}, nil
}

// EnqueuePaymentRefresh schedules a Square status poll for the payment.
func (c *Client) EnqueuePaymentRefresh(ctx context.Context, paymentID string) error {
	task, err := NewSquareRefreshTask(paymentID, c.RefreshDelay)
	if err != nil {
		return err
	}
	if _, err := c.inner.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeSquareRefreshPayment, err)
	}
	return nil
}

// Close releases the underlying asynq client.
func (c *Client) Close() error {
	return c.inner.Close()
}
