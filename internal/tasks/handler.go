package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// PaymentRefresher is the slice of the job service the worker needs.
type PaymentRefresher interface {
	RefreshPayment(ctx context.Context, paymentID string) error
}

// RefreshHandler processes square:refresh_payment tasks.
type RefreshHandler struct {
	Jobs   PaymentRefresher
	Logger zerolog.Logger
}

// HandleSquareRefreshPayment implements asynq.HandlerFunc. Errors bubble up
// so asynq retries with backoff.
func (h RefreshHandler) HandleSquareRefreshPayment(ctx context.Context, t *asynq.Task) error {
	var payload SquareRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// Malformed payloads never succeed; skip retries.
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PaymentID == "" {
		return fmt.Errorf("empty payment id: %w", asynq.SkipRetry)
	}
	if err := h.Jobs.RefreshPayment(ctx, payload.PaymentID); err != nil {
		h.Logger.Error().Err(err).Str("payment_id", payload.PaymentID).Msg("refresh payment")
		return err
	}
	return nil
}

// Mux builds the asynq route table for the worker.
func (h RefreshHandler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSquareRefreshPayment, h.HandleSquareRefreshPayment)
	return mux
}
