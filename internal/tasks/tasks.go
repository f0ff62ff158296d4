package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeSquareRefreshPayment refreshes one pending card payment from Square.
const TypeSquareRefreshPayment = "square:refresh_payment"

// SquareRefreshPayload identifies the payment to refresh.
type SquareRefreshPayload struct {
	PaymentID string `json:"payment_id"`
}

// NewSquareRefreshTask builds a refresh task. The initial delay gives Square
// time to settle the payment before the first poll.
func NewSquareRefreshTask(paymentID string, delay time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(SquareRefreshPayload{PaymentID: paymentID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	return asynq.NewTask(TypeSquareRefreshPayment, payload, opts...), nil
}
