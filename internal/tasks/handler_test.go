package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubRefresher struct {
	ids []string
	err error
}

func (s *stubRefresher) RefreshPayment(_ context.Context, paymentID string) error {
	s.ids = append(s.ids, paymentID)
	return s.err
}

func TestHandleSquareRefreshPayment(t *testing.T) {
	refresher := &stubRefresher{}
	handler := RefreshHandler{Jobs: refresher}

	task, err := NewSquareRefreshTask("pay-1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, TypeSquareRefreshPayment, task.Type())

	require.NoError(t, handler.HandleSquareRefreshPayment(context.Background(), task))
	require.Equal(t, []string{"pay-1"}, refresher.ids)
}

func TestHandleSquareRefreshPaymentPropagatesError(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("square down")}
	handler := RefreshHandler{Jobs: refresher}

	task, err := NewSquareRefreshTask("pay-2", 0)
	require.NoError(t, err)
	err = handler.HandleSquareRefreshPayment(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry), "transient failures must stay retryable")
}

func TestHandleSquareRefreshPaymentSkipsMalformed(t *testing.T) {
	handler := RefreshHandler{Jobs: &stubRefresher{}}
	err := handler.HandleSquareRefreshPayment(context.Background(),
		asynq.NewTask(TypeSquareRefreshPayment, []byte("{")))
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSquareRefreshPaymentRejectsEmptyID(t *testing.T) {
	handler := RefreshHandler{Jobs: &stubRefresher{}}
	err := handler.HandleSquareRefreshPayment(context.Background(),
		asynq.NewTask(TypeSquareRefreshPayment, []byte(`{"payment_id":""}`)))
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}
