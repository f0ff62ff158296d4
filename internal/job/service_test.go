package job

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/towdesk/backoffice-api/internal/billing"
	"github.com/towdesk/backoffice-api/internal/common"
	"github.com/towdesk/backoffice-api/internal/ledger"
	"github.com/towdesk/backoffice-api/internal/square"
)

type stubStore struct {
	jobs        map[string]Job
	payments    map[string][]ledger.Payment
	nextID      int
	nextReceipt int64
	insertErr   error
}

func newStubStore() *stubStore {
	return &stubStore{
		jobs:     map[string]Job{},
		payments: map[string][]ledger.Payment{},
	}
}

func (s *stubStore) CreateJob(_ context.Context, j Job) (Job, error) {
	s.nextID++
	j.ID = fmt.Sprintf("job-%d", s.nextID)
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	s.jobs[j.ID] = j
	return j, nil
}

func (s *stubStore) GetJob(_ context.Context, id string) (Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (s *stubStore) ListJobs(_ context.Context, limit, offset int) ([]Job, int64, error) {
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, int64(len(out)), nil
}

func (s *stubStore) UpdateJob(_ context.Context, j Job) (Job, error) {
	if _, ok := s.jobs[j.ID]; !ok {
		return Job{}, ErrNotFound
	}
	j.UpdatedAt = time.Now()
	s.jobs[j.ID] = j
	return j, nil
}

func (s *stubStore) DeleteJob(_ context.Context, id string) error {
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *stubStore) FinalizeJob(_ context.Context, id string) (Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if j.ReceiptNumber == 0 {
		s.nextReceipt++
		j.ReceiptNumber = s.nextReceipt
	}
	j.Status = StatusCompleted
	s.jobs[id] = j
	return j, nil
}

func (s *stubStore) ListPayments(_ context.Context, jobID string) ([]ledger.Payment, error) {
	return s.payments[jobID], nil
}

func (s *stubStore) GetPayment(_ context.Context, paymentID string) (ledger.Payment, error) {
	for _, list := range s.payments {
		for _, p := range list {
			if p.ID == paymentID {
				return p, nil
			}
		}
	}
	return ledger.Payment{}, ErrNotFound
}

func (s *stubStore) InsertPayment(_ context.Context, jobID string, p ledger.Payment) (ledger.Payment, error) {
	if s.insertErr != nil {
		return ledger.Payment{}, s.insertErr
	}
	existing := s.payments[jobID]
	p.PaymentNumber = ledger.NextPaymentNumber(existing)
	p.ID = fmt.Sprintf("pay-%s-%d", jobID, p.PaymentNumber)
	p.CreatedAt = time.Now()
	s.payments[jobID] = append(existing, p)
	return p, nil
}

func (s *stubStore) UpdatePaymentStatusBySquareID(_ context.Context, squareID string, status ledger.Status) error {
	for jobID, list := range s.payments {
		for i, p := range list {
			if p.SquarePaymentID == squareID && p.Method != ledger.MethodRefund {
				s.payments[jobID][i].Status = status
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s *stubStore) UpdateRefundStatusBySquareID(_ context.Context, squareID string, status ledger.Status) error {
	for jobID, list := range s.payments {
		for i, p := range list {
			if p.SquarePaymentID == squareID && p.Method == ledger.MethodRefund {
				s.payments[jobID][i].Status = status
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s *stubStore) UpdatePaymentStatus(_ context.Context, paymentID string, status ledger.Status) error {
	for jobID, list := range s.payments {
		for i, p := range list {
			if p.ID == paymentID {
				s.payments[jobID][i].Status = status
				return nil
			}
		}
	}
	return ErrNotFound
}

type stubEnqueuer struct {
	ids []string
	err error
}

func (e *stubEnqueuer) EnqueuePaymentRefresh(_ context.Context, paymentID string) error {
	e.ids = append(e.ids, paymentID)
	return e.err
}

type stubSquare struct {
	payment square.Payment
	err     error
}

func (s *stubSquare) GetPayment(context.Context, string) (square.Payment, error) {
	return s.payment, s.err
}

func newService(store Store) *Service {
	return &Service{Store: store, GratuityLabel: "Gratuity", DefaultTaxRate: 8.875}
}

func collectorCtx(name string) context.Context {
	return common.WithUser(context.Background(), "user-1", name, "dispatcher")
}

func towItems() []billing.LineItem {
	return []billing.LineItem{
		{ID: "li-1", Description: "Hookup", Quantity: 1, Rate: 75},
		{ID: "li-2", Description: "Mileage", Quantity: 5, Rate: 5},
	}
}

func TestCreateJobAppliesOverrideGratuity(t *testing.T) {
	svc := newService(newStubStore())
	created, err := svc.CreateJob(context.Background(), JobInput{
		CustomerName: "Acme Fleet",
		Charges: billing.ChargeSet{
			Items:      towItems(),
			TaxRate:    8.875,
			GrandTotal: 150,
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, created.Status)
	require.Len(t, created.Charges.Items, 3)
	gratuity := created.Charges.Items[2]
	require.True(t, gratuity.IsGratuity)
	require.Equal(t, billing.GratuityItemID, gratuity.ID)
	require.Equal(t, 50.0, gratuity.Rate)
	require.Equal(t, 150.0, created.Charges.GrandTotal)
}

func TestCreateJobRevertsLowOverride(t *testing.T) {
	svc := newService(newStubStore())
	created, err := svc.CreateJob(context.Background(), JobInput{
		CustomerName: "Acme Fleet",
		Charges: billing.ChargeSet{
			Items:      towItems(),
			GrandTotal: 50,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0.0, created.Charges.GrandTotal)
	require.Len(t, created.Charges.Items, 2)
}

func TestCreateJobRequiresCustomerName(t *testing.T) {
	svc := newService(newStubStore())
	_, err := svc.CreateJob(context.Background(), JobInput{})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestUpdateChargesRemovesStaleGratuity(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{
		CustomerName: "Acme Fleet",
		Charges:      billing.ChargeSet{Items: towItems(), GrandTotal: 150},
	})
	require.NoError(t, err)
	require.Len(t, created.Charges.Items, 3)

	// Dropping the override must also drop the synthetic line.
	updated, err := svc.UpdateCharges(context.Background(), created.ID, billing.ChargeSet{
		Items:      created.Charges.Items,
		GrandTotal: 0,
	})
	require.NoError(t, err)
	require.Len(t, updated.Charges.Items, 2)
	require.Equal(t, 0.0, updated.Charges.GrandTotal)
}

func TestUpdateFinalizedJobRejected(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)
	_, err = svc.FinalizeJob(context.Background(), created.ID)
	require.NoError(t, err)

	_, err = svc.UpdateCharges(context.Background(), created.ID, billing.ChargeSet{})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "JOB_FINALIZED", appErr.Code)
}

func TestFinalizeJobIsIdempotent(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)

	first, err := svc.FinalizeJob(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ReceiptNumber)

	second, err := svc.FinalizeJob(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, first.ReceiptNumber, second.ReceiptNumber)
}

func TestRecordCashPaymentCompletesImmediately(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)

	payment, err := svc.RecordPayment(collectorCtx("Dana Ops"), created.ID, RecordPaymentInput{
		Amount: 100,
		Method: ledger.MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, ledger.StatusCompleted, payment.Status)
	require.Equal(t, 1, payment.PaymentNumber)
	require.Equal(t, "Dana Ops", payment.CollectedByName)
}

func TestRecordPaymentUniquenessRaceMapsToConflict(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)

	store.insertErr = fmt.Errorf("insert payment: %w", ErrConflict)
	_, err = svc.RecordPayment(collectorCtx("Dana Ops"), created.ID, RecordPaymentInput{
		Amount: 100,
		Method: ledger.MethodCash,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CONFLICT", appErr.Code)
}

func TestRecordCreditPaymentPendingAndEnqueued(t *testing.T) {
	store := newStubStore()
	enq := &stubEnqueuer{}
	svc := newService(store)
	svc.Enqueuer = enq
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)

	payment, err := svc.RecordPayment(collectorCtx("Dana Ops"), created.ID, RecordPaymentInput{
		Amount:          80,
		Method:          ledger.MethodCredit,
		SquarePaymentID: "sq-pay-1",
	})
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPending, payment.Status)
	require.Equal(t, []string{payment.ID}, enq.ids)
}

func TestRecordCreditPaymentRequiresSquareID(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 80,
		Method: ledger.MethodCredit,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "MISSING_SQUARE_PAYMENT_ID", appErr.Code)
}

func TestPaymentNumbersAdvance(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		payment, err := svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
			Amount: 10,
			Method: ledger.MethodCash,
		})
		require.NoError(t, err)
		require.Equal(t, want, payment.PaymentNumber)
	}
}

func TestIssueRefundStoresNegativeAmount(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)
	payment, err := svc.RecordPayment(collectorCtx("Dana Ops"), created.ID, RecordPaymentInput{
		Amount: 100,
		Method: ledger.MethodCash,
	})
	require.NoError(t, err)

	refund, err := svc.IssueRefund(collectorCtx("Ray Admin"), created.ID, payment.ID, RefundInput{Amount: 40})
	require.NoError(t, err)
	require.Equal(t, -40.0, refund.Amount)
	require.Equal(t, ledger.MethodRefund, refund.Method)
	require.Equal(t, ledger.StatusCompleted, refund.Status)
	require.Equal(t, payment.ID, refund.RefundForPaymentID)
	require.Equal(t, "Ray Admin", refund.CollectedByName)
}

func TestIssueRefundWithSquareIDStartsPending(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)
	payment, err := svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 100, Method: ledger.MethodCash,
	})
	require.NoError(t, err)

	refund, err := svc.IssueRefund(context.Background(), created.ID, payment.ID, RefundInput{
		Amount:         25,
		SquareRefundID: "sq-ref-9",
	})
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPending, refund.Status)
	require.Equal(t, "sq-ref-9", refund.SquarePaymentID)
}

func TestIssueRefundValidationMapping(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)
	payment, err := svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 100, Method: ledger.MethodCash,
	})
	require.NoError(t, err)

	cases := []struct {
		name     string
		amount   float64
		wantCode string
	}{
		{"zero amount", 0, "INVALID_REFUND_AMOUNT"},
		{"exceeds remaining", 150, "REFUND_EXCEEDS_REMAINING"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.IssueRefund(context.Background(), created.ID, payment.ID, RefundInput{Amount: tc.amount})
			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, tc.wantCode, appErr.Code)
		})
	}

	// Drain the payment, then a further refund conflicts.
	_, err = svc.IssueRefund(context.Background(), created.ID, payment.ID, RefundInput{Amount: 100})
	require.NoError(t, err)
	_, err = svc.IssueRefund(context.Background(), created.ID, payment.ID, RefundInput{Amount: 1})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ALREADY_REFUNDED", appErr.Code)
}

func TestTotalsSeparatesChargesAndRefunds(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{
		CustomerName: "Acme",
		Charges: billing.ChargeSet{
			Items:     towItems(),
			TaxExempt: true,
		},
	})
	require.NoError(t, err)

	payment, err := svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 100, Method: ledger.MethodCash,
	})
	require.NoError(t, err)
	_, err = svc.IssueRefund(context.Background(), created.ID, payment.ID, RefundInput{Amount: 40})
	require.NoError(t, err)

	totals, err := svc.Totals(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, totals.InvoicedTotal)
	require.Equal(t, 100.0, totals.ChargesTotal)
	require.Equal(t, 40.0, totals.RefundsTotal)
	require.Equal(t, 40.0, totals.BalanceRaw)
	require.Equal(t, 40.0, totals.BalanceDue)
	require.False(t, totals.IsPaidInFull)
}

func TestTotalsClampNegativeBalance(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{
		CustomerName: "Acme",
		Charges:      billing.ChargeSet{Items: towItems(), TaxExempt: true},
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 120, Method: ledger.MethodCash,
	})
	require.NoError(t, err)

	totals, err := svc.Totals(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, -20.0, totals.BalanceRaw)
	require.Equal(t, 0.0, totals.BalanceDue)
	require.True(t, totals.IsPaidInFull)
}

func TestApplyPaymentStatusUnknownIDSwallowed(t *testing.T) {
	svc := newService(newStubStore())
	require.NoError(t, svc.ApplyPaymentStatus(context.Background(), "nope", ledger.StatusCompleted))
}

func TestApplyPaymentStatusUpdatesRow(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)
	payment, err := svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 50, Method: ledger.MethodCredit, SquarePaymentID: "sq-pay-7",
	})
	require.NoError(t, err)
	require.Equal(t, ledger.StatusPending, payment.Status)

	require.NoError(t, svc.ApplyPaymentStatus(context.Background(), "sq-pay-7", ledger.StatusCompleted))
	refreshed, err := store.GetPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusCompleted, refreshed.Status)
}

func TestRefreshPaymentPullsFromSquare(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	svc.Square = &stubSquare{payment: square.Payment{ID: "sq-pay-3", Status: "COMPLETED"}}
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)
	payment, err := svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 60, Method: ledger.MethodCredit, SquarePaymentID: "sq-pay-3",
	})
	require.NoError(t, err)

	require.NoError(t, svc.RefreshPayment(context.Background(), payment.ID))
	refreshed, err := store.GetPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusCompleted, refreshed.Status)
}

func TestRefreshPaymentIgnoresMissingRemote(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	svc.Square = &stubSquare{err: square.ErrNotFound}
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)
	payment, err := svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 60, Method: ledger.MethodCredit, SquarePaymentID: "sq-pay-4",
	})
	require.NoError(t, err)
	require.NoError(t, svc.RefreshPayment(context.Background(), payment.ID))
}

func TestRefreshPaymentSkipsCash(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	svc.Square = &stubSquare{err: errors.New("should not be called")}
	created, err := svc.CreateJob(context.Background(), JobInput{CustomerName: "Acme"})
	require.NoError(t, err)
	payment, err := svc.RecordPayment(context.Background(), created.ID, RecordPaymentInput{
		Amount: 60, Method: ledger.MethodCash,
	})
	require.NoError(t, err)
	require.NoError(t, svc.RefreshPayment(context.Background(), payment.ID))
}
