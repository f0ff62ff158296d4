package job

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/towdesk/backoffice-api/internal/billing"
	"github.com/towdesk/backoffice-api/internal/common"
	"github.com/towdesk/backoffice-api/internal/ledger"
	"github.com/towdesk/backoffice-api/internal/obs"
	"github.com/towdesk/backoffice-api/internal/square"
)

// Enqueuer schedules background status refreshes for pending card payments.
type Enqueuer interface {
	EnqueuePaymentRefresh(ctx context.Context, paymentID string) error
}

// SquareAPI is the slice of the Square client the service needs.
type SquareAPI interface {
	GetPayment(ctx context.Context, paymentID string) (square.Payment, error)
}

// Service owns tow jobs, their charge sets, and the payment ledger.
type Service struct {
	Store          Store
	Enqueuer       Enqueuer
	Square         SquareAPI
	Logger         zerolog.Logger
	GratuityLabel  string
	DefaultTaxRate float64
}

// JobInput carries the writable fields of a tow job.
type JobInput struct {
	CustomerName       string
	CustomerPhone      string
	VehicleMake        string
	VehicleModel       string
	VehiclePlate       string
	OriginAddress      string
	DestinationAddress string
	Charges            billing.ChargeSet
}

// CreateJob reconciles the charge set and persists a new open job.
func (s *Service) CreateJob(ctx context.Context, input JobInput) (Job, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return Job{}, common.BadRequest("VALIDATION_ERROR", "customer name is required")
	}
	charges := s.normalizeCharges(input.Charges)
	j := Job{
		Status:             StatusOpen,
		CustomerName:       strings.TrimSpace(input.CustomerName),
		CustomerPhone:      strings.TrimSpace(input.CustomerPhone),
		VehicleMake:        strings.TrimSpace(input.VehicleMake),
		VehicleModel:       strings.TrimSpace(input.VehicleModel),
		VehiclePlate:       strings.TrimSpace(input.VehiclePlate),
		OriginAddress:      strings.TrimSpace(input.OriginAddress),
		DestinationAddress: strings.TrimSpace(input.DestinationAddress),
		Charges:            charges,
	}
	created, err := s.Store.CreateJob(ctx, j)
	if err != nil {
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	return created, nil
}

// GetJob fetches a job by id.
func (s *Service) GetJob(ctx context.Context, id string) (Job, error) {
	j, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return Job{}, mapStoreErr(err, "job not found")
	}
	return j, nil
}

// ListJobs returns a page of jobs plus the total count.
func (s *Service) ListJobs(ctx context.Context, limit, offset int) ([]Job, int64, error) {
	return s.Store.ListJobs(ctx, limit, offset)
}

// UpdateJob replaces the writable fields of a job and re-reconciles charges.
func (s *Service) UpdateJob(ctx context.Context, id string, input JobInput) (Job, error) {
	existing, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return Job{}, mapStoreErr(err, "job not found")
	}
	if existing.Status == StatusCompleted {
		return Job{}, common.Conflict("JOB_FINALIZED", "finalized jobs cannot be edited")
	}
	existing.CustomerName = strings.TrimSpace(input.CustomerName)
	existing.CustomerPhone = strings.TrimSpace(input.CustomerPhone)
	existing.VehicleMake = strings.TrimSpace(input.VehicleMake)
	existing.VehicleModel = strings.TrimSpace(input.VehicleModel)
	existing.VehiclePlate = strings.TrimSpace(input.VehiclePlate)
	existing.OriginAddress = strings.TrimSpace(input.OriginAddress)
	existing.DestinationAddress = strings.TrimSpace(input.DestinationAddress)
	existing.Charges = s.normalizeCharges(input.Charges)

	updated, err := s.Store.UpdateJob(ctx, existing)
	if err != nil {
		return Job{}, mapStoreErr(err, "job not found")
	}
	return updated, nil
}

// UpdateCharges replaces a job's charge set, re-running override
// reconciliation so the gratuity line and grand total stay consistent.
func (s *Service) UpdateCharges(ctx context.Context, id string, charges billing.ChargeSet) (Job, error) {
	existing, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return Job{}, mapStoreErr(err, "job not found")
	}
	if existing.Status == StatusCompleted {
		return Job{}, common.Conflict("JOB_FINALIZED", "finalized jobs cannot be edited")
	}
	existing.Charges = s.normalizeCharges(charges)
	updated, err := s.Store.UpdateJob(ctx, existing)
	if err != nil {
		return Job{}, mapStoreErr(err, "job not found")
	}
	return updated, nil
}

// DeleteJob removes a job and its dependent rows.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	if err := s.Store.DeleteJob(ctx, id); err != nil {
		return mapStoreErr(err, "job not found")
	}
	return nil
}

// FinalizeJob allocates a receipt number and marks the job completed.
// Finalizing twice returns the same receipt number.
func (s *Service) FinalizeJob(ctx context.Context, id string) (Job, error) {
	j, err := s.Store.FinalizeJob(ctx, id)
	if err != nil {
		return Job{}, mapStoreErr(err, "job not found")
	}
	return j, nil
}

// RecordPaymentInput carries a payment to record against a job.
type RecordPaymentInput struct {
	Amount          float64
	Method          ledger.Method
	Note            string
	SquarePaymentID string
}

// RecordPayment appends a payment row. Cash is immediately completed; card
// payments start pending and a background refresh is enqueued.
func (s *Service) RecordPayment(ctx context.Context, jobID string, input RecordPaymentInput) (ledger.Payment, error) {
	if input.Amount <= 0 {
		return ledger.Payment{}, common.BadRequest("INVALID_AMOUNT", "payment amount must be positive")
	}

	p := ledger.Payment{
		Amount: billing.Round2(input.Amount),
		Method: input.Method,
		Note:   strings.TrimSpace(input.Note),
	}
	if name, ok := common.UserName(ctx); ok {
		p.CollectedByName = name
	}

	switch input.Method {
	case ledger.MethodCash:
		p.Status = ledger.StatusCompleted
	case ledger.MethodCredit:
		if strings.TrimSpace(input.SquarePaymentID) == "" {
			return ledger.Payment{}, common.BadRequest("MISSING_SQUARE_PAYMENT_ID", "card payments require a square payment id")
		}
		p.Status = ledger.StatusPending
		p.SquarePaymentID = strings.TrimSpace(input.SquarePaymentID)
	default:
		return ledger.Payment{}, common.BadRequest("INVALID_METHOD", "method must be cash or credit")
	}

	if _, err := s.Store.GetJob(ctx, jobID); err != nil {
		return ledger.Payment{}, mapStoreErr(err, "job not found")
	}

	inserted, err := s.Store.InsertPayment(ctx, jobID, p)
	if err != nil {
		s.countPayment(string(input.Method), "error")
		if errors.Is(err, ErrConflict) {
			return ledger.Payment{}, mapStoreErr(err, "")
		}
		return ledger.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	s.countPayment(string(input.Method), "ok")

	if inserted.Method == ledger.MethodCredit && s.Enqueuer != nil {
		if err := s.Enqueuer.EnqueuePaymentRefresh(ctx, inserted.ID); err != nil {
			s.Logger.Error().Err(err).Str("payment_id", inserted.ID).Msg("enqueue payment refresh")
		}
	}
	return inserted, nil
}

// RefundInput carries a refund request against an existing payment.
type RefundInput struct {
	Amount         float64
	Note           string
	SquareRefundID string
}

// IssueRefund validates and records a refund of an existing payment. The
// stored amount is negative; totals take the absolute value.
func (s *Service) IssueRefund(ctx context.Context, jobID, paymentID string, input RefundInput) (ledger.Payment, error) {
	payments, err := s.Store.ListPayments(ctx, jobID)
	if err != nil {
		return ledger.Payment{}, mapStoreErr(err, "job not found")
	}
	var target *ledger.Payment
	for i := range payments {
		if payments[i].ID == paymentID {
			target = &payments[i]
			break
		}
	}
	if target == nil {
		return ledger.Payment{}, common.NotFound("payment not found")
	}

	amount := billing.Round2(input.Amount)
	if err := ledger.ValidateRefundRequest(*target, payments, amount); err != nil {
		s.countRefund("rejected")
		return ledger.Payment{}, mapRefundErr(err)
	}

	refund := ledger.Payment{
		Amount:             -amount,
		Method:             ledger.MethodRefund,
		Note:               strings.TrimSpace(input.Note),
		RefundForPaymentID: target.ID,
	}
	if name, ok := common.UserName(ctx); ok {
		refund.CollectedByName = name
	}
	// Card refunds settle asynchronously through Square; the Square refund id
	// rides in the processor-id column so webhook updates can find the row.
	if id := strings.TrimSpace(input.SquareRefundID); id != "" {
		refund.SquarePaymentID = id
		refund.Status = ledger.StatusPending
	} else {
		refund.Status = ledger.StatusCompleted
	}

	inserted, err := s.Store.InsertPayment(ctx, jobID, refund)
	if err != nil {
		s.countRefund("error")
		if errors.Is(err, ErrConflict) {
			return ledger.Payment{}, mapStoreErr(err, "")
		}
		return ledger.Payment{}, fmt.Errorf("insert refund: %w", err)
	}
	s.countRefund("ok")
	return inserted, nil
}

// ListPayments returns the full payment history of a job.
func (s *Service) ListPayments(ctx context.Context, jobID string) ([]ledger.Payment, error) {
	if _, err := s.Store.GetJob(ctx, jobID); err != nil {
		return nil, mapStoreErr(err, "job not found")
	}
	return s.Store.ListPayments(ctx, jobID)
}

// JobTotals is the billing summary for a job. ChargesTotal and RefundsTotal
// are reported separately, not netted.
type JobTotals struct {
	Display       billing.Totals `json:"display"`
	InvoicedTotal float64        `json:"invoicedTotal"`
	ChargesTotal  float64        `json:"chargesTotal"`
	RefundsTotal  float64        `json:"refundsTotal"`
	BalanceRaw    float64        `json:"balanceRaw"`
	BalanceDue    float64        `json:"balanceDue"`
	IsPaidInFull  bool           `json:"isPaidInFull"`
}

// Totals computes the display and ledger summaries for a job.
func (s *Service) Totals(ctx context.Context, jobID string) (JobTotals, error) {
	j, err := s.Store.GetJob(ctx, jobID)
	if err != nil {
		return JobTotals{}, mapStoreErr(err, "job not found")
	}
	payments, err := s.Store.ListPayments(ctx, jobID)
	if err != nil {
		return JobTotals{}, fmt.Errorf("list payments: %w", err)
	}

	invoiced := billing.InvoiceTotal(j.Charges)
	raw := ledger.BalanceDue(invoiced, payments)
	return JobTotals{
		Display:       billing.DisplayTotals(j.Charges),
		InvoicedTotal: invoiced,
		ChargesTotal:  ledger.ValidChargesTotal(payments),
		RefundsTotal:  ledger.ValidRefundsTotal(payments),
		BalanceRaw:    raw,
		BalanceDue:    math.Max(0, raw),
		IsPaidInFull:  ledger.IsPaidInFull(invoiced, payments),
	}, nil
}

// ApplyPaymentStatus records a Square-reported payment status change.
// Unknown payment ids are logged and dropped; Square replays old events for
// payments this system never recorded.
func (s *Service) ApplyPaymentStatus(ctx context.Context, squarePaymentID string, status ledger.Status) error {
	err := s.Store.UpdatePaymentStatusBySquareID(ctx, squarePaymentID, status)
	if errors.Is(err, ErrNotFound) {
		s.Logger.Warn().Str("square_payment_id", squarePaymentID).Msg("webhook for unknown payment")
		return nil
	}
	return err
}

// ApplyRefundStatus records a Square-reported refund status change.
func (s *Service) ApplyRefundStatus(ctx context.Context, squareRefundID string, status ledger.Status) error {
	err := s.Store.UpdateRefundStatusBySquareID(ctx, squareRefundID, status)
	if errors.Is(err, ErrNotFound) {
		s.Logger.Warn().Str("square_refund_id", squareRefundID).Msg("webhook for unknown refund")
		return nil
	}
	return err
}

// RefreshPayment pulls the current status of a pending card payment from the
// Square API. Used by the background worker.
func (s *Service) RefreshPayment(ctx context.Context, paymentID string) error {
	if s.Square == nil {
		return errors.New("job: square client not configured")
	}
	p, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if p.Method != ledger.MethodCredit || p.SquarePaymentID == "" {
		return nil
	}

	remote, err := s.Square.GetPayment(ctx, p.SquarePaymentID)
	if err != nil {
		if errors.Is(err, square.ErrNotFound) {
			s.countRefresh("not_found")
			return nil
		}
		s.countRefresh("error")
		return fmt.Errorf("fetch square payment: %w", err)
	}
	status := ledger.StatusFromSquare(remote.Status)
	if status == p.Status {
		s.countRefresh("unchanged")
		return nil
	}
	if err := s.Store.UpdatePaymentStatus(ctx, paymentID, status); err != nil {
		s.countRefresh("error")
		return err
	}
	s.countRefresh("updated")
	return nil
}

func (s *Service) normalizeCharges(cs billing.ChargeSet) billing.ChargeSet {
	if cs.TaxRate == 0 && !cs.TaxExempt {
		cs.TaxRate = s.DefaultTaxRate
	}
	return billing.ReconcileOverride(cs, s.gratuityLabel())
}

func (s *Service) gratuityLabel() string {
	if s.GratuityLabel == "" {
		return "Gratuity"
	}
	return s.GratuityLabel
}

func (s *Service) countPayment(method, result string) {
	if obs.PaymentsRecordedTotal != nil {
		obs.PaymentsRecordedTotal.WithLabelValues(method, result).Inc()
	}
}

func (s *Service) countRefund(result string) {
	if obs.RefundsIssuedTotal != nil {
		obs.RefundsIssuedTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countRefresh(result string) {
	if obs.SquareRefreshTotal != nil {
		obs.SquareRefreshTotal.WithLabelValues(result).Inc()
	}
}

func mapStoreErr(err error, message string) error {
	if errors.Is(err, ErrNotFound) {
		return common.NotFound(message)
	}
	if errors.Is(err, ErrConflict) {
		return common.Conflict("CONFLICT", "concurrent write conflict, retry the request")
	}
	return err
}

func mapRefundErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return common.NewAppError("INVALID_REFUND_AMOUNT", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ledger.ErrNotRefundableMethod):
		return common.NewAppError("NOT_REFUNDABLE", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ledger.ErrAlreadyFullyRefunded):
		return common.NewAppError("ALREADY_REFUNDED", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ledger.ErrExceedsRemaining):
		return common.NewAppError("REFUND_EXCEEDS_REMAINING", err.Error(), http.StatusBadRequest, err)
	}
	return err
}
