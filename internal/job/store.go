package job

import (
	"context"
	"errors"

	"github.com/towdesk/backoffice-api/internal/ledger"
)

// ErrNotFound is returned when a job or payment does not exist.
var ErrNotFound = errors.New("job: not found")

// ErrConflict is returned when an insert loses a uniqueness race, such as two
// writers landing on the same payment number or receipt number.
var ErrConflict = errors.New("job: conflict")

// Store is the persistence surface the service depends on. The Postgres
// implementation lives in pgstore.go; tests substitute an in-memory stub.
type Store interface {
	CreateJob(ctx context.Context, j Job) (Job, error)
	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, limit, offset int) ([]Job, int64, error)
	UpdateJob(ctx context.Context, j Job) (Job, error)
	DeleteJob(ctx context.Context, id string) error

	// FinalizeJob allocates the next receipt number from the counter table
	// and marks the job completed, all within one transaction. Finalizing an
	// already-finalized job returns its existing receipt number.
	FinalizeJob(ctx context.Context, id string) (Job, error)

	ListPayments(ctx context.Context, jobID string) ([]ledger.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (ledger.Payment, error)

	// InsertPayment computes the payment number and appends the row in one
	// transaction so concurrent writers cannot observe the same maximum.
	InsertPayment(ctx context.Context, jobID string, p ledger.Payment) (ledger.Payment, error)

	UpdatePaymentStatusBySquareID(ctx context.Context, squarePaymentID string, status ledger.Status) error
	UpdateRefundStatusBySquareID(ctx context.Context, squareRefundID string, status ledger.Status) error
	UpdatePaymentStatus(ctx context.Context, paymentID string, status ledger.Status) error
}
