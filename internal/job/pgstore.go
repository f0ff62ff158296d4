package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/towdesk/backoffice-api/internal/billing"
	"github.com/towdesk/backoffice-api/internal/ledger"
)

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps the pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

const jobColumns = `id, receipt_number, status, customer_name, customer_phone,
	vehicle_make, vehicle_model, vehicle_plate, origin_address, destination_address,
	tax_rate, tax_exempt, grand_total, created_at, updated_at`

func (s *PGStore) CreateJob(ctx context.Context, j Job) (Job, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO jobs (status, customer_name, customer_phone, vehicle_make,
			vehicle_model, vehicle_plate, origin_address, destination_address,
			tax_rate, tax_exempt, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+jobColumns,
		j.Status, j.CustomerName, j.CustomerPhone, j.VehicleMake, j.VehicleModel,
		j.VehiclePlate, j.OriginAddress, j.DestinationAddress,
		j.Charges.TaxRate, j.Charges.TaxExempt, j.Charges.GrandTotal)
	created, err := scanJob(row)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}
	if err := insertLineItems(ctx, tx, created.ID, j.Charges.Items); err != nil {
		return Job{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Job{}, fmt.Errorf("commit: %w", err)
	}
	created.Charges.Items = j.Charges.Items
	return created, nil
}

func (s *PGStore) GetJob(ctx context.Context, id string) (Job, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	items, err := s.listLineItems(ctx, id)
	if err != nil {
		return Job{}, err
	}
	j.Charges.Items = items
	return j, nil
}

func (s *PGStore) ListJobs(ctx context.Context, limit, offset int) ([]Job, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0, limit)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range jobs {
		items, err := s.listLineItems(ctx, jobs[i].ID)
		if err != nil {
			return nil, 0, err
		}
		jobs[i].Charges.Items = items
	}
	return jobs, total, nil
}

func (s *PGStore) UpdateJob(ctx context.Context, j Job) (Job, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE jobs SET status = $2, customer_name = $3, customer_phone = $4,
			vehicle_make = $5, vehicle_model = $6, vehicle_plate = $7,
			origin_address = $8, destination_address = $9,
			tax_rate = $10, tax_exempt = $11, grand_total = $12,
			updated_at = now()
		WHERE id = $1
		RETURNING `+jobColumns,
		j.ID, j.Status, j.CustomerName, j.CustomerPhone, j.VehicleMake,
		j.VehicleModel, j.VehiclePlate, j.OriginAddress, j.DestinationAddress,
		j.Charges.TaxRate, j.Charges.TaxExempt, j.Charges.GrandTotal)
	updated, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("update job: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM line_items WHERE job_id = $1`, j.ID); err != nil {
		return Job{}, fmt.Errorf("clear line items: %w", err)
	}
	if err := insertLineItems(ctx, tx, j.ID, j.Charges.Items); err != nil {
		return Job{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Job{}, fmt.Errorf("commit: %w", err)
	}
	updated.Charges.Items = j.Charges.Items
	return updated, nil
}

func (s *PGStore) DeleteJob(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FinalizeJob(ctx context.Context, id string) (Job, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var receipt pgtype.Int8
	err = tx.QueryRow(ctx, `SELECT receipt_number FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&receipt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("lock job: %w", err)
	}

	if !receipt.Valid {
		var next int64
		if err := tx.QueryRow(ctx,
			`UPDATE receipt_counter SET value = value + 1 WHERE id RETURNING value`).Scan(&next); err != nil {
			return Job{}, fmt.Errorf("allocate receipt number: %w", err)
		}
		receipt = pgtype.Int8{Int64: next, Valid: true}
	}

	row := tx.QueryRow(ctx, `
		UPDATE jobs SET receipt_number = $2, status = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+jobColumns, id, receipt, StatusCompleted)
	j, err := scanJob(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Job{}, fmt.Errorf("finalize job: %w", ErrConflict)
		}
		return Job{}, fmt.Errorf("finalize job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Job{}, fmt.Errorf("commit: %w", err)
	}
	items, err := s.listLineItems(ctx, id)
	if err != nil {
		return Job{}, err
	}
	j.Charges.Items = items
	return j, nil
}

const paymentColumns = `id, payment_number, amount, method, status,
	collected_by_name, note, square_payment_id, refund_for_payment_id, created_at`

func (s *PGStore) ListPayments(ctx context.Context, jobID string) ([]ledger.Payment, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE job_id = $1 ORDER BY payment_number`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (s *PGStore) GetPayment(ctx context.Context, paymentID string) (ledger.Payment, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Payment{}, ErrNotFound
		}
		return ledger.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *PGStore) InsertPayment(ctx context.Context, jobID string, p ledger.Payment) (ledger.Payment, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ledger.Payment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the job row so two writers cannot read the same maximum.
	if _, err := tx.Exec(ctx, `SELECT 1 FROM jobs WHERE id = $1 FOR UPDATE`, jobID); err != nil {
		return ledger.Payment{}, fmt.Errorf("lock job: %w", err)
	}
	rows, err := tx.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE job_id = $1 ORDER BY payment_number`, jobID)
	if err != nil {
		return ledger.Payment{}, fmt.Errorf("list payments: %w", err)
	}
	existing, err := scanPayments(rows)
	if err != nil {
		return ledger.Payment{}, err
	}
	p.PaymentNumber = ledger.NextPaymentNumber(existing)

	row := tx.QueryRow(ctx, `
		INSERT INTO payments (job_id, payment_number, amount, method, status,
			collected_by_name, note, square_payment_id, refund_for_payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+paymentColumns,
		jobID, p.PaymentNumber, p.Amount, string(p.Method), string(p.Status),
		p.CollectedByName, p.Note, nullText(p.SquarePaymentID), nullText(p.RefundForPaymentID))
	inserted, err := scanPayment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.Payment{}, fmt.Errorf("insert payment: %w", ErrConflict)
		}
		return ledger.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Payment{}, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *PGStore) UpdatePaymentStatusBySquareID(ctx context.Context, squarePaymentID string, status ledger.Status) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE payments SET status = $2
		WHERE square_payment_id = $1 AND method <> 'refund'`, squarePaymentID, string(status))
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdateRefundStatusBySquareID(ctx context.Context, squareRefundID string, status ledger.Status) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE payments SET status = $2
		WHERE square_payment_id = $1 AND method = 'refund'`, squareRefundID, string(status))
	if err != nil {
		return fmt.Errorf("update refund status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdatePaymentStatus(ctx context.Context, paymentID string, status ledger.Status) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, paymentID, string(status))
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) listLineItems(ctx context.Context, jobID string) ([]billing.LineItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT item_id, description, quantity, rate, is_gratuity, locked
		FROM line_items WHERE job_id = $1 ORDER BY position`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	var items []billing.LineItem
	for rows.Next() {
		var it billing.LineItem
		if err := rows.Scan(&it.ID, &it.Description, &it.Quantity, &it.Rate, &it.IsGratuity, &it.Locked); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func insertLineItems(ctx context.Context, tx pgx.Tx, jobID string, items []billing.LineItem) error {
	for i, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO line_items (job_id, position, item_id, description, quantity, rate, is_gratuity, locked)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			jobID, i, it.ID, it.Description, it.Quantity, it.Rate, it.IsGratuity, it.Locked); err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}
	return nil
}

func scanJob(row pgx.Row) (Job, error) {
	var (
		j       Job
		receipt pgtype.Int8
	)
	err := row.Scan(&j.ID, &receipt, &j.Status, &j.CustomerName, &j.CustomerPhone,
		&j.VehicleMake, &j.VehicleModel, &j.VehiclePlate, &j.OriginAddress,
		&j.DestinationAddress, &j.Charges.TaxRate, &j.Charges.TaxExempt,
		&j.Charges.GrandTotal, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return Job{}, err
	}
	if receipt.Valid {
		j.ReceiptNumber = receipt.Int64
	}
	return j, nil
}

func scanPayments(rows pgx.Rows) ([]ledger.Payment, error) {
	defer rows.Close()
	var payments []ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (ledger.Payment, error) {
	var (
		p         ledger.Payment
		method    string
		status    string
		squareID  pgtype.Text
		refundFor pgtype.Text
	)
	err := row.Scan(&p.ID, &p.PaymentNumber, &p.Amount, &method, &status,
		&p.CollectedByName, &p.Note, &squareID, &refundFor, &p.CreatedAt)
	if err != nil {
		return ledger.Payment{}, err
	}
	p.Method = ledger.Method(method)
	p.Status = ledger.Status(status)
	if squareID.Valid {
		p.SquarePaymentID = squareID.String
	}
	if refundFor.Valid {
		p.RefundForPaymentID = refundFor.String
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
