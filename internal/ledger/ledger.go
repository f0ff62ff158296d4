package ledger

import (
	"math"
	"time"
)

// Payment is one row in a job's payment history. Amount is positive for
// charges and negative for refunds. CollectedByName is captured at write
// time and never re-resolved, so the record stays accurate even if the
// collecting user is later renamed or removed.
type Payment struct {
	ID                 string    `json:"id"`
	PaymentNumber      int       `json:"paymentNumber"`
	Amount             float64   `json:"amount"`
	Method             Method    `json:"method"`
	Status             Status    `json:"status"`
	CollectedByName    string    `json:"collectedByName"`
	Note               string    `json:"note,omitempty"`
	SquarePaymentID    string    `json:"squarePaymentId,omitempty"`
	RefundForPaymentID string    `json:"refundForPaymentId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ValidChargesTotal sums payments that count toward amount collected: cash
// always, card only once the processor reports it completed.
func ValidChargesTotal(payments []Payment) float64 {
	var total float64
	for _, p := range payments {
		if p.Method == MethodRefund {
			continue
		}
		if p.Method == MethodCash || p.Status == StatusCompleted {
			total += p.Amount
		}
	}
	return total
}

// ValidRefundsTotal sums the absolute value of refunds that count toward
// amount returned. Pending refunds count; rejected and failed ones do not.
func ValidRefundsTotal(payments []Payment) float64 {
	var total float64
	for _, p := range payments {
		if p.Method != MethodRefund {
			continue
		}
		if p.Status == StatusPending || p.Status == StatusCompleted {
			total += math.Abs(p.Amount)
		}
	}
	return total
}

// BalanceDue returns the invoiced total minus net valid payments. The raw
// signed value is preserved: a negative balance signals overpayment, which
// is a legitimate state. Display layers clamp at zero.
func BalanceDue(invoicedTotal float64, payments []Payment) float64 {
	return invoicedTotal - (ValidChargesTotal(payments) - ValidRefundsTotal(payments))
}

// IsPaidInFull reports whether the balance due is zero or negative.
func IsPaidInFull(invoicedTotal float64, payments []Payment) bool {
	return BalanceDue(invoicedTotal, payments) <= 0
}

// NextPaymentNumber returns max(existing)+1 over the remaining records.
// Deleted numbers are never reused; the maximum is recomputed on every
// insertion rather than kept in a counter.
func NextPaymentNumber(payments []Payment) int {
	highest := 0
	for _, p := range payments {
		if p.PaymentNumber > highest {
			highest = p.PaymentNumber
		}
	}
	return highest + 1
}
