package ledger

import (
	"errors"
	"math"
)

var (
	// ErrInvalidAmount is returned when the requested refund amount is not positive.
	ErrInvalidAmount = errors.New("refund amount must be positive")
	// ErrNotRefundableMethod is returned when the target record is itself a refund.
	ErrNotRefundableMethod = errors.New("refund records cannot be refunded")
	// ErrAlreadyFullyRefunded indicates the target payment has no refundable remainder.
	ErrAlreadyFullyRefunded = errors.New("payment already fully refunded")
	// ErrExceedsRemaining indicates the request is larger than the refundable remainder.
	ErrExceedsRemaining = errors.New("refund exceeds remaining refundable amount")
)

// MaxRefundable computes the refundable remainder of a payment given its
// existing refunds. The result may be zero or negative; callers must reject
// refund attempts in that case.
func MaxRefundable(payment Payment, existingRefunds []Payment) float64 {
	var alreadyRefunded float64
	for _, r := range existingRefunds {
		if r.RefundForPaymentID == payment.ID {
			alreadyRefunded += math.Abs(r.Amount)
		}
	}
	return payment.Amount - alreadyRefunded
}

// ValidateRefundRequest checks a proposed refund against the target payment
// and its prior refunds. It returns one of the package sentinel errors on
// rejection so callers can map failures to user-facing messages.
func ValidateRefundRequest(payment Payment, existingRefunds []Payment, requestedAmount float64) error {
	if requestedAmount <= 0 {
		return ErrInvalidAmount
	}
	if payment.Method == MethodRefund {
		return ErrNotRefundableMethod
	}
	remaining := MaxRefundable(payment, existingRefunds)
	if remaining <= 0 {
		return ErrAlreadyFullyRefunded
	}
	if requestedAmount > remaining {
		return ErrExceedsRemaining
	}
	return nil
}
