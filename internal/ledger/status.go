package ledger

import "strings"

// Status is the internal settlement state of a payment or refund. External
// processor strings are folded into this closed set at the ingestion
// boundary; everything unrecognized becomes StatusUnknown and is excluded
// from both charge and refund totals.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusPending   Status = "PENDING"
	StatusFailed    Status = "FAILED"
	StatusUnknown   Status = "UNKNOWN"
)

// Method identifies how a payment was taken.
type Method string

const (
	MethodCash   Method = "cash"
	MethodCredit Method = "credit"
	MethodRefund Method = "refund"
)

// StatusFromSquare converts raw Square status labels into internal statuses.
func StatusFromSquare(external string) Status {
	switch strings.ToUpper(strings.TrimSpace(external)) {
	case "COMPLETED":
		return StatusCompleted
	case "PENDING", "APPROVED":
		return StatusPending
	case "FAILED", "CANCELED", "REJECTED":
		return StatusFailed
	}
	return StatusUnknown
}
