package job

import (
	"time"

	"github.com/towdesk/backoffice-api/internal/billing"
)

// Job statuses form a small closed set; anything else is rejected at the
// handler boundary.
const (
	StatusOpen      = "open"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// Job is a tow job with its billing charge set. ReceiptNumber is zero until
// the job is finalized; numbers are allocated sequentially and never reused.
type Job struct {
	ID                 string            `json:"id"`
	ReceiptNumber      int64             `json:"receiptNumber,omitempty"`
	Status             string            `json:"status"`
	CustomerName       string            `json:"customerName"`
	CustomerPhone      string            `json:"customerPhone,omitempty"`
	VehicleMake        string            `json:"vehicleMake,omitempty"`
	VehicleModel       string            `json:"vehicleModel,omitempty"`
	VehiclePlate       string            `json:"vehiclePlate,omitempty"`
	OriginAddress      string            `json:"originAddress,omitempty"`
	DestinationAddress string            `json:"destinationAddress,omitempty"`
	Charges            billing.ChargeSet `json:"charges"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}
