package job

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/towdesk/backoffice-api/internal/billing"
	"github.com/towdesk/backoffice-api/internal/common"
	"github.com/towdesk/backoffice-api/internal/ledger"
)

// Handler exposes the tow-job HTTP surface.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler wires a handler with a fresh validator.
func NewHandler(service *Service) *Handler {
	return &Handler{Service: service, Validate: validator.New()}
}

// Routes mounts the job endpoints on the supplied router. Refund issuance is
// additionally guarded by the admin role in the caller's route table.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{jobID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Put("/charges", h.UpdateCharges)
		r.Post("/finalize", h.Finalize)
		r.Get("/totals", h.Totals)
		r.Get("/payments", h.ListPayments)
		r.Post("/payments", h.RecordPayment)
	})
}

type lineItemPayload struct {
	ID          string `json:"id"`
	Description string `json:"description" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	Rate        any    `json:"rate"`
	Locked      bool   `json:"locked"`
}

type chargeSetPayload struct {
	Items      []lineItemPayload `json:"items" validate:"dive"`
	TaxRate    float64           `json:"taxRate" validate:"gte=0,lte=100"`
	TaxExempt  bool              `json:"taxExempt"`
	GrandTotal any               `json:"grandTotal"`
}

type jobPayload struct {
	CustomerName       string           `json:"customerName" validate:"required"`
	CustomerPhone      string           `json:"customerPhone"`
	VehicleMake        string           `json:"vehicleMake"`
	VehicleModel       string           `json:"vehicleModel"`
	VehiclePlate       string           `json:"vehiclePlate"`
	OriginAddress      string           `json:"originAddress"`
	DestinationAddress string           `json:"destinationAddress"`
	Charges            chargeSetPayload `json:"charges"`
}

func (p chargeSetPayload) toChargeSet() billing.ChargeSet {
	items := make([]billing.LineItem, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, billing.LineItem{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        billing.ParseAmount(it.Rate),
			Locked:      it.Locked,
		})
	}
	return billing.ChargeSet{
		Items:      items,
		TaxRate:    p.TaxRate,
		TaxExempt:  p.TaxExempt,
		GrandTotal: billing.ParseAmount(p.GrandTotal),
	}
}

func (p jobPayload) toInput() JobInput {
	return JobInput{
		CustomerName:       p.CustomerName,
		CustomerPhone:      p.CustomerPhone,
		VehicleMake:        p.VehicleMake,
		VehicleModel:       p.VehicleModel,
		VehiclePlate:       p.VehiclePlate,
		OriginAddress:      p.OriginAddress,
		DestinationAddress: p.DestinationAddress,
		Charges:            p.Charges.toChargeSet(),
	}
}

// Create handles POST /jobs.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	created, err := h.Service.CreateJob(r.Context(), payload.toInput())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// List handles GET /jobs with pagination.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	jobs, total, err := h.Service.ListJobs(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": jobs,
		"meta": map[string]any{
			"page":    page,
			"perPage": perPage,
			"total":   total,
		},
	})
}

// Get handles GET /jobs/{jobID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.Service.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, j)
}

// Update handles PUT /jobs/{jobID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	updated, err := h.Service.UpdateJob(r.Context(), chi.URLParam(r, "jobID"), payload.toInput())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

// Delete handles DELETE /jobs/{jobID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteJob(r.Context(), chi.URLParam(r, "jobID")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCharges handles PUT /jobs/{jobID}/charges.
func (h *Handler) UpdateCharges(w http.ResponseWriter, r *http.Request) {
	var payload chargeSetPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	updated, err := h.Service.UpdateCharges(r.Context(), chi.URLParam(r, "jobID"), payload.toChargeSet())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

// Finalize handles POST /jobs/{jobID}/finalize.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	j, err := h.Service.FinalizeJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, j)
}

// Totals handles GET /jobs/{jobID}/totals.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Service.Totals(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, totals)
}

// ListPayments handles GET /jobs/{jobID}/payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Service.ListPayments(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if payments == nil {
		payments = []ledger.Payment{}
	}
	common.Data(w, http.StatusOK, payments)
}

type paymentPayload struct {
	Amount          any    `json:"amount" validate:"required"`
	Method          string `json:"method" validate:"required,oneof=cash credit"`
	Note            string `json:"note"`
	SquarePaymentID string `json:"squarePaymentId"`
}

// RecordPayment handles POST /jobs/{jobID}/payments.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var payload paymentPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	payment, err := h.Service.RecordPayment(r.Context(), chi.URLParam(r, "jobID"), RecordPaymentInput{
		Amount:          billing.ParseAmount(payload.Amount),
		Method:          ledger.Method(payload.Method),
		Note:            payload.Note,
		SquarePaymentID: payload.SquarePaymentID,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, payment)
}

type refundPayload struct {
	Amount         any    `json:"amount" validate:"required"`
	Note           string `json:"note"`
	SquareRefundID string `json:"squareRefundId"`
}

// IssueRefund handles POST /jobs/{jobID}/payments/{paymentID}/refunds.
// Mounted separately so the route table can require the admin role.
func (h *Handler) IssueRefund(w http.ResponseWriter, r *http.Request) {
	var payload refundPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	refund, err := h.Service.IssueRefund(r.Context(),
		chi.URLParam(r, "jobID"), chi.URLParam(r, "paymentID"), RefundInput{
			Amount:         billing.ParseAmount(payload.Amount),
			Note:           payload.Note,
			SquareRefundID: payload.SquareRefundID,
		})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, refund)
}
