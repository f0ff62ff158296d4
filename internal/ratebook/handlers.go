package ratebook

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/towdesk/backoffice-api/internal/billing"
	"github.com/towdesk/backoffice-api/internal/common"
)

// Handler exposes the rate-book HTTP surface. Mutations are mounted behind
// the admin role by the route table.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler wires a handler with a fresh validator.
func NewHandler(service *Service) *Handler {
	return &Handler{Service: service, Validate: validator.New()}
}

// Routes mounts the read endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{itemID}", h.Get)
}

// AdminRoutes mounts the mutating endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{itemID}", h.Update)
	r.Delete("/{itemID}", h.Deactivate)
}

// List handles GET /ratebook.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Get handles GET /ratebook/{itemID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Service.Get(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, item)
}

type rateItemPayload struct {
	Description string `json:"description" validate:"required"`
	Rate        any    `json:"rate" validate:"required"`
	Locked      bool   `json:"locked"`
}

// Create handles POST /ratebook.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload rateItemPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	created, err := h.Service.Create(r.Context(), payload.Description, billing.ParseAmount(payload.Rate), payload.Locked)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// Update handles PUT /ratebook/{itemID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var payload rateItemPayload
	if err := common.DecodeJSON(w, r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	updated, err := h.Service.Update(r.Context(), chi.URLParam(r, "itemID"),
		payload.Description, billing.ParseAmount(payload.Rate), payload.Locked)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

// Deactivate handles DELETE /ratebook/{itemID}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Deactivate(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
