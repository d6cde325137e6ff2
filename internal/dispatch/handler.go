package dispatch

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bindery-erp/bindery-erp/internal/batch"
	"github.com/bindery-erp/bindery-erp/internal/platform/httpx"
	"github.com/bindery-erp/bindery-erp/internal/shared"
)

// Handler wires HTTP endpoints for dispatches.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the dispatch handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers dispatch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/batches/{id}/dispatch", h.create)
	r.Get("/batches/{id}/dispatches", h.listByBatch)
	r.Get("/job-cards/{id}/dispatches", h.listByJobCard)
	r.Get("/dispatches/{id}", h.get)
}

type createRequest struct {
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	Destination string `json:"destination"`
	Notes       string `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	d, err := h.service.Create(r.Context(), CreateInput{
		BatchID:        id,
		Quantity:       req.Quantity,
		Destination:    req.Destination,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, "create dispatch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get dispatch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) listByBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	dispatches, err := h.service.ListByBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, "list dispatches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dispatches": dispatches})
}

func (h *Handler) listByJobCard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	dispatches, err := h.service.ListByJobCard(r.Context(), id)
	if err != nil {
		h.respondError(w, "list dispatches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dispatches": dispatches})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, batch.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotReady), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
