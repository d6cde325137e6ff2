package bindingadvice

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bindery-erp/bindery-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for binding advices.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the binding advice handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers binding advice routes. Routes are registered
// flat so other modules can hang their own endpoints off the same
// /binding-advices subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/binding-advices", h.create)
	r.Get("/binding-advices", h.list)
	r.Get("/binding-advices/{id}", h.get)
	r.Post("/binding-advices/{id}/approve", h.approve)
	r.Post("/binding-advices/{id}/cancel", h.cancel)
	r.Get("/binding-advices/{id}/balance", h.balance)
}

type createRequest struct {
	CustomerName string `json:"customer_name" validate:"required"`
	NotebookType string `json:"notebook_type"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
	Notes        string `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	advice, err := h.service.Create(r.Context(), CreateInput{
		CustomerName: req.CustomerName,
		NotebookType: req.NotebookType,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	})
	if err != nil {
		h.respondError(w, "create binding advice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, advice)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	advices, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.respondError(w, "list binding advices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"binding_advices": advices,
		"pagination":      pagination,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	advice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get binding advice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, advice)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	advice, err := h.service.Approve(r.Context(), id, 0)
	if err != nil {
		h.respondError(w, "approve binding advice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, advice)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	advice, err := h.service.Cancel(r.Context(), id, 0)
	if err != nil {
		h.respondError(w, "cancel binding advice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, advice)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	balance, err := h.service.Balance(r.Context(), id)
	if err != nil {
		h.respondError(w, "binding advice balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
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
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrHasAllocations):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
