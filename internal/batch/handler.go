package batch

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bindery-erp/bindery-erp/internal/jobcard"
	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/platform/httpx"
	"github.com/bindery-erp/bindery-erp/internal/ranges"
)

// Handler wires HTTP endpoints for production batches.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the batch handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers batch routes. The card-scoped planning
// endpoints live here because the batch module owns the range claims.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/batches/{id}", h.get)
	r.Post("/batches/{id}/progress", h.recordProgress)
	r.Post("/batches/{id}/advance", h.advance)
	r.Post("/batches/{id}/cancel", h.cancel)
	r.Post("/job-cards/{id}/batches", h.create)
	r.Get("/job-cards/{id}/batches", h.listByJobCard)
	r.Get("/job-cards/{id}/gaps", h.gaps)
	r.Get("/job-cards/{id}/next-range", h.nextRange)
	r.Get("/job-cards/{id}/coverage", h.coverage)
}

type createRequest struct {
	From     int            `json:"from" validate:"omitempty,gte=1"`
	To       int            `json:"to" validate:"omitempty,gte=1"`
	Quantity int            `json:"quantity" validate:"omitempty,gt=0"`
	Products []productShare `json:"products" validate:"omitempty,dive"`
}

type productShare struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
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
	input := CreateInput{JobCardID: id, Quantity: req.Quantity}
	if req.From != 0 || req.To != 0 {
		input.Range = &ranges.Range{From: req.From, To: req.To}
	} else if req.Quantity <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "either a range or a quantity is required")
		return
	}
	for _, p := range req.Products {
		input.Products = append(input.Products, pipeline.ProductShare{ProductID: p.ProductID, Quantity: p.Quantity})
	}
	batch, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create batch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	batch, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) listByJobCard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	batches, err := h.service.ListByJobCard(r.Context(), id)
	if err != nil {
		h.respondError(w, "list batches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) gaps(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	gaps, err := h.service.Gaps(r.Context(), id)
	if err != nil {
		h.respondError(w, "list gaps", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"gaps": gaps})
}

func (h *Handler) nextRange(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	next, err := h.service.SuggestRange(r.Context(), id, quantity)
	if err != nil {
		h.respondError(w, "suggest range", err)
		return
	}
	httpx.JSON(w, http.StatusOK, next)
}

func (h *Handler) coverage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	check, err := h.service.Coverage(r.Context(), id)
	if err != nil {
		h.respondError(w, "check coverage", err)
		return
	}
	httpx.JSON(w, http.StatusOK, check)
}

type progressRequest struct {
	ProductID string `json:"product_id"`
	Completed int    `json:"completed_quantity" validate:"gte=0"`
	Scrapped  int    `json:"scrapped_quantity" validate:"gte=0"`
}

func (h *Handler) recordProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	var req progressRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	batch, err := h.service.RecordProgress(r.Context(), id, req.ProductID, req.Completed, req.Scrapped, 0)
	if err != nil {
		h.respondError(w, "record batch progress", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	batch, err := h.service.Advance(r.Context(), id, 0)
	if err != nil {
		h.respondError(w, "advance batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	batch, err := h.service.Cancel(r.Context(), id, 0)
	if err != nil {
		h.respondError(w, "cancel batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) parseParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, jobcard.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNoCapacity):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrHasDispatches):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
