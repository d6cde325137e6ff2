package jobcard

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bindery-erp/bindery-erp/internal/bindingadvice"
	"github.com/bindery-erp/bindery-erp/internal/pipeline"
	"github.com/bindery-erp/bindery-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for job cards.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the job card handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers job card routes. The advice-scoped listing
// lives here too since the card module owns those rows.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/job-cards", h.create)
	r.Get("/job-cards/{id}", h.get)
	r.Get("/job-cards/{id}/overview", h.overview)
	r.Get("/job-cards/{id}/progress", h.progress)
	r.Post("/job-cards/{id}/progress", h.recordProgress)
	r.Post("/job-cards/{id}/advance", h.advance)
	r.Get("/binding-advices/{id}/job-cards", h.listByAdvice)
}

type createRequest struct {
	BindingAdviceID int64          `json:"binding_advice_id" validate:"required,gt=0"`
	Quantity        int            `json:"quantity" validate:"required,gt=0"`
	Products        []productShare `json:"products" validate:"omitempty,dive"`
}

type productShare struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
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
	products := make([]pipeline.ProductShare, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, pipeline.ProductShare{ProductID: p.ProductID, Quantity: p.Quantity})
	}
	card, err := h.service.Create(r.Context(), CreateInput{
		BindingAdviceID: req.BindingAdviceID,
		Quantity:        req.Quantity,
		Products:        products,
	})
	if err != nil {
		h.respondError(w, "create job card", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, card)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	card, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get job card", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) listByAdvice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	cards, err := h.service.ListByAdvice(r.Context(), id)
	if err != nil {
		h.respondError(w, "list job cards", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"job_cards": cards})
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	overview, err := h.service.Overview(r.Context(), id)
	if err != nil {
		h.respondError(w, "job card overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Progress(r.Context(), id)
	if err != nil {
		h.respondError(w, "job card progress", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

type progressRequest struct {
	ProductID string `json:"product_id"`
	Completed int    `json:"completed_quantity" validate:"gte=0"`
	Scrapped  int    `json:"scrapped_quantity" validate:"gte=0"`
}

func (h *Handler) recordProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
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
	card, err := h.service.RecordStageCompletion(r.Context(), id, req.ProductID, req.Completed, req.Scrapped, 0)
	if err != nil {
		h.respondError(w, "record job card progress", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	card, err := h.service.Advance(r.Context(), id, 0)
	if err != nil {
		h.respondError(w, "advance job card", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
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
	case errors.Is(err, ErrNotFound), errors.Is(err, bindingadvice.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrAdviceNotApproved):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
