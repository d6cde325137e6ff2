package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bindery-erp/bindery-erp/internal/batch"
	"github.com/bindery-erp/bindery-erp/internal/bindingadvice"
	"github.com/bindery-erp/bindery-erp/internal/dispatch"
	"github.com/bindery-erp/bindery-erp/internal/jobcard"
	"github.com/bindery-erp/bindery-erp/internal/observability"
	"github.com/bindery-erp/bindery-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	BindingAdviceHandler *bindingadvice.Handler
	JobCardHandler       *jobcard.Handler
	BatchHandler         *batch.Handler
	DispatchHandler      *dispatch.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Bindery defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.BindingAdviceHandler != nil {
		params.BindingAdviceHandler.MountRoutes(r)
	}
	if params.JobCardHandler != nil {
		params.JobCardHandler.MountRoutes(r)
	}
	if params.BatchHandler != nil {
		params.BatchHandler.MountRoutes(r)
	}
	if params.DispatchHandler != nil {
		params.DispatchHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		params.JobHandler.MountRoutes(r)
	}

	return r
}
