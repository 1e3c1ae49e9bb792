package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/rowguard/internal/documents"
	"github.com/odyssey-erp/rowguard/internal/guard"
	"github.com/odyssey-erp/rowguard/internal/observability"
	"github.com/odyssey-erp/rowguard/internal/platform/httpx"
	"github.com/odyssey-erp/rowguard/internal/policy"
	"github.com/odyssey-erp/rowguard/internal/shared"
	"github.com/odyssey-erp/rowguard/internal/store"
	"github.com/odyssey-erp/rowguard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	Policies         *policy.Registry
	NewStore         func() store.Session
	GuardOptions     []guard.Option
	DocumentsHandler *documents.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with rowguard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			Metrics:        params.Metrics,
			Policies:       params.Policies,
			NewStore:       params.NewStore,
			GuardOptions:   params.GuardOptions,
		}) {
			r.Use(mw)
		}
		if params.DocumentsHandler != nil {
			r.Route("/documents", params.DocumentsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
