package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/quizroom/quizroom/internal/access"
	accesshttp "github.com/quizroom/quizroom/internal/access/http"
	audithttp "github.com/quizroom/quizroom/internal/audit/http"
	checkshttp "github.com/quizroom/quizroom/internal/checks/http"
	"github.com/quizroom/quizroom/internal/observability"
	"github.com/quizroom/quizroom/internal/platform/httpx"
	"github.com/quizroom/quizroom/internal/shared"
	"github.com/quizroom/quizroom/jobs"
)

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	ServiceToken     *shared.ServiceToken
	AccessMiddleware accesshttp.Middleware
	AccessHandler    *accesshttp.Handler
	ChecksHandler    *checkshttp.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	Readiness        map[string]ReadinessCheck
}

// NewRouter constructs the chi.Router with quizroom defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)
	r.Use(params.AccessMiddleware.Load)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", readinessHandler(params.Readiness, params.Logger))

	if params.ChecksHandler != nil {
		params.ChecksHandler.MountRoutes(r, params.ServiceToken)
	}
	if params.AccessHandler != nil {
		params.AccessHandler.MountRoutes(r, params.AccessMiddleware, params.ServiceToken)
	}
	if params.AuditHandler != nil {
		params.AuditHandler.MountRoutes(r, params.AccessMiddleware.RequireRole(access.RoleSuperAdmin), params.ServiceToken)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func readinessHandler(checks map[string]ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		body := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				if logger != nil {
					logger.Warn("readiness check failed", slog.String("dependency", name), slog.Any("error", err))
				}
				body[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		httpx.JSON(w, status, body)
	}
}
