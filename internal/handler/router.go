package handler

import (
	"net/http"
	"time"

	"github.com/classforge/feeplan-api/internal/config"
	"github.com/classforge/feeplan-api/internal/infra/observability"
	"github.com/classforge/feeplan-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Read endpoints are open; mutating endpoints sit behind bearer-token
// auth issued by the surrounding school-management platform.
func NewRouter(svc *service.FeePlanService, metrics *observability.Metrics, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Schedule preview and dry-run validation: stateless, open.
		r.Post("/fee-plans/preview", previewScheduleHandler(svc, logger))
		r.Post("/fee-plans/validate", validateDraftHandler(svc, logger))

		// Reads: open.
		r.Get("/fee-plans", listFeePlansHandler(svc, logger))
		r.Get("/fee-plans/{planId}", getFeePlanHandler(svc, logger))
		r.Get("/fee-types", listFeeTypesHandler(svc, logger))
		r.Get("/metrics/fees", feeMetricsHandler(metrics))

		// Mutations: bearer token required.
		r.Group(func(r chi.Router) {
			if cfg.AuthEnabled {
				r.Use(JWTAuthMiddleware(cfg.JWTSecret, logger))
			}
			r.Post("/fee-plans", createFeePlanHandler(svc, logger))
			r.Put("/fee-plans/{planId}", updateFeePlanHandler(svc, logger))
			r.Delete("/fee-plans/{planId}", deleteFeePlanHandler(svc, logger))
		})
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(svc *service.FeePlanService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		status := "healthy"
		start := time.Now()
		_, err := svc.ListFeeTypes(r.Context())
		latency := time.Since(start).Milliseconds()
		if err != nil {
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"services": []map[string]any{
				{"name": "feeplan-api", "status": "healthy", "latency_ms": 0, "last_checked": now},
				{"name": "supabase", "status": status, "latency_ms": latency, "last_checked": now},
			},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func feeMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetFeeSnapshot())
	}
}
