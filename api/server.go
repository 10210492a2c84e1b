/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log (method, path, status, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the configured frontends
  5. Metrics:    Prometheus request counters, when enabled

ROUTE GROUPS:
  /health                 Liveness probe
  /metrics                Prometheus exposition
  /api/auth/login         Public
  everything else         Bearer token required
  /api/users/*            Administrators only
  PUT /api/targets/*      Administrators only
  photo import            Administrators only (reads server paths)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/auth/me", h.Me)
			r.Put("/auth/password", h.ChangePassword)

			// User administration
			r.Route("/users", func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Get("/", h.ListUsers)
				r.Put("/{id}/level", h.SetUserLevel)
			})

			// Master data
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.ListClients)
				r.Post("/", h.CreateClient)
				r.Get("/{id}", h.GetClient)
				r.Put("/{id}", h.UpdateClient)
				r.Delete("/{id}", h.DeleteClient)
				r.Get("/{id}/project-count", h.CountClientProjects)
			})
			r.Route("/workers", func(r chi.Router) {
				r.Get("/", h.ListWorkers)
				r.Post("/", h.CreateWorker)
				r.Get("/{id}", h.GetWorker)
				r.Put("/{id}", h.UpdateWorker)
				r.Delete("/{id}", h.DeleteWorker)
				r.Get("/{id}/projects", h.ListWorkerProjects)
			})
			r.Route("/services", func(r chi.Router) {
				r.Get("/", h.ListServices)
				r.Post("/", h.CreateService)
				r.Get("/{id}", h.GetService)
				r.Put("/{id}", h.UpdateService)
				r.Delete("/{id}", h.DeleteService)
				r.Get("/{id}/project-count", h.CountServiceProjects)
			})

			// Projects
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListProjects)
				r.Post("/", h.CreateProject)
				r.Get("/{id}", h.GetProject)
				r.Put("/{id}", h.UpdateProject)
				r.Delete("/{id}", h.DeleteProject)

				r.Get("/{id}/workers", h.ListProjectWorkers)
				r.Put("/{id}/workers", h.SetProjectWorkers)
				r.Post("/{id}/workers/{workerID}", h.AddProjectWorker)
				r.Delete("/{id}/workers/{workerID}", h.RemoveProjectWorker)

				r.Get("/{id}/photos", h.ListProjectPhotos)
				r.Post("/{id}/photos", h.UploadProjectPhotos)
				r.With(h.RequireAdmin).Post("/{id}/photos/import", h.ImportProjectPhotos)
			})
			r.Route("/photos", func(r chi.Router) {
				r.Get("/{id}/file", h.GetPhotoFile)
				r.Delete("/{id}", h.DeletePhoto)
			})

			// Work orders
			r.Route("/work-orders", func(r chi.Router) {
				r.Get("/", h.ListWorkOrders)
				r.Post("/", h.CreateWorkOrder)
				r.Get("/new", h.NewWorkOrder)
				r.Post("/next-number", h.NextOrderNumber)
				r.Get("/{id}", h.GetWorkOrder)
				r.Put("/{id}", h.UpdateWorkOrder)
				r.Delete("/{id}", h.DeleteWorkOrder)
			})

			// Statistics
			r.Route("/stats", func(r chi.Router) {
				r.Get("/summary", h.Summary)
				r.Get("/clients", h.ClientTotals)
				r.Get("/clients/monthly", h.ClientMonthlyTotals)
				r.Get("/services", h.ServiceTotals)
				r.Get("/prices", h.PriceStatistics)
				r.Get("/trouble/workers", h.WorkerTrouble)
				r.Get("/trouble/clients", h.ClientTrouble)
				r.Get("/comparison", h.YearlyComparison)
				r.Get("/dashboard", h.Dashboard)
				r.Get("/export", h.ExportStats)
			})

			// Sales targets
			r.Route("/targets/{year}", func(r chi.Router) {
				r.Get("/", h.ListSalesTargets)
				r.Get("/{month}", h.GetSalesTarget)
				r.With(h.RequireAdmin).Put("/{month}", h.SetSalesTarget)
			})
		})
	})

	return r
}

// requestLogger logs one line per request at a level matching its status.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}

			switch {
			case status >= 500:
				logger.Error("Server error", fields...)
			case status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Debug("Request completed", fields...)
			}
		})
	}
}
