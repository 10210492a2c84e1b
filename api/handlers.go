/*
handlers.go - HTTP API handlers for the facility-services engine

PURPOSE:
  Exposes the store, the authenticator and the reporting engine via a REST
  API. Handles HTTP request/response, JSON serialization, and delegates to
  the store.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                 Password login, returns a token
    PUT    /api/auth/password              Change own password
    GET    /api/auth/me                    Current identity

  Master data (clients, workers, services):
    GET    /api/{kind}?q=                  List or search
    POST   /api/{kind}                     Create
    GET    /api/{kind}/{id}                Get
    PUT    /api/{kind}/{id}                Update
    DELETE /api/{kind}/{id}                Delete
    GET    /api/{kind}/{id}/project-count  Projects referencing it

  Projects, photos, work orders:  see projects.go, workorders.go
  Statistics and sales targets:   see stats.go
  Users (admin):                  see auth.go

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Auth / Tokens: password verification and bearer tokens
  - Reports: reporting.Engine over the store
  - Photos: photo file import

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown columns
  - 401: Missing token, invalid credentials
  - 403: Insufficient level
  - 404: Resource not found
  - 409: Duplicate key, row still referenced
  - 500: Internal errors (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/auth"
	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
	"github.com/tcworks/tcmanage/metrics"
	"github.com/tcworks/tcmanage/reporting"
	"github.com/tcworks/tcmanage/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures a Handler.
type Options struct {
	Auth      auth.Options
	Tokens    *auth.TokenIssuer
	PhotoDir  string
	MaxPhotos int
	Metrics   *metrics.Metrics // optional
	Logger    *zap.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Auth    *auth.Authenticator
	Tokens  *auth.TokenIssuer
	Reports *reporting.Engine
	Photos  *facility.PhotoImporter
	Metrics *metrics.Metrics

	logger *zap.Logger
	clock  func() time.Time
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	authOpts := opts.Auth
	if authOpts.Logger == nil {
		authOpts.Logger = logger
	}
	return &Handler{
		Store:   store,
		Auth:    auth.NewAuthenticator(store, authOpts),
		Tokens:  opts.Tokens,
		Reports: reporting.NewEngine(store),
		Photos: &facility.PhotoImporter{
			Dir:      opts.PhotoDir,
			MaxBatch: opts.MaxPhotos,
			Registry: store,
			Logger:   logger,
		},
		Metrics: opts.Metrics,
		logger:  logger,
		clock:   time.Now,
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients, or those matching ?q=.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	var (
		clients []facility.Client
		err     error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		clients, err = h.Store.SearchClients(r.Context(), q)
	} else {
		clients, err = h.Store.ListClients(r.Context())
	}
	if err != nil {
		h.fail(w, r, "Failed to list clients", err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Store.GetClient(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get client", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Client not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateClient creates a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var c facility.Client
	if !decode(w, r, &c) {
		return
	}
	id, err := h.Store.CreateClient(r.Context(), c)
	if err != nil {
		h.fail(w, r, "Failed to create client", err)
		return
	}
	c.ID = id
	writeJSON(w, http.StatusCreated, c)
}

// UpdateClient replaces a client's fields.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var c facility.Client
	if !decode(w, r, &c) {
		return
	}
	c.ID = id
	if err := h.Store.UpdateClient(r.Context(), c); err != nil {
		h.fail(w, r, "Failed to update client", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteClient removes a client without projects.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteClient(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CountClientProjects is shown before a delete is confirmed.
func (h *Handler) CountClientProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := h.Store.CountProjectsForClient(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to count projects", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers, or those matching ?q=.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	var (
		workers []facility.Worker
		err     error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		workers, err = h.Store.SearchWorkers(r.Context(), q)
	} else {
		workers, err = h.Store.ListWorkers(r.Context())
	}
	if err != nil {
		h.fail(w, r, "Failed to list workers", err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	wk, err := h.Store.GetWorker(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get worker", err)
		return
	}
	if wk == nil {
		writeError(w, http.StatusNotFound, "Worker not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var wk facility.Worker
	if !decode(w, r, &wk) {
		return
	}
	id, err := h.Store.CreateWorker(r.Context(), wk)
	if err != nil {
		h.fail(w, r, "Failed to create worker", err)
		return
	}
	wk.ID = id
	writeJSON(w, http.StatusCreated, wk)
}

func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var wk facility.Worker
	if !decode(w, r, &wk) {
		return
	}
	wk.ID = id
	if err := h.Store.UpdateWorker(r.Context(), wk); err != nil {
		h.fail(w, r, "Failed to update worker", err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

// DeleteWorker removes a worker and its project assignments.
func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteWorker(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete worker", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWorkerProjects returns the projects a worker is assigned to.
func (h *Handler) ListWorkerProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	projects, err := h.Store.ListProjectsForWorker(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// =============================================================================
// SERVICE HANDLERS
// =============================================================================

// ListServices returns all services, or those matching ?q=.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	var (
		services []facility.Service
		err      error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		services, err = h.Store.SearchServices(r.Context(), q)
	} else {
		services, err = h.Store.ListServices(r.Context())
	}
	if err != nil {
		h.fail(w, r, "Failed to list services", err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	svc, err := h.Store.GetService(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get service", err)
		return
	}
	if svc == nil {
		writeError(w, http.StatusNotFound, "Service not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var svc facility.Service
	if !decode(w, r, &svc) {
		return
	}
	id, err := h.Store.CreateService(r.Context(), svc)
	if err != nil {
		h.fail(w, r, "Failed to create service", err)
		return
	}
	svc.ID = id
	writeJSON(w, http.StatusCreated, svc)
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var svc facility.Service
	if !decode(w, r, &svc) {
		return
	}
	svc.ID = id
	if err := h.Store.UpdateService(r.Context(), svc); err != nil {
		h.fail(w, r, "Failed to update service", err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteService(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete service", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CountServiceProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := h.Store.CountProjectsForService(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to count projects", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, generic.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrDuplicate), errors.Is(err, generic.ErrConstraint):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status its kind maps to. Internal errors are
// logged and their details withheld.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), fmt.Errorf("%q is not a positive integer", raw))
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent yields def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, generic.Invalid("query", name, "%q is not an integer", raw)
	}
	return n, nil
}
