package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

// maxUploadBytes bounds one multipart photo upload.
const maxUploadBytes = 32 << 20

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// projectQuery reads the listing filters:
// q, status, client_id, service_id, year, month, from, to, sort, order.
func projectQuery(r *http.Request) (facility.ProjectQuery, error) {
	v := r.URL.Query()
	q := facility.ProjectQuery{
		Search: v.Get("q"),
		Status: facility.ProjectStatus(strings.TrimSpace(v.Get("status"))),
		Sort:   generic.ProjectSort(v.Get("sort")),
		Order:  generic.SortOrder(v.Get("order")),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"year", &q.CompletionYear},
		{"month", &q.CompletionMonth},
	}
	for _, f := range ints {
		n, err := queryInt(r, f.name, 0)
		if err != nil {
			return q, err
		}
		*f.dst = n
	}
	for name, dst := range map[string]*int64{"client_id": &q.ClientID, "service_id": &q.ServiceID} {
		n, err := queryInt(r, name, 0)
		if err != nil {
			return q, err
		}
		*dst = int64(n)
	}
	for name, dst := range map[string]*generic.Date{"from": &q.From, "to": &q.To} {
		raw := strings.TrimSpace(v.Get(name))
		if raw == "" {
			continue
		}
		d, err := generic.ParseDate(raw)
		if err != nil {
			return q, generic.Invalid("query", name, "%q is not a date", raw)
		}
		*dst = d
	}
	return q, nil
}

// ListProjects returns projects matching the query string filters.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q, err := projectQuery(r)
	if err != nil {
		h.fail(w, r, "Invalid project filter", err)
		return
	}
	projects, err := h.Store.ListProjects(r.Context(), q)
	if err != nil {
		h.fail(w, r, "Failed to list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProject returns a project with its workers and photos.
// GET /api/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	p, err := h.Store.GetProject(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to get project", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Project not found", nil)
		return
	}
	workers, err := h.Store.ProjectWorkers(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to get project workers", err)
		return
	}
	photos, err := h.Store.ProjectPhotos(ctx, id)
	if err != nil {
		h.fail(w, r, "Failed to get project photos", err)
		return
	}

	writeJSON(w, http.StatusOK, ProjectDetailResponse{
		Project: *p,
		Workers: workers,
		Photos:  photos,
		Profit:  p.Profit(),
	})
}

// CreateProject creates a project and assigns its workers.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.Store.CreateProject(r.Context(), req.Project, req.WorkerIDs)
	if err != nil {
		h.fail(w, r, "Failed to create project", err)
		return
	}
	p, err := h.Store.GetProject(r.Context(), id)
	if err != nil || p == nil {
		h.fail(w, r, "Failed to reload project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProject saves a project; worker_ids, when present, replaces the
// assignment.
// PUT /api/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	req.Project.ID = id
	if err := h.Store.UpdateProject(r.Context(), req.Project, req.WorkerIDs); err != nil {
		h.fail(w, r, "Failed to update project", err)
		return
	}
	p, err := h.Store.GetProject(r.Context(), id)
	if err != nil || p == nil {
		h.fail(w, r, "Failed to reload project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject removes a project and then its photo files.
// DELETE /api/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	paths, err := h.Store.DeleteProject(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to delete project", err)
		return
	}
	for _, p := range paths {
		if err := h.Photos.Remove(p); err != nil {
			h.logger.Warn("photo file not removed", zap.String("path", p), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PROJECT WORKERS
// =============================================================================

// ListProjectWorkers returns the workers assigned to a project.
// GET /api/projects/{id}/workers
func (h *Handler) ListProjectWorkers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	workers, err := h.Store.ProjectWorkers(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to list project workers", err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

// SetProjectWorkers replaces the assignment with exactly the given workers.
// PUT /api/projects/{id}/workers
func (h *Handler) SetProjectWorkers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req WorkerIDsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Store.SetProjectWorkers(r.Context(), id, req.WorkerIDs); err != nil {
		h.fail(w, r, "Failed to set project workers", err)
		return
	}
	h.ListProjectWorkers(w, r)
}

// AddProjectWorker links one worker; linking twice is a no-op.
// POST /api/projects/{id}/workers/{workerID}
func (h *Handler) AddProjectWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	workerID, ok := pathID(w, r, "workerID")
	if !ok {
		return
	}
	if err := h.Store.AddProjectWorker(r.Context(), id, workerID); err != nil {
		h.fail(w, r, "Failed to add project worker", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveProjectWorker unlinks one worker.
// DELETE /api/projects/{id}/workers/{workerID}
func (h *Handler) RemoveProjectWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	workerID, ok := pathID(w, r, "workerID")
	if !ok {
		return
	}
	if err := h.Store.RemoveProjectWorker(r.Context(), id, workerID); err != nil {
		h.fail(w, r, "Failed to remove project worker", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PROJECT PHOTOS
// =============================================================================

// ListProjectPhotos returns a project's photos, oldest first.
// GET /api/projects/{id}/photos
func (h *Handler) ListProjectPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	photos, err := h.Store.ProjectPhotos(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to list photos", err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

// UploadProjectPhotos stores every file of the multipart field "photos".
// POST /api/projects/{id}/photos
func (h *Handler) UploadProjectPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No photos uploaded", nil)
		return
	}
	if h.Photos.MaxBatch > 0 && len(files) > h.Photos.MaxBatch {
		h.fail(w, r, "Too many photos", generic.Invalid("project_photo", "photos",
			"at most %d files per upload, got %d", h.Photos.MaxBatch, len(files)))
		return
	}

	results := make([]facility.ImportResult, 0, len(files))
	for _, fh := range files {
		res := facility.ImportResult{Source: fh.Filename}
		f, err := fh.Open()
		if err != nil {
			res.Err = err.Error()
			results = append(results, res)
			continue
		}
		photo, err := h.Photos.Save(r.Context(), id, fh.Filename, f)
		f.Close()
		if err != nil {
			if !generic.IsClientError(err) {
				h.fail(w, r, "Failed to store photo", err)
				return
			}
			res.Err = err.Error()
		}
		res.Photo = photo
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, results)
}

// ImportProjectPhotos copies files that already exist on the server host,
// the desktop import flow.
// POST /api/projects/{id}/photos/import
func (h *Handler) ImportProjectPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ImportPhotosRequest
	if !decode(w, r, &req) {
		return
	}
	results, err := h.Photos.Import(r.Context(), id, req.Files)
	if err != nil {
		h.fail(w, r, "Failed to import photos", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// GetPhotoFile serves the image of a photo.
// GET /api/photos/{id}/file
func (h *Handler) GetPhotoFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	photo, err := h.Store.GetProjectPhoto(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get photo", err)
		return
	}
	if photo == nil {
		writeError(w, http.StatusNotFound, "Photo not found", nil)
		return
	}
	http.ServeFile(w, r, photo.PhotoPath)
}

// DeletePhoto removes a photo row, updates the project's counters and
// deletes the file.
// DELETE /api/photos/{id}
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	photo, err := h.Store.DeleteProjectPhoto(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to delete photo", err)
		return
	}
	if photo == nil {
		writeError(w, http.StatusNotFound, "Photo not found", nil)
		return
	}
	if err := h.Photos.Remove(photo.PhotoPath); err != nil {
		h.logger.Warn("photo file not removed", zap.String("path", photo.PhotoPath), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
