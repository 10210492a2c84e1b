package sqlite

import (
	"context"
	"errors"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

var (
	colProjectID generic.Column = "project_id"
	colWorkerID  generic.Column = "worker_id"
)

// =============================================================================
// PROJECT WORKERS - many-to-many between projects and workers
// =============================================================================

// AddProjectWorker links a worker to a project. Adding an existing link is a
// no-op.
func (s *Store) AddProjectWorker(ctx context.Context, projectID, workerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addProjectWorker(ctx, s.rec, projectID, workerID)
}

func addProjectWorker(ctx context.Context, rs generic.RecordStore, projectID, workerID int64) error {
	if projectID <= 0 {
		return generic.Invalid("project_worker", "project_id", "required")
	}
	if workerID <= 0 {
		return generic.Invalid("project_worker", "worker_id", "required")
	}
	_, err := rs.Insert(ctx, generic.TableProjectWorkers, generic.Record{
		"project_id": projectID,
		"worker_id":  workerID,
	})
	if errors.Is(err, generic.ErrDuplicate) {
		return nil
	}
	return err
}

// RemoveProjectWorker deletes the link between a project and a worker.
func (s *Store) RemoveProjectWorker(ctx context.Context, projectID, workerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.rec.Delete(ctx, generic.TableProjectWorkers, generic.And(
		generic.Eq(colProjectID, projectID),
		generic.Eq(colWorkerID, workerID),
	))
	return err
}

// SetProjectWorkers replaces the project's workers with workerIDs in one
// transaction.
func (s *Store) SetProjectWorkers(ctx context.Context, projectID int64, workerIDs []int64) error {
	return s.WithTx(ctx, func(rs generic.RecordStore) error {
		return replaceProjectWorkers(ctx, rs, projectID, workerIDs)
	})
}

func replaceProjectWorkers(ctx context.Context, rs generic.RecordStore, projectID int64, workerIDs []int64) error {
	if _, err := rs.Delete(ctx, generic.TableProjectWorkers, generic.Eq(colProjectID, projectID)); err != nil {
		return err
	}
	for _, wid := range workerIDs {
		if err := addProjectWorker(ctx, rs, projectID, wid); err != nil {
			return err
		}
	}
	return nil
}

// ProjectWorkers returns the workers linked to a project, ordered by name.
func (s *Store) ProjectWorkers(ctx context.Context, projectID int64) ([]facility.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx, `
		SELECT w.*
		FROM workers w
		JOIN project_workers pw ON w.id = pw.worker_id
		WHERE pw.project_id = ?
		ORDER BY w.name, w.id`, projectID)
	if err != nil {
		return nil, err
	}
	return convert(rows, facility.WorkerFromRecord), nil
}

// ProjectWorkerIDs returns the ids of the workers linked to a project.
func (s *Store) ProjectWorkerIDs(ctx context.Context, projectID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Select(ctx, generic.TableProjectWorkers,
		[]generic.Column{colWorkerID}, generic.Eq(colProjectID, projectID),
		generic.OrderBy{Column: colWorkerID, Order: generic.Asc})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.Int64("worker_id")
	}
	return ids, nil
}

// =============================================================================
// PROJECT PHOTOS - photo rows and the project's photo counters
// =============================================================================

// refreshPhotoCounters recomputes has_photos and photo_count from the photo
// rows, so the counters cannot drift from the table.
func refreshPhotoCounters(ctx context.Context, rs generic.RecordStore, projectID int64) error {
	_, err := rs.Exec(ctx, `
		UPDATE projects
		SET photo_count = (SELECT COUNT(*) FROM project_photos WHERE project_id = ?1),
		    has_photos  = (SELECT COUNT(*) > 0 FROM project_photos WHERE project_id = ?1)
		WHERE id = ?1`, projectID)
	return err
}

// AddProjectPhoto inserts a photo row and updates the project's counters in
// one transaction.
func (s *Store) AddProjectPhoto(ctx context.Context, photo facility.ProjectPhoto) (int64, error) {
	if err := photo.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.WithTx(ctx, func(rs generic.RecordStore) error {
		var err error
		id, err = rs.Insert(ctx, generic.TableProjectPhotos, photo.Record())
		if err != nil {
			return err
		}
		return refreshPhotoCounters(ctx, rs, photo.ProjectID)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteProjectPhoto removes a photo row and updates the project's counters
// in one transaction. It returns the removed photo, or nil when there was
// none.
func (s *Store) DeleteProjectPhoto(ctx context.Context, photoID int64) (*facility.ProjectPhoto, error) {
	var removed *facility.ProjectPhoto
	err := s.WithTx(ctx, func(rs generic.RecordStore) error {
		photo, err := getOne(ctx, rs, generic.TableProjectPhotos, byID(photoID), facility.ProjectPhotoFromRecord)
		if err != nil || photo == nil {
			return err
		}
		if _, err := rs.Delete(ctx, generic.TableProjectPhotos, byID(photoID)); err != nil {
			return err
		}
		removed = photo
		return refreshPhotoCounters(ctx, rs, photo.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// GetProjectPhoto returns one photo, or nil.
func (s *Store) GetProjectPhoto(ctx context.Context, photoID int64) (*facility.ProjectPhoto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOne(ctx, s.rec, generic.TableProjectPhotos, byID(photoID), facility.ProjectPhotoFromRecord)
}

// ProjectPhotos returns a project's photos, oldest first.
func (s *Store) ProjectPhotos(ctx context.Context, projectID int64) ([]facility.ProjectPhoto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOf(ctx, s.rec, generic.TableProjectPhotos, generic.Eq(colProjectID, projectID),
		facility.ProjectPhotoFromRecord,
		generic.OrderBy{Column: "created_at", Order: generic.Asc},
		generic.OrderBy{Column: colID, Order: generic.Asc})
}
