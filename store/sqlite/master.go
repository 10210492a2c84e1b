package sqlite

import (
	"context"
	"fmt"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

// entity is implemented by every facility type the store writes.
type entity interface {
	Validate() error
	Record() generic.Record
}

var (
	colID   generic.Column = "id"
	colName generic.Column = "name"
)

func byID(id int64) generic.Condition { return generic.Eq(colID, id) }

var byName = generic.OrderBy{Column: colName, Order: generic.Asc}

// createEntity validates and inserts e.
func createEntity(ctx context.Context, rs generic.RecordStore, table generic.Table, e entity) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	return rs.Insert(ctx, table, e.Record())
}

// updateEntity validates and updates row id, returning ErrNotFound when the
// row does not exist.
func updateEntity(ctx context.Context, rs generic.RecordStore, table generic.Table, id int64, e entity) error {
	if id <= 0 {
		return generic.Invalid(string(table), "id", "required")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	n, err := rs.Update(ctx, table, e.Record(), byID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, generic.ErrNotFound)
	}
	return nil
}

func deleteByID(ctx context.Context, rs generic.RecordStore, table generic.Table, id int64) error {
	n, err := rs.Delete(ctx, table, byID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, generic.ErrNotFound)
	}
	return nil
}

// getOne returns nil, nil when no row matches.
func getOne[T any](ctx context.Context, rs generic.RecordStore, table generic.Table, where generic.Condition, conv func(generic.Record) T) (*T, error) {
	rows, err := rs.Select(ctx, table, nil, where)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	v := conv(rows[0])
	return &v, nil
}

func listOf[T any](ctx context.Context, rs generic.RecordStore, table generic.Table, where generic.Condition, conv func(generic.Record) T, order ...generic.OrderBy) ([]T, error) {
	rows, err := rs.Select(ctx, table, nil, where, order...)
	if err != nil {
		return nil, err
	}
	return convert(rows, conv), nil
}

func convert[T any](rows []generic.Record, conv func(generic.Record) T) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = conv(r)
	}
	return out
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Store) CreateClient(ctx context.Context, c facility.Client) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createEntity(ctx, s.rec, generic.TableClients, c)
}

func (s *Store) UpdateClient(ctx context.Context, c facility.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEntity(ctx, s.rec, generic.TableClients, c.ID, c)
}

// GetClient returns nil when the client does not exist.
func (s *Store) GetClient(ctx context.Context, id int64) (*facility.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOne(ctx, s.rec, generic.TableClients, byID(id), facility.ClientFromRecord)
}

// ListClients returns every client ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]facility.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOf(ctx, s.rec, generic.TableClients, generic.Condition{}, facility.ClientFromRecord, byName)
}

// SearchClients matches name, address or phone.
func (s *Store) SearchClients(ctx context.Context, text string) ([]facility.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	where := generic.Or(
		generic.Contains(colName, text),
		generic.Contains("address", text),
		generic.Contains("phone", text),
	)
	return listOf(ctx, s.rec, generic.TableClients, where, facility.ClientFromRecord, byName)
}

// DeleteClient removes a client. Clients that still have projects are
// rejected with ErrConstraint.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteByID(ctx, s.rec, generic.TableClients, id)
}

// CountProjectsForClient is shown before a delete is confirmed.
func (s *Store) CountProjectsForClient(ctx context.Context, id int64) (int64, error) {
	return s.countProjects(ctx, "client_id", id)
}

// =============================================================================
// WORKERS
// =============================================================================

func (s *Store) CreateWorker(ctx context.Context, w facility.Worker) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createEntity(ctx, s.rec, generic.TableWorkers, w)
}

func (s *Store) UpdateWorker(ctx context.Context, w facility.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEntity(ctx, s.rec, generic.TableWorkers, w.ID, w)
}

// GetWorker returns nil when the worker does not exist.
func (s *Store) GetWorker(ctx context.Context, id int64) (*facility.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOne(ctx, s.rec, generic.TableWorkers, byID(id), facility.WorkerFromRecord)
}

// ListWorkers returns every worker ordered by name.
func (s *Store) ListWorkers(ctx context.Context) ([]facility.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOf(ctx, s.rec, generic.TableWorkers, generic.Condition{}, facility.WorkerFromRecord, byName)
}

// SearchWorkers matches name or phone.
func (s *Store) SearchWorkers(ctx context.Context, text string) ([]facility.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	where := generic.Or(
		generic.Contains(colName, text),
		generic.Contains("phone", text),
	)
	return listOf(ctx, s.rec, generic.TableWorkers, where, facility.WorkerFromRecord, byName)
}

// DeleteWorker removes the worker and its project assignments in one
// transaction. A worker still blamed for trouble on a project or named on a
// work order is rejected with ErrConstraint and nothing is removed.
func (s *Store) DeleteWorker(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(rs generic.RecordStore) error {
		if _, err := rs.Delete(ctx, generic.TableProjectWorkers, generic.Eq("worker_id", id)); err != nil {
			return err
		}
		return deleteByID(ctx, rs, generic.TableWorkers, id)
	})
}

// ListProjectsForWorker returns the projects a worker is assigned to.
func (s *Store) ListProjectsForWorker(ctx context.Context, workerID int64) ([]facility.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx, projectSelect+`
		JOIN project_workers pw ON pw.project_id = p.id
		WHERE pw.worker_id = ?
		ORDER BY p.created_at DESC, p.id DESC`, workerID)
	if err != nil {
		return nil, err
	}
	return convert(rows, facility.ProjectFromRecord), nil
}

// =============================================================================
// SERVICES
// =============================================================================

func (s *Store) CreateService(ctx context.Context, svc facility.Service) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createEntity(ctx, s.rec, generic.TableServices, svc)
}

func (s *Store) UpdateService(ctx context.Context, svc facility.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEntity(ctx, s.rec, generic.TableServices, svc.ID, svc)
}

// GetService returns nil when the service does not exist.
func (s *Store) GetService(ctx context.Context, id int64) (*facility.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOne(ctx, s.rec, generic.TableServices, byID(id), facility.ServiceFromRecord)
}

// ListServices returns every service ordered by name.
func (s *Store) ListServices(ctx context.Context) ([]facility.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOf(ctx, s.rec, generic.TableServices, generic.Condition{}, facility.ServiceFromRecord, byName)
}

// SearchServices matches name or description.
func (s *Store) SearchServices(ctx context.Context, text string) ([]facility.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	where := generic.Or(
		generic.Contains(colName, text),
		generic.Contains("description", text),
	)
	return listOf(ctx, s.rec, generic.TableServices, where, facility.ServiceFromRecord, byName)
}

// DeleteService removes a service. Services used by projects are rejected
// with ErrConstraint.
func (s *Store) DeleteService(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteByID(ctx, s.rec, generic.TableServices, id)
}

// CountProjectsForService is shown before a delete is confirmed.
func (s *Store) CountProjectsForService(ctx context.Context, id int64) (int64, error) {
	return s.countProjects(ctx, "service_id", id)
}

func (s *Store) countProjects(ctx context.Context, col generic.Column, id int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := generic.Eq(col, id)
	if err := generic.TableProjects.CheckColumns(where.Columns()); err != nil {
		return 0, err
	}
	cond, args := where.Build()
	rows, err := s.rec.Query(ctx, `SELECT COUNT(*) AS n FROM projects WHERE `+cond, args...)
	if err != nil {
		return 0, err
	}
	return rows[0].Int64("n"), nil
}
