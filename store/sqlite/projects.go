package sqlite

import (
	"context"
	"fmt"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

// projectSelect is the listing query: p projects, c clients, s services,
// w trouble worker.
const projectSelect = `
	SELECT p.*, c.name AS client_name, s.name AS service_name,
	       w.name AS trouble_worker_name
	FROM projects p
	JOIN clients c ON p.client_id = c.id
	JOIN services s ON p.service_id = s.id
	LEFT JOIN workers w ON p.trouble_worker_id = w.id`

var projectAliases = map[string]generic.Table{
	"p": generic.TableProjects,
	"c": generic.TableClients,
	"s": generic.TableServices,
	"w": generic.TableWorkers,
}

// checkAliased validates qualified columns against the alias map.
func checkAliased(cols []generic.Column, aliases map[string]generic.Table) error {
	for _, c := range cols {
		table, ok := aliases[c.Qualifier()]
		if !ok {
			return fmt.Errorf("%w: %s", generic.ErrUnknownColumn, c)
		}
		if !table.HasColumn(c) {
			return fmt.Errorf("%w: %s.%s", generic.ErrUnknownColumn, table, c.Name())
		}
	}
	return nil
}

// CreateProject validates p, inserts it and assigns workerIDs, all in one
// transaction.
func (s *Store) CreateProject(ctx context.Context, p facility.Project, workerIDs []int64) (int64, error) {
	if err := p.Validate(true); err != nil {
		return 0, err
	}

	var id int64
	err := s.WithTx(ctx, func(rs generic.RecordStore) error {
		if err := checkProjectReferences(ctx, rs, p); err != nil {
			return err
		}
		var err error
		id, err = rs.Insert(ctx, generic.TableProjects, p.Record())
		if err != nil {
			return err
		}
		for _, wid := range workerIDs {
			if err := addProjectWorker(ctx, rs, id, wid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateProject validates and saves p. A non-nil workerIDs replaces the
// project's workers with exactly that set in the same transaction; nil
// leaves them untouched.
func (s *Store) UpdateProject(ctx context.Context, p facility.Project, workerIDs []int64) error {
	if err := p.Validate(false); err != nil {
		return err
	}
	return s.WithTx(ctx, func(rs generic.RecordStore) error {
		if err := checkProjectReferences(ctx, rs, p); err != nil {
			return err
		}
		if err := updateEntity(ctx, rs, generic.TableProjects, p.ID, projectUpdate{p}); err != nil {
			return err
		}
		if workerIDs == nil {
			return nil
		}
		return replaceProjectWorkers(ctx, rs, p.ID, workerIDs)
	})
}

// projectUpdate skips the create-only validation rules.
type projectUpdate struct{ p facility.Project }

func (u projectUpdate) Validate() error        { return nil }
func (u projectUpdate) Record() generic.Record { return u.p.Record() }

// checkProjectReferences turns dangling references into validation errors
// naming the field.
func checkProjectReferences(ctx context.Context, rs generic.RecordStore, p facility.Project) error {
	refs := []struct {
		table generic.Table
		field string
		id    *int64
	}{
		{generic.TableClients, "client_id", &p.ClientID},
		{generic.TableServices, "service_id", &p.ServiceID},
		{generic.TableWorkers, "trouble_worker_id", p.TroubleWorkerID},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		ok, err := exists(ctx, rs, ref.table, *ref.id)
		if err != nil {
			return err
		}
		if !ok {
			return generic.Invalid("project", ref.field, "%s %d does not exist", ref.table, *ref.id)
		}
	}
	return nil
}

func exists(ctx context.Context, rs generic.RecordStore, table generic.Table, id int64) (bool, error) {
	rows, err := rs.Select(ctx, table, []generic.Column{colID}, byID(id))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// GetProject returns the project with joined names, or nil.
func (s *Store) GetProject(ctx context.Context, id int64) (*facility.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx, projectSelect+` WHERE p.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := facility.ProjectFromRecord(rows[0])
	return &p, nil
}

// ListProjects returns projects matching q. Sort column and order come from
// allow-lists; anything else falls back to created_at DESC.
func (s *Store) ListProjects(ctx context.Context, q facility.ProjectQuery) ([]facility.Project, error) {
	where, err := q.Condition()
	if err != nil {
		return nil, err
	}
	if err := checkAliased(where.Columns(), projectAliases); err != nil {
		return nil, err
	}

	query := projectSelect
	cond, args := where.Build()
	if cond != "" {
		query += " WHERE " + cond
	}
	query += " ORDER BY " + q.OrderBy().String() + ", p.id DESC"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return convert(rows, facility.ProjectFromRecord), nil
}

// DeleteProject removes a project with its worker links and photo rows and
// detaches its work orders, in one transaction. It returns the paths of the
// removed photos so the caller can delete the files.
func (s *Store) DeleteProject(ctx context.Context, id int64) ([]string, error) {
	var paths []string
	err := s.WithTx(ctx, func(rs generic.RecordStore) error {
		photos, err := rs.Select(ctx, generic.TableProjectPhotos,
			[]generic.Column{"photo_path"}, generic.Eq(colProjectID, id))
		if err != nil {
			return err
		}
		for _, r := range photos {
			paths = append(paths, r.String("photo_path"))
		}

		if _, err := rs.Delete(ctx, generic.TableProjectWorkers, generic.Eq(colProjectID, id)); err != nil {
			return err
		}
		if _, err := rs.Delete(ctx, generic.TableProjectPhotos, generic.Eq(colProjectID, id)); err != nil {
			return err
		}
		if _, err := rs.Update(ctx, generic.TableWorkOrders,
			generic.Record{"project_id": nil}, generic.Eq(colProjectID, id)); err != nil {
			return err
		}
		return deleteByID(ctx, rs, generic.TableProjects, id)
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
