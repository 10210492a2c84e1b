package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
)

// =============================================================================
// ORDER NUMBERS
// =============================================================================

// nextSeqSQL reserves the next sequence of a month in one statement. The
// first reservation of a month starts after the highest number already in
// work_orders, so databases written before order_sequences existed continue
// their numbering. A month whose counter has reached ?3 is left untouched
// and no row is returned.
const nextSeqSQL = `
	INSERT INTO order_sequences (year_month, last_seq)
	VALUES (?1, MIN((SELECT COALESCE(MAX(CAST(substr(order_number, 8) AS INTEGER)), 0)
	                 FROM work_orders WHERE order_number LIKE ?2) + 1, ?3 + 1))
	ON CONFLICT(year_month) DO UPDATE SET last_seq = MAX(last_seq + 1, excluded.last_seq)
	WHERE order_sequences.last_seq < ?3
	RETURNING last_seq`

// NextOrderNumber reserves the next work order number of the current month.
// Each call returns a new number; numbers reserved but never saved leave
// gaps.
func (s *Store) NextOrderNumber(ctx context.Context) (string, error) {
	return s.NextOrderNumberAt(ctx, s.now())
}

// NextOrderNumberAt reserves the next number of the month containing t.
func (s *Store) NextOrderNumberAt(ctx context.Context, t time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextOrderNumber(ctx, s.rec, t)
}

func nextOrderNumber(ctx context.Context, rs generic.RecordStore, t time.Time) (string, error) {
	prefix := facility.OrderPrefix(t)
	rows, err := rs.Query(ctx, nextSeqSQL, prefix, prefix+"-%", facility.MaxOrderSeq)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", generic.Invalid("work_order", "order_number", "sequence exhausted for %s", prefix)
	}
	seq := int(rows[0].Int64("last_seq"))
	if seq > facility.MaxOrderSeq {
		return "", generic.Invalid("work_order", "order_number", "sequence exhausted for %s", prefix)
	}
	return facility.FormatOrderNumber(prefix, seq), nil
}

// =============================================================================
// WORK ORDERS
// =============================================================================

// workOrderSelect joins the names printed on the order: wo work order,
// p project, c client, m manager, cr creator.
const workOrderSelect = `
	SELECT wo.*,
	       p.title AS project_title,
	       c.name AS client_name,
	       m.name AS manager_name,
	       cr.name AS creator_name
	FROM work_orders wo
	LEFT JOIN projects p ON wo.project_id = p.id
	LEFT JOIN clients c ON p.client_id = c.id
	LEFT JOIN workers m ON wo.manager_id = m.id
	LEFT JOIN workers cr ON wo.creator_id = cr.id`

var workOrderAliases = map[string]generic.Table{
	"wo": generic.TableWorkOrders,
	"p":  generic.TableProjects,
	"c":  generic.TableClients,
	"m":  generic.TableWorkers,
	"cr": generic.TableWorkers,
}

// SaveWorkOrder inserts o when its ID is zero, assigning the next order
// number if it has none, and updates it otherwise. The saved order is
// returned with ID and number filled in. A number already used by another
// order fails with ErrDuplicate.
func (s *Store) SaveWorkOrder(ctx context.Context, o facility.WorkOrder) (facility.WorkOrder, error) {
	if err := o.Validate(); err != nil {
		return o, err
	}

	if o.ID != 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := updateEntity(ctx, s.rec, generic.TableWorkOrders, o.ID, workOrderUpdate{o}); err != nil {
			return o, err
		}
		return o, nil
	}

	err := s.WithTx(ctx, func(rs generic.RecordStore) error {
		if strings.TrimSpace(o.OrderNumber) == "" {
			number, err := nextOrderNumber(ctx, rs, s.now())
			if err != nil {
				return err
			}
			o.OrderNumber = number
		}
		id, err := rs.Insert(ctx, generic.TableWorkOrders, o.Record())
		if err != nil {
			return err
		}
		o.ID = id
		return nil
	})
	if err != nil {
		return o, err
	}
	return o, nil
}

// workOrderUpdate keeps the stored number when the update carries none.
type workOrderUpdate struct{ o facility.WorkOrder }

func (u workOrderUpdate) Validate() error { return nil }

func (u workOrderUpdate) Record() generic.Record {
	rec := u.o.Record()
	if rec.String("order_number") == "" {
		delete(rec, "order_number")
	}
	return rec
}

// GetWorkOrder returns the work order with joined names, or nil.
func (s *Store) GetWorkOrder(ctx context.Context, id int64) (*facility.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx, workOrderSelect+` WHERE wo.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	o := facility.WorkOrderFromRecord(rows[0])
	return &o, nil
}

// WorkOrderFilter narrows ListWorkOrders. Zero fields do not filter.
type WorkOrderFilter struct {
	Search    string // site name, order number or project title
	ProjectID int64
}

func (f WorkOrderFilter) condition() generic.Condition {
	var conds []generic.Condition
	if text := strings.TrimSpace(f.Search); text != "" {
		conds = append(conds, generic.Or(
			generic.Contains(generic.Of("wo", "site_name"), text),
			generic.Contains(generic.Of("wo", "order_number"), text),
			generic.Contains(generic.Of("p", "title"), text),
		))
	}
	if f.ProjectID > 0 {
		conds = append(conds, generic.Eq(generic.Of("wo", "project_id"), f.ProjectID))
	}
	return generic.And(conds...)
}

// ListWorkOrders returns work orders newest first.
func (s *Store) ListWorkOrders(ctx context.Context, f WorkOrderFilter) ([]facility.WorkOrder, error) {
	where := f.condition()
	if err := checkAliased(where.Columns(), workOrderAliases); err != nil {
		return nil, err
	}
	query := workOrderSelect
	cond, args := where.Build()
	if cond != "" {
		query += " WHERE " + cond
	}
	query += " ORDER BY wo.created_at DESC, wo.id DESC"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return convert(rows, facility.WorkOrderFromRecord), nil
}

// DeleteWorkOrder removes a work order. Its number is not reused.
func (s *Store) DeleteWorkOrder(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteByID(ctx, s.rec, generic.TableWorkOrders, id)
}
