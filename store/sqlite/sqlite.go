/*
Package sqlite provides the SQLite-backed store of the engine.

PURPOSE:
  One *Store owns the database handle. It implements generic.TxStore (the
  table-agnostic record primitives) and, on top of those, the entity
  operations: master data, projects, project workers and photos, work orders,
  sales targets, credentials and report queries.

FILES:
  sqlite.go:       Store, options, record primitives, transactions
  schema.go:       schema manager (tables, additive migrations, credential seed)
  master.go:       clients, workers, services
  projects.go:     projects and project listings
  associations.go: project <-> worker links, project photos and counters
  workorders.go:   work orders and order numbering
  targets.go:      sales targets
  credentials.go:  auth.CredentialStore
  reports.go:      aggregation queries

CONCURRENCY:
  Uses sync.RWMutex for thread-safety: reads share, writes and transactions
  are exclusive. Multi-statement writes (photo counters, association replace,
  cascading deletes) always run inside one transaction.

FOREIGN KEYS:
  Enforced. The connection is opened with _foreign_keys=on, so a write that
  would orphan a row fails with a StorageError matching ErrConstraint.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.Open("./data/tc_management.db", sqlite.Options{Logger: logger})
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/auth"
	"github.com/tcworks/tcmanage/generic"
)

// Options configures a Store. The zero value is usable.
type Options struct {
	Logger      *zap.Logger
	Observer    generic.QueryObserver
	Now         func() time.Time
	BusyTimeout time.Duration

	// ResetCredentials drops and recreates the credential table on open,
	// discarding every stored password. Business tables are never dropped.
	ResetCredentials bool

	// Bootstrap accounts are inserted only when the credential table is
	// created. Without any, no account exists until one is added.
	Bootstrap  []auth.BootstrapUser
	BcryptCost int
}

// Store implements generic.TxStore and the entity operations using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	rec    *recordStore
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

var _ generic.TxStore = (*Store)(nil)

// New opens a store with default options.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(dbPath, Options{})
}

// Open opens (creating if needed) the database at dbPath and runs the schema
// manager.
func Open(dbPath string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d",
		dbPath, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{
		db:     db,
		rec:    &recordStore{ex: db, obs: opts.Observer},
		opts:   opts,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats exposes connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// =============================================================================
// RECORD STORE (generic.RecordStore interface)
// =============================================================================

func (s *Store) Insert(ctx context.Context, table generic.Table, rec generic.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Insert(ctx, table, rec)
}

func (s *Store) Update(ctx context.Context, table generic.Table, rec generic.Record, where generic.Condition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Update(ctx, table, rec, where)
}

func (s *Store) Delete(ctx context.Context, table generic.Table, where generic.Condition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Delete(ctx, table, where)
}

func (s *Store) Select(ctx context.Context, table generic.Table, columns []generic.Column, where generic.Condition, order ...generic.OrderBy) ([]generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Select(ctx, table, columns, where, order...)
}

func (s *Store) Query(ctx context.Context, query string, args ...any) ([]generic.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Query(ctx, query, args...)
}

func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Exec(ctx, query, args...)
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, fn)
}

// inTx runs fn in a transaction. Callers hold s.mu.
func (s *Store) inTx(ctx context.Context, fn func(store generic.RecordStore) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &generic.StorageError{Op: "begin", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&recordStore{ex: sqlTx, obs: s.opts.Observer}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &generic.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// =============================================================================
// RECORD PRIMITIVES - shared by the store and its transactions
// =============================================================================

// executor is satisfied by *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// recordStore implements generic.RecordStore without locking.
type recordStore struct {
	ex  executor
	obs generic.QueryObserver
}

func (r *recordStore) Insert(ctx context.Context, table generic.Table, rec generic.Record) (int64, error) {
	cols := rec.Columns()
	if err := checkWrite("insert", table, cols); err != nil {
		return 0, err
	}

	names := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = string(c)
		args[i] = rec[string(c)]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), generic.Placeholders(len(cols)))

	res, err := r.exec(ctx, "insert", table, query, args)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &generic.StorageError{Op: "insert", Table: table, Err: err}
	}
	return id, nil
}

func (r *recordStore) Update(ctx context.Context, table generic.Table, rec generic.Record, where generic.Condition) (int64, error) {
	cols := rec.Columns()
	if err := checkWrite("update", table, cols); err != nil {
		return 0, err
	}
	if err := checkWhere("update", table, where); err != nil {
		return 0, err
	}

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols))
	stamped := false
	for _, c := range cols {
		sets = append(sets, string(c)+" = ?")
		args = append(args, rec[string(c)])
		stamped = stamped || c == "updated_at"
	}
	if table.Stamped() && !stamped {
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	}

	cond, condArgs := where.Build()
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), cond)

	res, err := r.exec(ctx, "update", table, query, append(args, condArgs...))
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (r *recordStore) Delete(ctx context.Context, table generic.Table, where generic.Condition) (int64, error) {
	if err := checkWhere("delete", table, where); err != nil {
		return 0, err
	}
	cond, args := where.Build()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, cond)

	res, err := r.exec(ctx, "delete", table, query, args)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (r *recordStore) Select(ctx context.Context, table generic.Table, columns []generic.Column, where generic.Condition, order ...generic.OrderBy) ([]generic.Record, error) {
	if err := table.CheckColumns(columns); err != nil {
		return nil, err
	}
	if err := table.CheckColumns(where.Columns()); err != nil {
		return nil, err
	}

	list := "*"
	if len(columns) > 0 {
		names := make([]string, len(columns))
		for i, c := range columns {
			names[i] = string(c)
		}
		list = strings.Join(names, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", list, table)
	cond, args := where.Build()
	if cond != "" {
		sb.WriteString(" WHERE " + cond)
	}
	if len(order) > 0 {
		terms := make([]string, len(order))
		for i, o := range order {
			if !table.HasColumn(o.Column) {
				return nil, fmt.Errorf("%w: %s.%s", generic.ErrUnknownColumn, table, o.Column.Name())
			}
			terms[i] = o.String()
		}
		sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	return r.query(ctx, "select", table, sb.String(), args)
}

func (r *recordStore) Query(ctx context.Context, query string, args ...any) ([]generic.Record, error) {
	return r.query(ctx, "query", "", query, args)
}

func (r *recordStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.exec(ctx, "exec", "", query, args)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (r *recordStore) exec(ctx context.Context, op string, table generic.Table, query string, args []any) (sql.Result, error) {
	start := time.Now()
	res, err := r.ex.ExecContext(ctx, query, args...)
	r.observe(op, table, start, err)
	if err != nil {
		return nil, storageError(op, table, err)
	}
	return res, nil
}

func (r *recordStore) query(ctx context.Context, op string, table generic.Table, query string, args []any) ([]generic.Record, error) {
	start := time.Now()
	rows, err := r.ex.QueryContext(ctx, query, args...)
	if err != nil {
		r.observe(op, table, start, err)
		return nil, storageError(op, table, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	r.observe(op, table, start, err)
	if err != nil {
		return nil, storageError(op, table, err)
	}
	return records, nil
}

func (r *recordStore) observe(op string, table generic.Table, start time.Time, err error) {
	if r.obs != nil {
		r.obs.ObserveQuery(op, table, time.Since(start), err)
	}
}

// scanRecords reads every row into a Record. The result is never nil.
func scanRecords(rows *sql.Rows) ([]generic.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := make([]generic.Record, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(generic.Record, len(cols))
		for i, c := range cols {
			rec[c] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// Helper functions
// =============================================================================

func checkWrite(op string, table generic.Table, cols []generic.Column) error {
	if len(cols) == 0 {
		return fmt.Errorf("%s %s: %w", op, table, generic.ErrEmptyRecord)
	}
	return table.CheckColumns(cols)
}

// checkWhere refuses unconditional updates and deletes.
func checkWhere(op string, table generic.Table, where generic.Condition) error {
	if where.IsZero() {
		return generic.Invalid(string(table), "where", "%s without a condition", op)
	}
	return table.CheckColumns(where.Columns())
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

func storageError(op string, table generic.Table, err error) error {
	return &generic.StorageError{Op: op, Table: table, Kind: constraintKind(err), Err: err}
}

// constraintKind maps driver constraint failures to ErrDuplicate or
// ErrConstraint; anything else maps to nil.
func constraintKind(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return generic.ErrDuplicate
		}
		if se.Code == sqlite3.ErrConstraint {
			return generic.ErrConstraint
		}
		return nil
	}
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicate
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isDuplicateColumnError matches the failure of an ALTER TABLE ADD COLUMN
// for a column that already exists.
func isDuplicateColumnError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}
