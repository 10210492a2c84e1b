/*
store.go - Persistence interfaces

PURPOSE:
  Defines the contract between the domain packages and the database. One set
  of primitives serves every table; domain rules live above it.

KEY INTERFACES:
  RecordStore:   insert/update/delete/select/query over the table vocabulary
  TxStore:       RecordStore plus explicit transactions
  QueryObserver: receives timing for every statement (metrics)

CONTRACT:
  - Insert returns the generated row id
  - Update stamps updated_at on tables that carry it
  - Delete never cascades; callers remove dependent rows themselves
  - Select/Query return an empty, non-nil slice when nothing matches
  - Failures are *StorageError; unknown identifiers fail before SQL runs

IMPLEMENTATIONS:
  - store/sqlite: SQLite file database
*/
package generic

import (
	"context"
	"time"
)

// RecordStore provides the CRUD primitives shared by every entity.
type RecordStore interface {
	// Insert writes one row and returns its id.
	Insert(ctx context.Context, table Table, rec Record) (int64, error)

	// Update modifies rows matching where and returns the number affected.
	Update(ctx context.Context, table Table, rec Record, where Condition) (int64, error)

	// Delete removes rows matching where and returns the number affected.
	Delete(ctx context.Context, table Table, where Condition) (int64, error)

	// Select reads columns (all when empty) of rows matching where.
	Select(ctx context.Context, table Table, columns []Column, where Condition, order ...OrderBy) ([]Record, error)

	// Query runs a read statement written in this repository.
	Query(ctx context.Context, query string, args ...any) ([]Record, error)

	// Exec runs a write statement written in this repository.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// TxStore adds explicit transactions.
type TxStore interface {
	RecordStore

	// WithTx runs fn inside one transaction. A non-nil error from fn rolls
	// back every write fn made; nil commits.
	WithTx(ctx context.Context, fn func(RecordStore) error) error
}

// QueryObserver is notified after every statement.
type QueryObserver interface {
	ObserveQuery(op string, table Table, elapsed time.Duration, err error)
}
