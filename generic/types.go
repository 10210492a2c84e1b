/*
Package generic provides the domain-agnostic building blocks of the engine.

PURPOSE:
  Everything the storage layer needs to talk about rows without knowing what a
  client or a project is: the table/column vocabulary, dynamic records, the
  condition builder, money and calendar dates, storage interfaces and the error
  taxonomy. Domain packages (facility, auth, reporting) build on top of it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal amounts (prices, labor costs, sales targets)
  - Flag:  SQLite INTEGER 0/1 columns surfaced as bool

DESIGN PRINCIPLES:
  1. Fixed vocabulary: tables and columns come from a closed set (records.go)
  2. Bound values: user input never reaches SQL text (query.go)
  3. Precision: money is decimal.Decimal in Go, REAL on disk for file compatibility

SEE ALSO:
  - records.go: Table/Column vocabulary and Record accessors
  - query.go:   Condition builder and sort allow-lists
  - errors.go:  Error taxonomy
  - store.go:   RecordStore / TxStore interfaces
*/
package generic

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Yen builds a money amount from a whole number.
func Yen(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// MoneyFromFloat converts a REAL column value. Values are rounded to two
// places so float noise from SUM() does not leak into reports.
func MoneyFromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

// MoneyToFloat converts an amount for storage in a REAL column.
func MoneyToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// ParseMoney parses a decimal string; empty input is zero.
func ParseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Percent returns part/whole*100 rounded to two places.
// A zero whole yields zero rather than an error.
func Percent(part, whole int64) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole)).
		Round(2)
}

// Ratio returns part/whole*100 for decimal amounts, zero when whole is zero.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(decimal.NewFromInt(100)).Div(whole).Round(2)
}

// =============================================================================
// FLAGS
// =============================================================================

// FlagValue converts a bool to the 0/1 integer stored in flag columns.
func FlagValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
