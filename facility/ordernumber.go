package facility

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tcworks/tcmanage/generic"
)

// Work order numbers look like 202501-0001: the year-month the number was
// issued in, a dash, and a 4-digit sequence that restarts every month.
const (
	OrderPrefixLayout = "200601"
	OrderSeqDigits    = 4
	MaxOrderSeq       = 9999
)

// OrderNumber is a parsed work order number.
type OrderNumber struct {
	YearMonth string // "YYYYMM"
	Seq       int
}

func (n OrderNumber) String() string {
	return FormatOrderNumber(n.YearMonth, n.Seq)
}

// OrderPrefix returns the year-month key for t.
func OrderPrefix(t time.Time) string {
	return t.Format(OrderPrefixLayout)
}

// FormatOrderNumber renders prefix and seq. seq is zero-padded to four
// digits; larger values are rendered as is.
func FormatOrderNumber(yearMonth string, seq int) string {
	return fmt.Sprintf("%s-%0*d", yearMonth, OrderSeqDigits, seq)
}

// ParseOrderNumber validates and splits a number.
func ParseOrderNumber(s string) (OrderNumber, error) {
	if len(s) != len(OrderPrefixLayout)+1+OrderSeqDigits || s[len(OrderPrefixLayout)] != '-' {
		return OrderNumber{}, generic.Invalid("work_order", "order_number", "expected YYYYMM-NNNN, got %q", s)
	}
	prefix := s[:len(OrderPrefixLayout)]
	if _, err := time.Parse(OrderPrefixLayout, prefix); err != nil {
		return OrderNumber{}, generic.Invalid("work_order", "order_number", "invalid year-month in %q", s)
	}
	digits := s[len(OrderPrefixLayout)+1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return OrderNumber{}, generic.Invalid("work_order", "order_number", "invalid sequence in %q", s)
		}
	}
	seq, err := strconv.Atoi(digits)
	if err != nil || seq < 1 {
		return OrderNumber{}, generic.Invalid("work_order", "order_number", "invalid sequence in %q", s)
	}
	return OrderNumber{YearMonth: prefix, Seq: seq}, nil
}
