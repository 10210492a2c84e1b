/*
query.go - Condition builder and sort allow-lists

PURPOSE:
  Replaces hand-concatenated WHERE strings. A Condition is a small tree of
  comparisons over Column identifiers; Build() renders SQL text from the
  identifiers and returns every value as a bound parameter.

RULES:
  - Column identifiers are checked against the table vocabulary before use
  - Values are never rendered into SQL text
  - Sort columns and orders come from enums; unknown input falls back to a
    documented default instead of failing

EXAMPLE:
  where := generic.And(
      generic.Eq("status", "完了"),
      generic.Contains("title", userInput),
  )
  sql, args := where.Build()   // "(status = ? AND title LIKE ? ESCAPE '\')", [...]
*/
package generic

import (
	"strings"
)

type condKind int

const (
	condNone condKind = iota
	condCompare
	condLike
	condNull
	condNotNull
	condIn
	condAnd
	condOr
	condExpr
)

// Condition is an immutable predicate. The zero value matches every row.
type Condition struct {
	kind   condKind
	col    Column
	op     string
	args   []any
	parts  []Condition
	expr   string
	refers []Column
}

func compare(col Column, op string, v any) Condition {
	return Condition{kind: condCompare, col: col, op: op, args: []any{v}}
}

func Eq(col Column, v any) Condition  { return compare(col, "=", v) }
func Ne(col Column, v any) Condition  { return compare(col, "<>", v) }
func Gte(col Column, v any) Condition { return compare(col, ">=", v) }
func Lte(col Column, v any) Condition { return compare(col, "<=", v) }
func Gt(col Column, v any) Condition  { return compare(col, ">", v) }
func Lt(col Column, v any) Condition  { return compare(col, "<", v) }

func IsNull(col Column) Condition  { return Condition{kind: condNull, col: col} }
func NotNull(col Column) Condition { return Condition{kind: condNotNull, col: col} }

// Like matches a raw LIKE pattern; callers own the wildcards.
func Like(col Column, pattern string) Condition {
	return Condition{kind: condLike, col: col, args: []any{pattern}}
}

// Contains matches values containing text literally. %, _ and the escape
// character in text are escaped.
func Contains(col Column, text string) Condition {
	return Like(col, "%"+EscapeLike(text)+"%")
}

// HasPrefix matches values starting with text literally.
func HasPrefix(col Column, text string) Condition {
	return Like(col, EscapeLike(text)+"%")
}

// EscapeLike escapes LIKE metacharacters using backslash.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// In matches any of the values. An empty list matches nothing.
func In(col Column, values ...any) Condition {
	return Condition{kind: condIn, col: col, args: values}
}

// And joins conditions; zero conditions are skipped.
func And(conds ...Condition) Condition { return join(condAnd, conds) }

// Or joins conditions; zero conditions are skipped.
func Or(conds ...Condition) Condition { return join(condOr, conds) }

func join(kind condKind, conds []Condition) Condition {
	parts := make([]Condition, 0, len(conds))
	for _, c := range conds {
		if !c.IsZero() {
			parts = append(parts, c)
		}
	}
	switch len(parts) {
	case 0:
		return Condition{}
	case 1:
		return parts[0]
	}
	return Condition{kind: kind, parts: parts}
}

// Expr embeds a fixed SQL fragment with ? placeholders. The fragment must be
// a constant written in this repository; refers lists the columns it reads
// so they are validated like any other column.
func Expr(fragment string, refers []Column, args ...any) Condition {
	return Condition{kind: condExpr, expr: fragment, refers: refers, args: args}
}

// IsZero reports whether the condition matches everything.
func (c Condition) IsZero() bool { return c.kind == condNone }

// Columns lists every column the condition refers to.
func (c Condition) Columns() []Column {
	var cols []Column
	c.walk(func(n Condition) {
		switch n.kind {
		case condAnd, condOr, condNone:
		case condExpr:
			cols = append(cols, n.refers...)
		default:
			cols = append(cols, n.col)
		}
	})
	return cols
}

func (c Condition) walk(fn func(Condition)) {
	fn(c)
	for _, p := range c.parts {
		p.walk(fn)
	}
}

// Build renders the condition. The zero condition renders as "".
func (c Condition) Build() (string, []any) {
	var sb strings.Builder
	var args []any
	c.build(&sb, &args)
	return sb.String(), args
}

func (c Condition) build(sb *strings.Builder, args *[]any) {
	switch c.kind {
	case condNone:
	case condCompare:
		sb.WriteString(string(c.col))
		sb.WriteString(" " + c.op + " ?")
		*args = append(*args, c.args...)
	case condLike:
		sb.WriteString(string(c.col))
		sb.WriteString(` LIKE ? ESCAPE '\'`)
		*args = append(*args, c.args...)
	case condNull:
		sb.WriteString(string(c.col) + " IS NULL")
	case condNotNull:
		sb.WriteString(string(c.col) + " IS NOT NULL")
	case condIn:
		if len(c.args) == 0 {
			sb.WriteString("0")
			return
		}
		sb.WriteString(string(c.col) + " IN (")
		sb.WriteString(placeholders(len(c.args)))
		sb.WriteString(")")
		*args = append(*args, c.args...)
	case condAnd, condOr:
		sep := " AND "
		if c.kind == condOr {
			sep = " OR "
		}
		sb.WriteString("(")
		for i, p := range c.parts {
			if i > 0 {
				sb.WriteString(sep)
			}
			p.build(sb, args)
		}
		sb.WriteString(")")
	case condExpr:
		sb.WriteString("(" + c.expr + ")")
		*args = append(*args, c.args...)
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// Placeholders renders n comma-separated bind markers.
func Placeholders(n int) string { return placeholders(n) }

// =============================================================================
// SORTING - Allow-listed sort columns and orders
// =============================================================================

type SortOrder string

const (
	Asc  SortOrder = "ASC"
	Desc SortOrder = "DESC"
)

// ParseSortOrder returns Desc for anything other than exactly "ASC" or
// "DESC". Matching is case-sensitive.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.TrimSpace(s)) {
	case Asc:
		return Asc
	case Desc:
		return Desc
	}
	return Desc
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column Column
	Order  SortOrder
}

func (o OrderBy) String() string {
	order := o.Order
	if order != Asc {
		order = Desc
	}
	return string(o.Column) + " " + string(order)
}

// ProjectSort is the set of columns a project listing may be sorted by.
type ProjectSort string

const (
	SortCreatedAt      ProjectSort = "created_at"
	SortTitle          ProjectSort = "title"
	SortPrice          ProjectSort = "price"
	SortStatus         ProjectSort = "status"
	SortStartDate      ProjectSort = "start_date"
	SortEndDate        ProjectSort = "end_date"
	SortCompletionDate ProjectSort = "completion_date"
)

var projectSorts = map[ProjectSort]bool{
	SortCreatedAt:      true,
	SortTitle:          true,
	SortPrice:          true,
	SortStatus:         true,
	SortStartDate:      true,
	SortEndDate:        true,
	SortCompletionDate: true,
}

// ParseProjectSort returns SortCreatedAt for anything outside the allow-list.
func ParseProjectSort(s string) ProjectSort {
	ps := ProjectSort(strings.TrimSpace(s))
	if projectSorts[ps] {
		return ps
	}
	return SortCreatedAt
}

// Valid reports whether ps is in the allow-list.
func (ps ProjectSort) Valid() bool { return projectSorts[ps] }
