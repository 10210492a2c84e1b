package reporting

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetClients       = "取引先別売上"
	SheetServices      = "サービス別売上"
	SheetWorkerTrouble = "作業員別トラブル率"
	SheetClientTrouble = "取引先別トラブル率"
	SheetComparison    = "年度比較"
)

// Workbook is the content of a statistics export.
type Workbook struct {
	Summary    Summary
	Comparison YearlyComparison
}

// ExportWorkbook writes b as an xlsx file to w, one sheet per breakdown.
func ExportWorkbook(w io.Writer, b Workbook) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetClients, []any{"ID", "取引先", "売上", "件数"}, totalRows(b.Summary.Clients)},
		{SheetServices, []any{"ID", "サービス", "売上", "件数"}, totalRows(b.Summary.Services)},
		{SheetWorkerTrouble, []any{"ID", "作業員", "トラブル件数", "案件数", "トラブル率(%)"}, troubleRows(b.Summary.WorkerTrouble)},
		{SheetClientTrouble, []any{"ID", "取引先", "トラブル件数", "案件数", "トラブル率(%)"}, troubleRows(b.Summary.ClientTrouble)},
		{SheetComparison, []any{"月", fmt.Sprint(b.Comparison.CurrentYear), fmt.Sprint(b.Comparison.CompareYear)}, comparisonRows(b.Comparison)},
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", sh.name, err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", sh.name, err)
		}
		if err := writeRows(f, sh.name, append([][]any{sh.header}, sh.rows...)); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func totalRows(totals []DimensionTotal) [][]any {
	rows := make([][]any, len(totals))
	for i, t := range totals {
		rows[i] = []any{t.ID, t.Name, amount(t.Total), t.Count}
	}
	return rows
}

func troubleRows(stats []TroubleStat) [][]any {
	rows := make([][]any, len(stats))
	for i, s := range stats {
		rows[i] = []any{s.ID, s.Name, s.TroubleCount, s.ProjectCount, amount(s.Rate)}
	}
	return rows
}

func comparisonRows(c YearlyComparison) [][]any {
	rows := make([][]any, len(c.Months))
	for i, m := range c.Months {
		rows[i] = []any{m, amount(at(c.Current, i)), amount(at(c.Compare, i))}
	}
	return rows
}

func at(values []decimal.Decimal, i int) decimal.Decimal {
	if i < len(values) {
		return values[i]
	}
	return decimal.Zero
}

// amount keeps cells numeric so the sheet can sum them.
func amount(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
