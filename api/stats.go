package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/generic"
	"github.com/tcworks/tcmanage/reporting"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// period reads ?year= (default: this year) and ?month= (default: whole year).
func (h *Handler) period(r *http.Request) (generic.Period, error) {
	year, err := queryInt(r, "year", h.clock().Year())
	if err != nil {
		return generic.Period{}, err
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		return generic.Period{}, err
	}
	p := generic.MonthPeriod(year, month)
	return p, p.Validate()
}

// years reads ?year= and ?compare=, defaulting to this year and the one
// before.
func (h *Handler) years(r *http.Request) (int, int, error) {
	current, previous := h.Reports.CurrentYears()
	year, err := queryInt(r, "year", current)
	if err != nil {
		return 0, 0, err
	}
	if year != current {
		previous = year - 1
	}
	compare, err := queryInt(r, "compare", previous)
	if err != nil {
		return 0, 0, err
	}
	return year, compare, nil
}

// =============================================================================
// STATISTICS HANDLERS
// =============================================================================

// ClientTotals returns revenue per client.
// GET /api/stats/clients?year=&month=
func (h *Handler) ClientTotals(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	totals, err := h.Store.ClientTotals(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to get client totals", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// ServiceTotals returns revenue per service.
// GET /api/stats/services?year=&month=
func (h *Handler) ServiceTotals(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	totals, err := h.Store.ServiceTotals(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to get service totals", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// ClientMonthlyTotals returns revenue per client per month.
// GET /api/stats/clients/monthly?year=
func (h *Handler) ClientMonthlyTotals(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	totals, err := h.Store.ClientMonthlyTotals(r.Context(), p.Year)
	if err != nil {
		h.fail(w, r, "Failed to get monthly totals", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// PriceStatistics returns average, min, max, total and count of prices.
// GET /api/stats/prices?year=&month=
func (h *Handler) PriceStatistics(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	stats, err := h.Store.PriceStatistics(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to get price statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// WorkerTrouble returns the trouble rate of every worker.
// GET /api/stats/trouble/workers?year=&month=
func (h *Handler) WorkerTrouble(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	stats, err := h.Store.WorkerTrouble(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to get worker trouble rates", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ClientTrouble returns the trouble rate of every client.
// GET /api/stats/trouble/clients?year=&month=
func (h *Handler) ClientTrouble(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	stats, err := h.Store.ClientTrouble(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to get client trouble rates", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Summary returns every breakdown of a period.
// GET /api/stats/summary?year=&month=
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	s, err := h.Reports.Summary(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// YearlyComparison returns monthly revenue of two years.
// GET /api/stats/comparison?year=&compare=
func (h *Handler) YearlyComparison(w http.ResponseWriter, r *http.Request) {
	year, compare, err := h.years(r)
	if err != nil {
		h.fail(w, r, "Invalid years", err)
		return
	}
	cmp, err := h.Reports.YearlyComparison(r.Context(), year, compare)
	if err != nil {
		h.fail(w, r, "Failed to compare years", err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// Dashboard returns the comparison with targets and achievement rates.
// GET /api/stats/dashboard?year=&compare=
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	year, compare, err := h.years(r)
	if err != nil {
		h.fail(w, r, "Invalid years", err)
		return
	}
	d, err := h.Reports.Dashboard(r.Context(), year, compare)
	if err != nil {
		h.fail(w, r, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ExportStats downloads the summary and comparison as an xlsx workbook.
// GET /api/stats/export?year=&month=&compare=
func (h *Handler) ExportStats(w http.ResponseWriter, r *http.Request) {
	p, err := h.period(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	year, compare, err := h.years(r)
	if err != nil {
		h.fail(w, r, "Invalid years", err)
		return
	}

	summary, err := h.Reports.Summary(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to build summary", err)
		return
	}
	cmp, err := h.Reports.YearlyComparison(r.Context(), year, compare)
	if err != nil {
		h.fail(w, r, "Failed to compare years", err)
		return
	}

	var buf bytes.Buffer
	if err := reporting.ExportWorkbook(&buf, reporting.Workbook{Summary: summary, Comparison: cmp}); err != nil {
		h.fail(w, r, "Failed to export statistics", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tc-stats-%s.xlsx"`, p))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// SALES TARGETS
// =============================================================================

func pathInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, generic.Invalid("path", name, "%q is not an integer", raw)
	}
	return n, nil
}

// ListSalesTargets returns the annual (0) and monthly targets of a year.
// GET /api/targets/{year}
func (h *Handler) ListSalesTargets(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		h.fail(w, r, "Invalid year", err)
		return
	}
	set, err := h.Store.AllSalesTargets(r.Context(), year)
	if err != nil {
		h.fail(w, r, "Failed to get sales targets", err)
		return
	}
	writeJSON(w, http.StatusOK, TargetsResponse{Year: year, Targets: set.Map()})
}

// GetSalesTarget returns one target; unset targets are zero.
// GET /api/targets/{year}/{month}
func (h *Handler) GetSalesTarget(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		h.fail(w, r, "Invalid year", err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	amount, err := h.Store.SalesTarget(r.Context(), year, month)
	if err != nil {
		h.fail(w, r, "Failed to get sales target", err)
		return
	}
	writeJSON(w, http.StatusOK, facility.SalesTarget{Year: year, Month: month, Amount: amount})
}

// SetSalesTarget inserts or replaces one target. Administrators only.
// PUT /api/targets/{year}/{month}
func (h *Handler) SetSalesTarget(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		h.fail(w, r, "Invalid year", err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	var req SalesTargetRequest
	if !decode(w, r, &req) {
		return
	}
	t := facility.SalesTarget{Year: year, Month: month, Amount: req.Amount}
	if err := h.Store.SetSalesTarget(r.Context(), t); err != nil {
		h.fail(w, r, "Failed to set sales target", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
