package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/export"
	"cashbook/internal/services"
	"cashbook/internal/storage"
)

// ReportHandler serves dashboard totals, reports and exports.
type ReportHandler struct {
	reportService services.ReportServicer
	display       Display
	now           func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer, display Display) *ReportHandler {
	return &ReportHandler{reportService: reportService, display: display, now: time.Now}
}

// DashboardResponse combines totals with the most recent entries.
type DashboardResponse struct {
	SummaryResponse
	Recent []TransactionResponse `json:"recent"`
}

// GroupSummaryResponse is a grouped summary with overall totals.
type GroupSummaryResponse struct {
	GroupBy string               `json:"group_by"`
	Groups  []GroupTotalResponse `json:"groups"`
	Totals  SummaryResponse      `json:"totals"`
}

// DetailsResponse is the detailed report view.
type DetailsResponse struct {
	Title   string                `json:"title"`
	Rows    []DetailedRowResponse `json:"rows"`
	Summary SummaryResponse       `json:"summary"`
}

// Dashboard returns totals and the most recent transactions
// @Summary     Dashboard summary
// @Description Totals over active transactions plus the most recent ones (limit 1-500, default 5).
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       book_id   query int    false "Book ID"
// @Param       from_date query string false "Start date (YYYY-MM-DD)"
// @Param       to_date   query string false "End date (YYYY-MM-DD)"
// @Param       limit     query int    false "Number of recent rows"
// @Success     200 {object} DashboardResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "No access to book"
// @Router      /dashboard/summary [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid limit"))
			return
		}
	}

	dash, err := h.reportService.Dashboard(actor, filter, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, DashboardResponse{
		SummaryResponse: toSummaryResponse(dash.Summary),
		Recent:          h.display.transactions(dash.Recent),
	})
}

// Summary returns cash in and out grouped by category or date
// @Summary     Grouped summary
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       group_by  query string false "category (default) or date"
// @Param       book_id   query int    false "Book ID"
// @Param       from_date query string false "Start date (YYYY-MM-DD)"
// @Param       to_date   query string false "End date (YYYY-MM-DD)"
// @Success     200 {object} GroupSummaryResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query struct {
		GroupBy string `form:"group_by" binding:"omitempty,group_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}
	if query.GroupBy == "" {
		query.GroupBy = services.GroupByCategory
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groups, err := h.reportService.GroupSummary(actor, filter, query.GroupBy)
	if err != nil {
		respondWithError(c, err)
		return
	}
	totals, err := h.reportService.Summarize(actor, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, GroupSummaryResponse{
		GroupBy: query.GroupBy,
		Groups:  toGroupTotals(groups),
		Totals:  toSummaryResponse(*totals),
	})
}

// Details returns every matching transaction with its balance
// @Summary     Detailed report
// @Description Rows newest first. balance is the stored running balance, or a cumulative sum over the filtered rows when none is stored (balance_source "derived").
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       book_id    query int    false "Book ID"
// @Param       from_date  query string false "Start date (YYYY-MM-DD)"
// @Param       to_date    query string false "End date (YYYY-MM-DD)"
// @Param       type       query string false "CASH_IN or CASH_OUT"
// @Param       category   query string false "Category"
// @Param       q          query string false "Text search in description"
// @Success     200 {object} DetailsResponse
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /reports/details [get]
func (h *ReportHandler) Details(c *gin.Context) {
	actor, filter, ok := h.actorAndFilter(c)
	if !ok {
		return
	}

	report, rows, err := h.buildReport(actor, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, DetailsResponse{
		Title: report.Title,
		Rows:  h.display.detailedRows(rows),
		Summary: SummaryResponse{
			TotalCashIn:  report.CashIn.StringFixed(2),
			TotalCashOut: report.CashOut.StringFixed(2),
			Balance:      report.Balance().StringFixed(2),
		},
	})
}

// ExportCSV downloads the detailed report as CSV
// @Summary     Export CSV
// @Tags        reports
// @Produce     text/csv
// @Security    BearerAuth
// @Param       book_id   query int    false "Book ID"
// @Param       from_date query string false "Start date (YYYY-MM-DD)"
// @Param       to_date   query string false "End date (YYYY-MM-DD)"
// @Success     200 {file} file
// @Router      /reports/export/csv [get]
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	h.export(c, "csv", "text/csv; charset=utf-8", export.WriteCSV)
}

// ExportXLSX downloads the detailed report as an Excel workbook
// @Summary     Export XLSX
// @Tags        reports
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       book_id   query int    false "Book ID"
// @Param       from_date query string false "Start date (YYYY-MM-DD)"
// @Param       to_date   query string false "End date (YYYY-MM-DD)"
// @Success     200 {file} file
// @Router      /reports/export/xlsx [get]
func (h *ReportHandler) ExportXLSX(c *gin.Context) {
	h.export(c, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.WriteXLSX)
}

// ExportPDF downloads the detailed report as a PDF
// @Summary     Export PDF
// @Tags        reports
// @Produce     application/pdf
// @Security    BearerAuth
// @Param       book_id   query int    false "Book ID"
// @Param       from_date query string false "Start date (YYYY-MM-DD)"
// @Param       to_date   query string false "End date (YYYY-MM-DD)"
// @Success     200 {file} file
// @Router      /reports/export/pdf [get]
func (h *ReportHandler) ExportPDF(c *gin.Context) {
	h.export(c, "pdf", "application/pdf", export.WritePDF)
}

func (h *ReportHandler) export(c *gin.Context, ext, contentType string, write func(io.Writer, export.Report) error) {
	actor, filter, ok := h.actorAndFilter(c)
	if !ok {
		return
	}

	report, _, err := h.buildReport(actor, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Render fully before writing headers so a failure still yields a JSON error.
	var buf bytes.Buffer
	if err := write(&buf, *report); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	filename := export.Filename(report.Title, ext, h.now().In(h.display.location()))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ReportHandler) actorAndFilter(c *gin.Context) (services.Actor, services.TransactionFilter, bool) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return actor, services.TransactionFilter{}, false
	}
	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return actor, filter, false
	}
	return actor, filter, true
}

// buildReport collects the title, detailed rows and totals for one scope.
func (h *ReportHandler) buildReport(actor services.Actor, filter services.TransactionFilter) (*export.Report, []services.DetailedRow, error) {
	title, err := h.reportService.ReportTitle(actor, filter)
	if err != nil {
		return nil, nil, err
	}
	rows, err := h.reportService.Detailed(actor, filter)
	if err != nil {
		return nil, nil, err
	}
	totals, err := h.reportService.Summarize(actor, filter)
	if err != nil {
		return nil, nil, err
	}

	report := &export.Report{
		Title:   title,
		Rows:    make([]export.Row, len(rows)),
		CashIn:  totals.TotalCashIn,
		CashOut: totals.TotalCashOut,
	}
	for i, r := range rows {
		row := export.Row{
			ID:             r.ID,
			Date:           r.Date.UTC(),
			Amount:         r.Amount,
			Balance:        r.Balance,
			BalanceDerived: r.BalanceSource == services.BalanceSourceDerived,
			Description:    r.Description,
			Type:           string(r.Type),
			AttachmentURL:  storage.URL(h.display.BaseURL, r.ReceiptPath),
		}
		if r.User != nil {
			row.DoneBy = r.User.Name
		}
		report.Rows[i] = row
	}
	return report, rows, nil
}
