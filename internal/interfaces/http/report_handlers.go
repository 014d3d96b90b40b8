package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/domain/report"
)

// ReportHandlers serves dashboard statistics
type ReportHandlers struct {
	reportService service.ReportService
	logger        Logger
}

// NewReportHandlers creates report handlers
func NewReportHandlers(reportService service.ReportService, logger Logger) *ReportHandlers {
	return &ReportHandlers{reportService: reportService, logger: logger}
}

// parseQuery reads startDate, endDate, type, granularity and includeRoster
func parseQuery(c *gin.Context) (report.Query, bool) {
	q, err := report.ParseQuery(c.Query("startDate"), c.Query("endDate"), c.Query("type"), c.Query("granularity"))
	if err != nil {
		writeProblem(c, err)
		return report.Query{}, false
	}
	if raw := c.Query("includeRoster"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, fmt.Sprintf("includeRoster %q is not a boolean", raw))
			return report.Query{}, false
		}
		q.IncludeRoster = include
	}
	return q, true
}

// StatusBreakdown handles GET /api/reports/status-breakdown
func (h *ReportHandlers) StatusBreakdown(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}
	res, err := h.reportService.StatusBreakdown(c.Request.Context(), q)
	if err != nil {
		writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: roundBreakdown(res)})
}

// ApproverWorkload handles GET /api/reports/approver-workload
func (h *ReportHandlers) ApproverWorkload(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}
	res, err := h.reportService.ApproverWorkload(c.Request.Context(), q)
	if err != nil {
		writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: roundWorkload(res)})
}

// Trend handles GET /api/reports/trend
func (h *ReportHandlers) Trend(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}
	res, err := h.reportService.Trend(c.Request.Context(), q)
	if err != nil {
		writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: res})
}

// Overview handles GET /api/reports/overview
func (h *ReportHandlers) Overview(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}
	res, err := h.reportService.Overview(c.Request.Context(), q)
	if err != nil {
		writeProblem(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: roundOverview(res)})
}

// Export handles GET /api/reports/export. The document is buffered so failures still produce a problem body.
func (h *ReportHandlers) Export(c *gin.Context) {
	q, ok := parseQuery(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.reportService.Export(c.Request.Context(), q, &buf); err != nil {
		h.logger.Error("Report export failed", "error", err)
		writeProblem(c, err)
		return
	}

	filename := fmt.Sprintf("approvals_%s_%s.xlsx", q.Start.Format(report.DateLayout), q.End.Format(report.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, h.reportService.ExportContentType(), buf.Bytes())
}
