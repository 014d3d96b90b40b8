package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/report"
	"github.com/garyjia/travel-approval/pkg/utils"
)

// Sheet names of the exported workbook
const (
	SheetSummary  = "Summary"
	SheetWorkload = "Approvers"
	SheetTrend    = "Trend"
)

// XLSXContentType is the MIME type of the exported workbook
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WorkbookExporter renders a dashboard overview as an xlsx workbook
type WorkbookExporter struct {
	logger *zap.Logger
}

// NewWorkbookExporter creates a workbook exporter
func NewWorkbookExporter(logger *zap.Logger) *WorkbookExporter {
	return &WorkbookExporter{logger: logger}
}

// ContentType returns the xlsx MIME type
func (e *WorkbookExporter) ContentType() string {
	return XLSXContentType
}

// Write builds the workbook and streams it to w. Rates and hours are rounded to two decimals.
func (e *WorkbookExporter) Write(w io.Writer, ov *report.Overview) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetWorkload, SheetTrend} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := e.fillSummary(f, ov, header); err != nil {
		return err
	}
	if err := e.fillWorkload(f, ov, header); err != nil {
		return err
	}
	if err := e.fillTrend(f, ov, header); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Report workbook exported",
		zap.String("start", ov.Query.Start.Format(report.DateLayout)),
		zap.String("end", ov.Query.End.Format(report.DateLayout)),
		zap.Int("approvers", len(ov.Workload.Rows)),
		zap.Int("buckets", len(ov.Trend.Points)))
	return nil
}

func (e *WorkbookExporter) fillSummary(f *excelize.File, ov *report.Overview, header int) error {
	scope := string(ov.Query.Type)
	if scope == "" {
		scope = "all"
	}
	rows := [][]interface{}{
		{"Range", ov.Query.Start.Format(report.DateLayout) + " to " + ov.Query.End.Format(report.DateLayout)},
		{"Type", scope},
		{"Generated", ov.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{},
		{"Scope", "Pending", "Approved", "Rejected", "Total", "Approval rate (%)", "Avg decision hours"},
		countsRow("overall", ov.Breakdown.Overall),
	}

	types := make([]string, 0, len(ov.Breakdown.ByType))
	for t := range ov.Breakdown.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		rows = append(rows, countsRow(t, ov.Breakdown.ByType[entity.SubjectType(t)]))
	}

	if err := writeRows(f, SheetSummary, rows); err != nil {
		return err
	}
	return f.SetRowStyle(SheetSummary, 5, 5, header)
}

func (e *WorkbookExporter) fillWorkload(f *excelize.File, ov *report.Overview, header int) error {
	rows := [][]interface{}{{"Approver", "Decisions", "Approved", "Rejected", "Approval rate (%)", "Avg latency hours"}}
	for _, r := range ov.Workload.Rows {
		rows = append(rows, []interface{}{
			r.Approver, r.Total, r.Approved, r.Rejected,
			utils.Round2(r.ApprovalRate), utils.Round2(r.AvgLatencyHours),
		})
	}
	if err := writeRows(f, SheetWorkload, rows); err != nil {
		return err
	}
	return f.SetRowStyle(SheetWorkload, 1, 1, header)
}

func (e *WorkbookExporter) fillTrend(f *excelize.File, ov *report.Overview, header int) error {
	rows := [][]interface{}{{"Bucket start (" + string(ov.Trend.Granularity) + ")", "Decisions", "Approved", "Rejected"}}
	for _, p := range ov.Trend.Points {
		rows = append(rows, []interface{}{p.BucketStart.Format(report.DateLayout), p.Count, p.Approved, p.Rejected})
	}
	if err := writeRows(f, SheetTrend, rows); err != nil {
		return err
	}
	return f.SetRowStyle(SheetTrend, 1, 1, header)
}

func countsRow(scope string, c report.StatusCounts) []interface{} {
	return []interface{}{
		scope, c.Pending, c.Approved, c.Rejected, c.Total,
		utils.Round2(c.ApprovalRate), utils.Round2(c.AvgDecisionHours),
	}
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

var _ port.ReportExporter = (*WorkbookExporter)(nil)
