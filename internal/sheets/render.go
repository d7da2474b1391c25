package sheets

import (
	"fmt"

	"sverka/internal/report"

	"github.com/xuri/excelize/v2"
)

// ReportSheet is the name of the only sheet in a rendered report.
const ReportSheet = "Sverka"

// ReportHeader lists the report columns in order.
var ReportHeader = []interface{}{
	"Team",
	"Сотрудник (1С)",
	"Сотрудник (Jira)",
	"Jira Key",
	"Часы 1С",
	"Неявки (1С)",
	"Часы Tempo",
	"Разница",
	"Статус",
}

const (
	highlightColor = "FFFFCC"
	linkColor      = "0563C1"
	keyColumn      = 4
)

var columnWidths = map[string]float64{
	"A": 20,
	"B": 32,
	"C": 32,
	"D": 14,
	"E": 10,
	"F": 14,
	"G": 12,
	"H": 10,
	"I": 22,
}

// LinkFunc maps a Jira user key to a URL for the key cell. An empty result
// leaves the cell as plain text.
type LinkFunc func(key string) string

type reportStyles struct {
	header, highlight, link, highlightLink int
}

func newReportStyles(f *excelize.File) (reportStyles, error) {
	var s reportStyles
	var err error

	fill := excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{highlightColor}}
	linkFont := &excelize.Font{Color: linkColor, Underline: "single"}

	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	if s.highlight, err = f.NewStyle(&excelize.Style{Fill: fill}); err != nil {
		return s, err
	}
	if s.link, err = f.NewStyle(&excelize.Style{Font: linkFont}); err != nil {
		return s, err
	}
	if s.highlightLink, err = f.NewStyle(&excelize.Style{Font: linkFont, Fill: fill}); err != nil {
		return s, err
	}
	return s, nil
}

// RenderReport writes rows to a single-sheet xlsx workbook. Rows with an
// absence code other than the weekend marker are highlighted, and resolved
// Jira keys link to the worker's timesheet when link is non-nil.
func RenderReport(rows []report.Row, link LinkFunc) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	styles, err := newReportStyles(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create styles: %w", err)
	}

	header := ReportHeader
	if err := f.SetSheetRow(ReportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(ReportHeader), 1)
	if err := f.SetCellStyle(ReportSheet, "A1", last, styles.header); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range rows {
		if err := writeReportRow(f, styles, i+2, r, link); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	for col, width := range columnWidths {
		if err := f.SetColWidth(ReportSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set width of %s: %w", col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeReportRow(f *excelize.File, styles reportStyles, rowNum int, r report.Row, link LinkFunc) error {
	values := []interface{}{
		r.Team,
		r.Name1C,
		r.NameJira,
		r.JiraKey,
		r.Hours1C,
		r.Absences(),
		r.HoursTempo,
		r.Diff,
		r.Status.Label(),
	}

	first, _ := excelize.CoordinatesToCellName(1, rowNum)
	last, _ := excelize.CoordinatesToCellName(len(values), rowNum)
	keyCell, _ := excelize.CoordinatesToCellName(keyColumn, rowNum)

	if err := f.SetSheetRow(ReportSheet, first, &values); err != nil {
		return err
	}

	highlighted := r.HasNotableAbsence()
	if highlighted {
		if err := f.SetCellStyle(ReportSheet, first, last, styles.highlight); err != nil {
			return err
		}
	}

	if link == nil || !r.Resolved() {
		return nil
	}
	url := link(r.JiraKey)
	if url == "" {
		return nil
	}
	if err := f.SetCellHyperLink(ReportSheet, keyCell, url, "External"); err != nil {
		return err
	}
	style := styles.link
	if highlighted {
		style = styles.highlightLink
	}
	return f.SetCellStyle(ReportSheet, keyCell, keyCell, style)
}
