// Package export renders stored series as downloadable spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/timeutil"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "summary"
	pointsSheet  = "points"

	cellTimeLayout = "2006-01-02 15:04:05"

	// ContentTypeXLSX is the MIME type handlers should send with BuildSeriesXLSX output.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// BuildSeriesXLSX renders one series result: a summary sheet and one row per
// stored point. Timestamps are written in loc. The synthetic trailing point is
// not exported.
func BuildSeriesXLSX(res models.TimeSeriesResult, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	points := res.Observed()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(pointsSheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Sensor Export")
	_ = f.SetCellValue(summarySheet, "A3", "Series")
	_ = f.SetCellValue(summarySheet, "B3", res.Series.String())
	_ = f.SetCellValue(summarySheet, "A4", "From")
	_ = f.SetCellValue(summarySheet, "B4", timeutil.ToDisplay(res.Window.Start, loc).Format(cellTimeLayout))
	_ = f.SetCellValue(summarySheet, "A5", "To")
	_ = f.SetCellValue(summarySheet, "B5", timeutil.ToDisplay(res.Window.End, loc).Format(cellTimeLayout))
	_ = f.SetCellValue(summarySheet, "A6", "Timezone")
	_ = f.SetCellValue(summarySheet, "B6", loc.String())
	_ = f.SetCellValue(summarySheet, "A7", "Points")
	_ = f.SetCellValue(summarySheet, "B7", len(points))

	if len(points) > 0 {
		st := models.SummaryStats(points)
		_ = f.SetCellValue(summarySheet, "A8", "Mean")
		_ = f.SetCellValue(summarySheet, "B8", st.Mean)
		_ = f.SetCellValue(summarySheet, "A9", "Min")
		_ = f.SetCellValue(summarySheet, "B9", st.Min)
		_ = f.SetCellValue(summarySheet, "A10", "Max")
		_ = f.SetCellValue(summarySheet, "B10", st.Max)
	}

	_ = f.SetCellValue(pointsSheet, "A1", "Timestamp")
	_ = f.SetCellValue(pointsSheet, "B1", "Value")
	for i, p := range points {
		row := i + 2
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("A%d", row), timeutil.ToDisplay(p.Timestamp, loc).Format(cellTimeLayout))
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("B%d", row), p.Value)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName is the attachment name for a series export, e.g. "temperature_week.xlsx".
func FileName(series models.Series, period models.PeriodSelector) string {
	return fmt.Sprintf("%s_%s.xlsx", series, period)
}
