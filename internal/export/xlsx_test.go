package export

import (
	"bytes"
	"testing"
	"time"

	"sensor_dashboard/internal/models"

	"github.com/xuri/excelize/v2"
)

func TestBuildSeriesXLSX(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+07:00", 7*3600)
	end := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	res := models.TimeSeriesResult{
		Series: models.SeriesTemperature,
		Window: models.FetchWindow{Start: end.Add(-24 * time.Hour), End: end},
		Points: []models.SeriesPoint{
			{Timestamp: end.Add(-3 * time.Hour), Value: 10},
			{Timestamp: end.Add(-2 * time.Hour), Value: 30},
			{Timestamp: end, Value: 30}, // synthetic
		},
		Extended: true,
	}

	b, err := BuildSeriesXLSX(res, loc)
	if err != nil {
		t.Fatalf("BuildSeriesXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(pointsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want header + 2 rows, got %d: %v", len(rows), rows)
	}
	if rows[1][0] != "2024-01-02 16:00:00" || rows[1][1] != "10" {
		t.Fatalf("first row: %v", rows[1])
	}

	if v, _ := f.GetCellValue(summarySheet, "B3"); v != "temperature" {
		t.Fatalf("series cell: %q", v)
	}
	if v, _ := f.GetCellValue(summarySheet, "B7"); v != "2" {
		t.Fatalf("points cell: %q", v)
	}
	if v, _ := f.GetCellValue(summarySheet, "B8"); v != "20" {
		t.Fatalf("mean cell: %q", v)
	}
}

func TestBuildSeriesXLSX_Empty(t *testing.T) {
	t.Parallel()

	b, err := BuildSeriesXLSX(models.TimeSeriesResult{Series: models.SeriesHumidity}, nil)
	if err != nil {
		t.Fatalf("BuildSeriesXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue(summarySheet, "B6"); v != "UTC" {
		t.Fatalf("timezone cell: %q", v)
	}
	if v, _ := f.GetCellValue(summarySheet, "A8"); v != "" {
		t.Fatalf("stats should be omitted, got %q", v)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	if got := FileName(models.SeriesHumidity, models.LastWeek); got != "humidity_week.xlsx" {
		t.Fatalf("FileName: %q", got)
	}
}
