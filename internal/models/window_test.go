package models

import (
	"testing"
	"time"
)

func TestFetchWindow_Split_45DaysInto10DayChunks(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := FetchWindow{Start: start, End: start.Add(45 * 24 * time.Hour)}

	chunks := w.Split(10 * 24 * time.Hour)
	if len(chunks) != 5 {
		t.Fatalf("want 5 chunks, got %d", len(chunks))
	}
	if !chunks[0].Start.Equal(w.Start) {
		t.Fatalf("first chunk starts at %v, want %v", chunks[0].Start, w.Start)
	}
	if !chunks[len(chunks)-1].End.Equal(w.End) {
		t.Fatalf("last chunk ends at %v, want %v", chunks[len(chunks)-1].End, w.End)
	}
	for i := 1; i < len(chunks); i++ {
		if !chunks[i].Start.Equal(chunks[i-1].End) {
			t.Fatalf("gap/overlap between chunk %d and %d: %v vs %v", i-1, i, chunks[i-1].End, chunks[i].Start)
		}
	}
	for i, c := range chunks {
		if c.Span() > 10*24*time.Hour {
			t.Fatalf("chunk %d too long: %v", i, c.Span())
		}
	}
	if got := chunks[4].Span(); got != 5*24*time.Hour {
		t.Fatalf("last chunk span: want 120h, got %v", got)
	}
}

func TestFetchWindow_Split_EdgeCases(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		w       FetchWindow
		maxSpan time.Duration
		want    int
	}{
		{"empty window", FetchWindow{Start: start, End: start}, time.Hour, 0},
		{"inverted window", FetchWindow{Start: start, End: start.Add(-time.Hour)}, time.Hour, 0},
		{"shorter than span", FetchWindow{Start: start, End: start.Add(time.Hour)}, 24 * time.Hour, 1},
		{"exact multiple", FetchWindow{Start: start, End: start.Add(20 * 24 * time.Hour)}, 10 * 24 * time.Hour, 2},
		{"no limit", FetchWindow{Start: start, End: start.Add(90 * 24 * time.Hour)}, 0, 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := len(tc.w.Split(tc.maxSpan)); got != tc.want {
				t.Fatalf("want %d chunks, got %d", tc.want, got)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	cases := map[string]PeriodSelector{
		"24h":   Last24h,
		"":      Last24h,
		"bogus": Last24h,
		"week":  LastWeek,
		" 7D ":  LastWeek,
		"month": LastMonth,
		"1m":    LastMonth,
		"30d":   LastMonth,
	}
	for in, want := range cases {
		if got := ParsePeriod(in); got != want {
			t.Errorf("ParsePeriod(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPeriodSelector_DurationUnknownFallsBack(t *testing.T) {
	t.Parallel()

	if got := PeriodSelector(42).Duration(); got != 24*time.Hour {
		t.Fatalf("unknown selector duration: got %v", got)
	}
	if got := LastMonth.Duration(); got != 30*24*time.Hour {
		t.Fatalf("month duration: got %v", got)
	}
}

func TestTickPolicyFor(t *testing.T) {
	t.Parallel()

	if got := TickPolicyFor(24 * time.Hour); got != TicksHourly {
		t.Errorf("1d: got %q", got)
	}
	if got := TickPolicyFor(72 * time.Hour); got != TicksDayHour {
		t.Errorf("3d: got %q", got)
	}
	if got := TickPolicyFor(30 * 24 * time.Hour); got != TicksDaily {
		t.Errorf("30d: got %q", got)
	}
}

func TestSeries_Valid(t *testing.T) {
	t.Parallel()

	if !SeriesTemperature.Valid() || !Series("outdoor_temp2").Valid() {
		t.Fatal("expected valid names")
	}
	for _, bad := range []Series{"", "Temp", "1temp", "temp; DROP TABLE x", "a-b"} {
		if bad.Valid() {
			t.Errorf("expected %q to be invalid", bad)
		}
	}
}
