package stats

import (
	"testing"
	"time"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
)

func TestTruncate(t *testing.T) {
	ts := time.Date(2024, 3, 14, 17, 42, 9, 500, time.UTC) // a Thursday
	cases := map[report.Granularity]time.Time{
		report.Seconds: time.Date(2024, 3, 14, 17, 42, 9, 0, time.UTC),
		report.Minutes: time.Date(2024, 3, 14, 17, 42, 0, 0, time.UTC),
		report.Hours:   time.Date(2024, 3, 14, 17, 0, 0, 0, time.UTC),
		report.Days:    time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		report.Weeks:   time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		report.Months:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		report.Years:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for g, want := range cases {
		if got := truncate(ts, g); !got.Equal(want) {
			t.Errorf("truncate(%s) = %v, want %v", g, got, want)
		}
	}
}

func TestTimelineAlignsToLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Hour)
	tl, err := newTimeline(start, end, report.Days, loc, modeCount)
	if err != nil {
		t.Fatal(err)
	}
	if len(tl.starts) != 2 {
		t.Fatalf("buckets = %v", tl.starts)
	}
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, loc); !tl.starts[0].Equal(want) {
		t.Fatalf("first bucket = %v, want %v", tl.starts[0], want)
	}
	// 22:00 UTC is already the next local day.
	tl.add(time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC), 1)
	if got := tl.values(); got[0] != 0 || got[1] != 1 {
		t.Fatalf("values = %v", got)
	}
}

func TestTimelineAverageAndRounding(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tl, err := newTimeline(start, start.Add(2*time.Hour), report.Hours, time.UTC, modeAvg)
	if err != nil {
		t.Fatal(err)
	}
	tl.add(start, 1)
	tl.add(start.Add(time.Minute), 2.912)
	tl.add(start.Add(time.Hour), 3.001)
	pts := tl.points(tl.values())
	want := []float64{1.96, 3.001, 0}
	for i, p := range pts {
		if p.Value != want[i] {
			t.Errorf("bucket %d = %v, want %v", i, p.Value, want[i])
		}
	}
	// before the first bucket is dropped
	tl.add(start.Add(-time.Second), 100)
	if tl.counts[0] != 2 {
		t.Errorf("bucket 0 count = %d, want 2", tl.counts[0])
	}
}
