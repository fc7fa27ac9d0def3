package report

import (
	"errors"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		delta int64
		gran  Granularity
		d3    string
	}{
		{0, Seconds, "%-H:%M:%S"},
		{60, Seconds, "%-H:%M:%S"},
		{61, Minutes, "%-H:%M"},
		{3600, Minutes, "%-H:%M"},
		{3601, Hours, "%-H:%M"},
		{86400, Hours, "%-H:%M"},
		{86401, Hours, "%b %d, %-H:%M"},
		{90000, Hours, "%b %d, %-H:%M"},
		{604800, Hours, "%b %d, %-H:%M"},
		{604801, Days, "%b %d"},
		{2592000, Days, "%b %d"},
		{31536000, Days, "%b %d"},
		{31536001, Months, "%x"},
	}
	for _, c := range cases {
		got := Resolve(TimeRange{Start: 1000, End: 1000 + c.delta})
		if got.Granularity != c.gran || got.Axis.D3 != c.d3 {
			t.Errorf("delta %d: got %s %q, want %s %q", c.delta, got.Granularity, got.Axis.D3, c.gran, c.d3)
		}
	}
}

func TestResolveLayoutsFormat(t *testing.T) {
	ts := time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)
	res := Resolve(TimeRange{Start: 0, End: 90000})
	if got := ts.Format(res.Axis.Layout); got != "Mar 05, 07:08" {
		t.Errorf("unexpected label %q", got)
	}
}

func TestRangeForButton(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r, err := RangeForButton("week", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.End != 1700000000 || r.Delta() != 604800 {
		t.Errorf("unexpected range %+v", r)
	}
	if _, err := RangeForButton("decade", now); !errors.Is(err, ErrUnknownButton) {
		t.Errorf("expected ErrUnknownButton, got %v", err)
	}
	for _, b := range Buttons() {
		if _, err := RangeForButton(b, now); err != nil {
			t.Errorf("button %s: %v", b, err)
		}
	}
}

func TestDatePickerChanges(t *testing.T) {
	now := time.Unix(10000, 0)
	r := TimeRange{Start: 1000, End: 5000}

	if _, ok := r.WithStart(5000); ok {
		t.Error("start equal to end must be rejected")
	}
	if got, ok := r.WithStart(2000); !ok || got.Start != 2000 {
		t.Errorf("start change rejected: %+v", got)
	}
	if _, ok := r.WithEnd(900, now); ok {
		t.Error("end before start must be rejected")
	}
	if _, ok := r.WithEnd(10001, now); ok {
		t.Error("end in the future must be rejected")
	}
	if got, ok := r.WithEnd(9000, now); !ok || got.End != 9000 {
		t.Errorf("end change rejected: %+v", got)
	}
}
