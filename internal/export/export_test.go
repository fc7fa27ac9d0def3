package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func listSeries() []report.RawSeries {
	return []report.RawSeries{
		{Key: "sms", Points: []report.Point{{Timestamp: 0, Value: 3}, {Timestamp: 3600000, Value: 2}}},
		{Key: "call", Points: []report.Point{{Timestamp: 3600000, Value: 1.5}}},
	}
}

func TestFilename(t *testing.T) {
	got := Filename("sms-report", time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC))
	if got != "sms-report-2024-3-5.csv" {
		t.Fatalf("Filename = %q", got)
	}
}

func TestWriteCSVBuckets(t *testing.T) {
	raw := listSeries()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, raw, report.Normalize(raw, report.KindFor("sms-chart"), ""), time.UTC); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "Date,sms,call\n" +
		"1970-01-01 00:00:00,3,\n" +
		"1970-01-01 01:00:00,2,1.5\n"
	if buf.String() != want {
		t.Fatalf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteCSVSummaryTable(t *testing.T) {
	raw := []report.RawSeries{report.ScalarSeries("call", 12.5), report.ScalarSeries("sms", -3)}
	res := report.Normalize(raw, report.KindFor("call-billing-chart"), "USD")
	var buf bytes.Buffer
	if err := WriteCSV(&buf, raw, res, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv = %q", buf.String())
	}
	if lines[1] != "call,12.50" || lines[2] != "sms,3.00" {
		t.Fatalf("rows = %q", lines[1:])
	}
}

func TestPNG(t *testing.T) {
	raw := listSeries()
	res := report.Normalize(raw, report.KindFor("sms-chart"), "")
	res1 := report.Resolve(report.TimeRange{Start: 0, End: 7200})
	for _, typ := range []report.ChartType{report.LineChart, report.BarChart, report.PieChart} {
		var buf bytes.Buffer
		err := PNG(&buf, res, ChartOptions{Title: "SMS", Type: typ, Axis: res1.Axis, YFormat: ".2f"})
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
			t.Fatalf("%s: output is not a PNG", typ)
		}
	}
}

func TestPNGSinglePointAndSummary(t *testing.T) {
	raw := []report.RawSeries{{Key: "sms", Points: []report.Point{{Timestamp: 0, Value: 4}}}}
	var buf bytes.Buffer
	if err := PNG(&buf, report.Normalize(raw, report.KindFor(""), ""), ChartOptions{}); err != nil {
		t.Fatalf("single point: %v", err)
	}

	raw = []report.RawSeries{report.ScalarSeries("sms", 4), report.ScalarSeries("call", 1)}
	buf.Reset()
	if err := PNG(&buf, report.Normalize(raw, report.KindFor(""), ""), ChartOptions{Type: report.LineChart}); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Fatal("summary output is not a PNG")
	}
}

func TestPNGDegenerateTotals(t *testing.T) {
	cases := []struct {
		name string
		raw  []report.RawSeries
		typ  report.ChartType
	}{
		{"equal scalar bars", []report.RawSeries{report.ScalarSeries("sms", 4), report.ScalarSeries("call", 4)}, report.BarChart},
		{"single scalar", []report.RawSeries{report.ScalarSeries("call", 12.5)}, report.LineChart},
		{"single list bar", []report.RawSeries{{Key: "sms", Points: []report.Point{{Timestamp: 0, Value: 3}}}}, report.BarChart},
		{"zero total bar", []report.RawSeries{{Key: "call", Points: []report.Point{{Timestamp: 0, Value: 5}, {Timestamp: 60000, Value: -5}}}}, report.BarChart},
		{"zero total pie", []report.RawSeries{{Key: "call", Points: []report.Point{{Timestamp: 0, Value: 5}, {Timestamp: 60000, Value: -5}}}}, report.PieChart},
		{"small total bar", []report.RawSeries{report.ScalarSeries("sms", 0.25)}, report.BarChart},
	}
	for _, tc := range cases {
		res := report.Normalize(tc.raw, report.KindFor("call-billing-chart"), "USD")
		if res.Flat {
			t.Fatalf("%s: expected a non-flat report", tc.name)
		}
		var buf bytes.Buffer
		if err := PNG(&buf, res, ChartOptions{Title: tc.name, Type: tc.typ, YFormat: ".2f"}); err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
			t.Errorf("%s: output is not a PNG", tc.name)
		}
	}
}

func TestPNGFlatRendersPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, report.Normalize(nil, report.KindFor(""), ""), ChartOptions{}); err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Fatal("placeholder is not a PNG")
	}
}

func TestHTML(t *testing.T) {
	raw := listSeries()
	res := report.Normalize(raw, report.KindFor("sms-chart"), "")
	var buf bytes.Buffer
	if err := HTML(&buf, res, ChartOptions{Title: "SMS usage", Type: report.LineChart}); err != nil {
		t.Fatalf("HTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<title>SMS usage</title>", "\"sms\"", "\"call\""} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %s", want)
		}
	}

	buf.Reset()
	if err := HTML(&buf, report.Normalize(nil, report.KindFor(""), ""), ChartOptions{Title: "SMS usage"}); err != nil {
		t.Fatalf("HTML flat: %v", err)
	}
	if !strings.Contains(buf.String(), report.Placeholder) {
		t.Error("flat page should carry the placeholder")
	}
}
