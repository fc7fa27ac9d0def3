// Package export renders reports as CSV downloads, PNG images and
// standalone HTML chart pages.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
)

// DateLayout is the layout of the Date column.
const DateLayout = "2006-01-02 15:04:05"

// Filename is the attachment name of a report download.
func Filename(reportType string, now time.Time) string {
	y, m, d := now.Date()
	return fmt.Sprintf("%s-%d-%d-%d.csv", reportType, y, int(m), d)
}

// WriteCSV writes list series as one row per bucket with one column per
// series, and summary series as the report's table.
func WriteCSV(w io.Writer, raw []report.RawSeries, res report.Result, loc *time.Location) error {
	cw := csv.NewWriter(w)
	var err error
	if hasPoints(raw) {
		err = writeBuckets(cw, raw, loc)
	} else {
		err = writeTable(cw, res)
	}
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func hasPoints(raw []report.RawSeries) bool {
	for _, s := range raw {
		if len(s.Points) > 0 {
			return true
		}
	}
	return false
}

func writeBuckets(cw *csv.Writer, raw []report.RawSeries, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	header := make([]string, 0, len(raw)+1)
	header = append(header, "Date")
	byTime := make(map[int64][]string)
	for i, s := range raw {
		header = append(header, s.Key)
		for _, p := range s.Points {
			row, ok := byTime[p.Timestamp]
			if !ok {
				row = make([]string, len(raw))
				byTime[p.Timestamp] = row
			}
			row[i] = strconv.FormatFloat(p.Value, 'f', -1, 64)
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	stamps := make([]int64, 0, len(byTime))
	for ts := range byTime {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	for _, ts := range stamps {
		date := time.UnixMilli(ts).In(loc).Format(DateLayout)
		if err := cw.Write(append([]string{date}, byTime[ts]...)); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(cw *csv.Writer, res report.Result) error {
	header := make([]string, 0, len(res.Columns))
	for _, c := range res.Columns {
		header = append(header, c.Title)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range res.Table {
		if err := cw.Write([]string{row.Label, cell(row.Value)}); err != nil {
			return err
		}
	}
	return nil
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
