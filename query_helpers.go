package main

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
	"github.com/pcarivbts/CommunityCellularManager/internal/stats"
)

var errInvalidRange = errors.New("end-time-epoch must be >= start-time-epoch")

// reportRequest is a parsed report query: the stats params plus how the
// result is shaped and drawn.
type reportRequest struct {
	Level      stats.Level
	Params     stats.Params
	Range      report.TimeRange
	Resolution report.Resolution
	Kind       report.Kind
	ChartType  report.ChartType
	Unit       string
	Title      string
}

// parseReportRange reads the range of a report. A range button wins over
// explicit epochs; with neither the default button applies. An open end
// means now.
func parseReportRange(q url.Values, now time.Time) (report.TimeRange, error) {
	if v := strings.TrimSpace(q.Get("button")); v != "" {
		return report.RangeForButton(v, now)
	}
	rawStart := strings.TrimSpace(q.Get("start-time-epoch"))
	rawEnd := strings.TrimSpace(q.Get("end-time-epoch"))
	if rawStart == "" && rawEnd == "" {
		return report.RangeForButton(report.DefaultButton, now)
	}

	rng := report.TimeRange{Start: stats.EarliestStart, End: now.Unix()}
	if rawStart != "" {
		parsed, err := parseTimeParam(rawStart)
		if err != nil {
			return rng, err
		}
		rng.Start = parsed.Unix()
	}
	if rawEnd != "" && rawEnd != "-1" {
		parsed, err := parseTimeParam(rawEnd)
		if err != nil {
			return rng, err
		}
		rng.End = parsed.Unix()
	}
	if rng.End < rng.Start {
		return rng, errInvalidRange
	}
	return rng, nil
}

// parseReportRequest turns report query parameters into a stats query over
// the resolved range. The bucket width follows the range unless interval is
// given explicitly.
func parseReportRequest(rawLevel string, q url.Values, now time.Time) (reportRequest, error) {
	var rr reportRequest
	level, err := stats.ParseLevel(rawLevel)
	if err != nil {
		return rr, err
	}
	rng, err := parseReportRange(q, now)
	if err != nil {
		return rr, err
	}
	res := report.Resolve(rng)

	sq := url.Values{}
	for k, v := range q {
		sq[k] = v
	}
	sq.Set("start-time-epoch", strconv.FormatInt(rng.Start, 10))
	sq.Set("end-time-epoch", strconv.FormatInt(rng.End, 10))
	if sq.Get("interval") == "" {
		sq.Set("interval", string(res.Granularity))
	}
	if sq.Get("level-id") == "" && sq.Get("level_id") != "" {
		sq.Set("level-id", sq.Get("level_id"))
	}
	params, err := stats.ParseParams(sq)
	if err != nil {
		return rr, err
	}

	rr = reportRequest{
		Level:      level,
		Params:     params,
		Range:      rng,
		Resolution: res,
		Kind:       report.KindFor(q.Get("chart-id")),
		ChartType:  report.ParseChartType(q.Get("chart-type")),
		Unit:       strings.TrimSpace(q.Get("unit")),
		Title:      strings.TrimSpace(q.Get("title")),
	}
	if rr.Title == "" {
		rr.Title = strings.Join(params.StatTypes, ", ")
	}
	return rr, nil
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if isAllDigits(value) {
		seconds, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(seconds, 0).UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func isAllDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

func parseLimit(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if parsed < min {
		return min
	}
	if parsed > max {
		return max
	}
	return parsed
}
