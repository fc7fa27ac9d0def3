package report

import (
	"errors"
	"strings"
	"time"
)

// Granularity is the bucket width a report is aggregated at.
type Granularity string

const (
	Seconds Granularity = "seconds"
	Minutes Granularity = "minutes"
	Hours   Granularity = "hours"
	Days    Granularity = "days"
	Weeks   Granularity = "weeks"
	Months  Granularity = "months"
	Years   Granularity = "years"
)

// AxisFormat carries the x-axis label format in both the d3 notation the
// console page uses and the equivalent Go layout used for server-side
// rendering.
type AxisFormat struct {
	D3     string `json:"d3"`
	Layout string `json:"layout"`
}

var (
	axisHourMinSec  = AxisFormat{D3: "%-H:%M:%S", Layout: "15:04:05"}
	axisHourMin     = AxisFormat{D3: "%-H:%M", Layout: "15:04"}
	axisDayHourMin  = AxisFormat{D3: "%b %d, %-H:%M", Layout: "Jan 02, 15:04"}
	axisMonthDay    = AxisFormat{D3: "%b %d", Layout: "Jan 02"}
	axisLocaleShort = AxisFormat{D3: "%x", Layout: "01/02/2006"}
)

const (
	minute = int64(60)
	hour   = 60 * minute
	day    = 24 * hour
	week   = 7 * day
	month  = 30 * day
	year   = 365 * day
)

// TimeRange is a closed range in epoch seconds.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (r TimeRange) Delta() int64 {
	return r.End - r.Start
}

// Resolution is the outcome of resolving a TimeRange.
type Resolution struct {
	Granularity Granularity `json:"granularity"`
	Axis        AxisFormat  `json:"axis_format"`
}

var resolutionSteps = []struct {
	maxDelta int64
	res      Resolution
}{
	{minute, Resolution{Seconds, axisHourMinSec}},
	{hour, Resolution{Minutes, axisHourMin}},
	{day, Resolution{Hours, axisHourMin}},
	{week, Resolution{Hours, axisDayHourMin}},
	{month, Resolution{Days, axisMonthDay}},
	{year, Resolution{Days, axisMonthDay}},
}

// Resolve picks the bucket granularity and axis format for a range. A delta
// that falls exactly on a step boundary takes the finer bucket.
func Resolve(r TimeRange) Resolution {
	delta := r.Delta()
	for _, step := range resolutionSteps {
		if delta <= step.maxDelta {
			return step.res
		}
	}
	return Resolution{Months, axisLocaleShort}
}

// ErrUnknownButton is returned for a range button name that has no span.
var ErrUnknownButton = errors.New("unknown range button")

// DefaultButton is the range button selected when a report is first shown.
const DefaultButton = "week"

var buttonSeconds = map[string]int64{
	"hour":  hour,
	"day":   day,
	"week":  week,
	"month": month,
	"year":  year,
}

// Buttons lists the range buttons in display order.
func Buttons() []string {
	return []string{"hour", "day", "week", "month", "year"}
}

// RangeForButton returns the range ending at now covered by a range button.
func RangeForButton(name string, now time.Time) (TimeRange, error) {
	secs, ok := buttonSeconds[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return TimeRange{}, ErrUnknownButton
	}
	end := now.Unix()
	return TimeRange{Start: end - secs, End: end}, nil
}

// WithStart applies a start date-picker change. The change is ignored unless
// the new start stays before the current end.
func (r TimeRange) WithStart(start int64) (TimeRange, bool) {
	if start >= r.End {
		return r, false
	}
	r.Start = start
	return r, true
}

// WithEnd applies an end date-picker change. The new end must be after the
// current start and before now.
func (r TimeRange) WithEnd(end int64, now time.Time) (TimeRange, bool) {
	if end <= r.Start || end >= now.Unix() {
		return r, false
	}
	r.End = end
	return r, true
}
