package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
)

// MaxBuckets bounds the length of a single time series.
const MaxBuckets = 100000

type aggMode int

const (
	modeCount aggMode = iota
	modeSum
	modeAvg
)

// timeline is a zero-filled series of buckets aligned to an interval in a
// given location.
type timeline struct {
	starts []time.Time
	sums   []float64
	counts []int
	mode   aggMode
}

func newTimeline(start, end time.Time, g report.Granularity, loc *time.Location, mode aggMode) (*timeline, error) {
	tl := &timeline{mode: mode}
	for b := truncate(start.In(loc), g); !b.After(end); b = step(b, g) {
		if len(tl.starts) == MaxBuckets {
			return nil, fmt.Errorf("%w: more than %d %s between start and end", ErrBadParam, MaxBuckets, g)
		}
		tl.starts = append(tl.starts, b)
	}
	tl.sums = make([]float64, len(tl.starts))
	tl.counts = make([]int, len(tl.starts))
	return tl, nil
}

func (tl *timeline) add(t time.Time, v float64) {
	i := sort.Search(len(tl.starts), func(i int) bool { return tl.starts[i].After(t) }) - 1
	if i < 0 {
		return
	}
	tl.sums[i] += v
	tl.counts[i]++
}

func (tl *timeline) values() []float64 {
	out := make([]float64, len(tl.starts))
	for i := range tl.starts {
		switch tl.mode {
		case modeCount:
			out[i] = float64(tl.counts[i])
		case modeAvg:
			if tl.counts[i] > 0 {
				out[i] = tl.sums[i] / float64(tl.counts[i])
			}
		default:
			out[i] = tl.sums[i]
		}
	}
	return out
}

// points pairs bucket starts with values, rounding values to 2 decimals
// unless they already round to a whole number.
func (tl *timeline) points(values []float64) []report.Point {
	pts := make([]report.Point, len(values))
	for i, v := range values {
		if math.Round(v) != report.RoundTo2(v) {
			v = report.RoundTo2(v)
		}
		pts[i] = report.Point{Timestamp: tl.starts[i].UnixMilli(), Value: v}
	}
	return pts
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func truncate(t time.Time, g report.Granularity) time.Time {
	loc := t.Location()
	y, m, d := t.Date()
	switch g {
	case report.Seconds:
		return t.Truncate(time.Second)
	case report.Minutes:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	case report.Hours:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case report.Days:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case report.Weeks:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case report.Years:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	}
}

func step(t time.Time, g report.Granularity) time.Time {
	switch g {
	case report.Seconds:
		return t.Add(time.Second)
	case report.Minutes:
		return t.Add(time.Minute)
	case report.Hours:
		return t.Add(time.Hour)
	case report.Days:
		return t.AddDate(0, 0, 1)
	case report.Weeks:
		return t.AddDate(0, 0, 7)
	case report.Years:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}
