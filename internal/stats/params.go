package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
)

// EarliestStart is the floor for any requested start time. Usage events
// before it are known to be junk.
const EarliestStart int64 = 1406680050

// Now is the sentinel end time meaning "the current time".
const Now int64 = -1

var intervals = map[string]report.Granularity{
	"seconds": report.Seconds,
	"minutes": report.Minutes,
	"hours":   report.Hours,
	"days":    report.Days,
	"weeks":   report.Weeks,
	"months":  report.Months,
	"years":   report.Years,
}

const (
	AggCount       = "count"
	AggDuration    = "duration"
	AggUpBytes     = "up_byte_count"
	AggDownBytes   = "down_byte_count"
	AggAverage     = "average_value"
	AggTransaction = "transaction_sum"
	aggLoader      = "loader"
	aggValidThru   = "valid_through"
)

var aggregations = map[string]bool{
	AggCount: true, AggDuration: true, AggUpBytes: true,
	AggDownBytes: true, AggAverage: true, AggTransaction: true,
}

const (
	ViewList    = "list"
	ViewSummary = "summary"
	viewValue   = "value"
)

// Params is a validated stats query.
type Params struct {
	Start        int64              `json:"start-time-epoch"`
	End          int64              `json:"end-time-epoch"`
	Interval     report.Granularity `json:"interval"`
	StatTypes    []string           `json:"-"`
	LevelID      int64              `json:"level-id"`
	Aggregation  string             `json:"aggregation"`
	ReportView   string             `json:"report-view"`
	Extras       []string           `json:"extras"`
	TopupPercent *float64           `json:"topup-percent"`
}

// DefaultParams mirrors an empty query string.
func DefaultParams() Params {
	return Params{
		Start:       EarliestStart,
		End:         Now,
		Interval:    report.Months,
		StatTypes:   []string{"sms"},
		LevelID:     -1,
		Aggregation: AggCount,
		ReportView:  ViewList,
		Extras:      []string{},
	}
}

// ErrBadParam wraps every query parameter that fails to parse.
var ErrBadParam = errors.New("invalid query parameter")

// ParseParams validates a stats query. Unknown intervals, aggregations,
// report views and stat types fall back to their defaults; only values that
// cannot be parsed at all are errors.
func ParseParams(q url.Values) (Params, error) {
	p := DefaultParams()

	if v := strings.TrimSpace(q.Get("start-time-epoch")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: start-time-epoch: %v", ErrBadParam, err)
		}
		p.Start = n
		if p.Start < EarliestStart {
			p.Start = EarliestStart
		}
	}
	if v := strings.TrimSpace(q.Get("end-time-epoch")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: end-time-epoch: %v", ErrBadParam, err)
		}
		p.End = n
	}
	// An end before the start resets the whole span.
	if p.End != Now && p.End < p.Start {
		p.Start = EarliestStart
		p.End = Now
	}

	if g, ok := intervals[q.Get("interval")]; ok {
		p.Interval = g
	}

	if raw := q.Get("stat-types"); raw != "" {
		types := strings.Split(raw, ",")
		if isTrue(q.Get("dynamic-stat")) {
			p.StatTypes = types
			if v := strings.TrimSpace(q.Get("topup-percent")); v != "" {
				pct, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return p, fmt.Errorf("%w: topup-percent: %v", ErrBadParam, err)
				}
				p.TopupPercent = &pct
			}
		} else {
			valid := make([]string, 0, len(types))
			for _, t := range types {
				if IsValidStat(t) {
					valid = append(valid, t)
				}
			}
			if len(valid) > 0 {
				p.StatTypes = valid
			}
		}
	}

	if v := strings.TrimSpace(q.Get("level-id")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: level-id: %v", ErrBadParam, err)
		}
		p.LevelID = n
	}
	if v := q.Get("aggregation"); aggregations[v] {
		p.Aggregation = v
	}
	if v := q.Get("extras"); v != "" {
		p.Extras = strings.Split(v, ",")
	}
	if v := q.Get("report-view"); v == ViewList || v == ViewSummary {
		p.ReportView = v
	}
	return p, nil
}

// Query encodes the params back into query string form.
func (p Params) Query() url.Values {
	q := url.Values{}
	q.Set("start-time-epoch", strconv.FormatInt(p.Start, 10))
	q.Set("end-time-epoch", strconv.FormatInt(p.End, 10))
	q.Set("interval", string(p.Interval))
	q.Set("stat-types", strings.Join(p.StatTypes, ","))
	q.Set("level-id", strconv.FormatInt(p.LevelID, 10))
	q.Set("aggregation", p.Aggregation)
	q.Set("report-view", p.ReportView)
	if len(p.Extras) > 0 {
		q.Set("extras", strings.Join(p.Extras, ","))
	}
	if p.TopupPercent != nil {
		q.Set("dynamic-stat", "true")
		q.Set("topup-percent", strconv.FormatFloat(*p.TopupPercent, 'f', -1, 64))
	}
	return q
}

func (p Params) extra(i int) string {
	if i < len(p.Extras) {
		return p.Extras[i]
	}
	return ""
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// MarshalJSON echoes the params with stat-types joined back into a list
// string, the way they arrived.
func (p Params) MarshalJSON() ([]byte, error) {
	type plain Params
	return json.Marshal(struct {
		plain
		StatTypes string `json:"stat-types"`
	}{plain(p), strings.Join(p.StatTypes, ",")})
}
