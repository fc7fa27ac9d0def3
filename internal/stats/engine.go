// Package stats aggregates usage events, subscriber state, tower health and
// tower samples into the time series and summaries behind the reports.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
	"github.com/pcarivbts/CommunityCellularManager/internal/tsdb"
)

// Level is the infrastructure level stats are aggregated at.
type Level string

const (
	LevelGlobal  Level = "global"
	LevelNetwork Level = "network"
	LevelTower   Level = "tower"
)

func ParseLevel(s string) (Level, error) {
	switch l := Level(s); l {
	case LevelGlobal, LevelNetwork, LevelTower:
		return l, nil
	}
	return "", fmt.Errorf("%w: level must be global, network or tower", ErrBadParam)
}

// ErrNoDenomination is returned for a top-up stat without a usable
// "<a>-<b>" denomination bracket.
var ErrNoDenomination = errors.New("no denominations available in current network")

// SampleReader reads tower samples. *tsdb.Store satisfies it.
type SampleReader interface {
	Query(ctx context.Context, towerID int64, key string, start, end time.Time) ([]tsdb.Sample, error)
}

// Result is one entry of a stats response. Values holds a []report.Point
// for list views, a float64 for summaries or a *Cohort for waterfall kinds.
type Result struct {
	Key      string             `json:"key"`
	Values   interface{}        `json:"values"`
	Retailer map[string]float64 `json:"retailer_table_data,omitempty"`
}

// Raw converts the result to the normalizer's input. Cohort tables have no
// chartable values and convert to an empty series.
func (r Result) Raw() report.RawSeries {
	s := report.RawSeries{Key: r.Key, Retailer: r.Retailer}
	switch v := r.Values.(type) {
	case float64:
		s.Scalar = &v
	case []report.Point:
		s.Points = v
	}
	return s
}

type Response struct {
	Results []Result `json:"results"`
	Request Params   `json:"request"`
}

// Raw returns every result as a normalizer series.
func (r *Response) Raw() []report.RawSeries {
	out := make([]report.RawSeries, 0, len(r.Results))
	for _, res := range r.Results {
		out = append(out, res.Raw())
	}
	return out
}

type Engine struct {
	db      *gorm.DB
	samples SampleReader
	cache   *QueryCache
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Engine)

func WithCache(c *QueryCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLocation sets the location buckets are aligned in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine over the relational store and, optionally, a
// tower sample store. samples may be nil when tower stats are not served.
func NewEngine(db *gorm.DB, samples SampleReader, opts ...Option) *Engine {
	e := &Engine{db: db, samples: samples, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location is the location buckets are aligned in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Now is the engine clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

// ClearCache drops every cached response, e.g. after new events arrive.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// CacheStats reports the query cache counters.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

// Query computes one result per requested stat type.
func (e *Engine) Query(ctx context.Context, level Level, p Params) (*Response, error) {
	if resp, ok := e.cache.Get(level, p); ok {
		return resp, nil
	}

	start := time.Unix(p.Start, 0).In(e.loc)
	end := e.now().In(e.loc)
	if p.End != Now {
		end = time.Unix(p.End, 0).In(e.loc)
	}

	resp := &Response{Results: make([]Result, 0, len(p.StatTypes)), Request: p}
	for i, kind := range p.StatTypes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := query{level: level, params: p, kind: kind, extra: p.extra(i), start: start, end: end}
		res, err := e.result(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", kind, err)
		}
		resp.Results = append(resp.Results, res)
	}

	e.cache.Put(level, p, resp)
	return resp, nil
}

// query is the per stat type unit of work.
type query struct {
	level      Level
	params     Params
	kind       string
	extra      string
	start, end time.Time
}

func (q query) summary() bool {
	return q.params.ReportView == ViewSummary
}

func (e *Engine) result(ctx context.Context, q query) (Result, error) {
	switch familyOf(q.kind) {
	case familyWaterfall:
		cohort, err := e.waterfall(ctx, q)
		if err != nil {
			return Result{}, err
		}
		return Result{Key: q.kind, Values: cohort}, nil
	case familyTimeseries:
		return e.towerSeries(ctx, q)
	case familyInactive:
		return e.inactiveSeries(ctx, q)
	case familyHealth:
		return e.healthSeries(ctx, q)
	case familyGPRS:
		return e.gprsSeries(ctx, q)
	default:
		return e.usageSeries(ctx, q)
	}
}

// summaryScale is applied to summary totals. Transaction sums are stored in
// millionths of the display currency.
func (q query) summaryScale() float64 {
	if q.params.Aggregation == AggTransaction {
		return 1e-6
	}
	return 1
}

// finish turns a filled timeline into a list or summary result.
func (q query) finish(tl *timeline, values []float64, scale float64) Result {
	if q.summary() {
		return Result{Key: q.kind, Values: sum(values) * scale}
	}
	return Result{Key: q.kind, Values: tl.points(values)}
}
