package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pcarivbts/CommunityCellularManager/internal/models"
)

const megabyte = 1 << 20

type usageRow struct {
	Date            time.Time
	SubscriberIMSI  string
	Change          int64
	Billsec         int64
	UploadedBytes   int64
	DownloadedBytes int64
}

// usageScope restricts a usage event query to the query level and span.
func (e *Engine) usageScope(ctx context.Context, q query) *gorm.DB {
	tx := e.db.WithContext(ctx).Model(&models.UsageEvent{}).
		Where("date >= ? AND date <= ?", q.start.UTC(), q.end.UTC())
	switch q.level {
	case LevelTower:
		tx = tx.Where("bts_id = ?", q.params.LevelID)
	case LevelNetwork:
		tx = tx.Where("network_id = ?", q.params.LevelID)
	}
	return tx
}

func (e *Engine) retailers() *gorm.DB {
	return e.db.Model(&models.Subscriber{}).Select("imsi").Where("role = ?", "retailer")
}

func (e *Engine) usageRows(tx *gorm.DB) ([]usageRow, error) {
	var rows []usageRow
	err := tx.Select("date", "subscriber_imsi", "change", "billsec", "uploaded_bytes", "downloaded_bytes").
		Order("date").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query usage events: %w", err)
	}
	return rows, nil
}

// usageFilter narrows the scope to the events a stat kind counts.
func (e *Engine) usageFilter(tx *gorm.DB, q query) (*gorm.DB, error) {
	switch familyOf(q.kind) {
	case familySMS:
		if q.kind == "sms" {
			return tx.Where("kind IN ?", SMSKinds), nil
		}
	case familyCall:
		if q.kind == "call" {
			return tx.Where("kind IN ?", CallKinds), nil
		}
	case familyZeroBalance:
		return tx.Where("oldamt > 0 AND newamt <= 0"), nil
	case familyTransfer:
		return tx.Where("kind = ?", q.kind).Where("subscriber_imsi IN (?)", e.retailers()), nil
	case familyTopUp:
		lo, hi, err := denomination(q.extra)
		if err != nil {
			return nil, err
		}
		return tx.Where("kind = ?", "transfer").
			Where("`change` >= ? AND `change` <= ?", lo, hi).
			Where("subscriber_imsi IN (?)", e.retailers()), nil
	}
	return tx.Where("kind = ?", q.kind), nil
}

// denomination parses an "<a>-<b>" bracket of top-up amounts into the
// inclusive range of (negative) change values it covers. Bracket amounts are
// read in the units of UsageEvent.Change (millicents) and only negated: no
// /10000 scale is applied, so "1000-5000" selects change in [-5000, -1000].
func denomination(extra string) (lo, hi int64, err error) {
	parts := strings.Split(extra, "-")
	if len(parts) != 2 {
		return 0, 0, ErrNoDenomination
	}
	var bounds [2]int64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, 0, ErrNoDenomination
		}
		bounds[i] = int64(math.Round(-v))
	}
	lo, hi = bounds[0], bounds[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, nil
}

// usageValue maps an event to the quantity an aggregation accumulates.
func usageValue(aggregation string) (func(usageRow) float64, aggMode) {
	switch aggregation {
	case AggDuration:
		return func(r usageRow) float64 { return float64(r.Billsec) }, modeSum
	case AggUpBytes:
		return func(r usageRow) float64 { return float64(r.UploadedBytes) }, modeSum
	case AggDownBytes:
		return func(r usageRow) float64 { return float64(r.DownloadedBytes) }, modeSum
	case AggAverage:
		return func(r usageRow) float64 { return float64(-r.Change) }, modeAvg
	case AggTransaction:
		return func(r usageRow) float64 { return float64(-r.Change) }, modeSum
	default:
		return func(usageRow) float64 { return 1 }, modeCount
	}
}

func (e *Engine) usageSeries(ctx context.Context, q query) (Result, error) {
	tx, err := e.usageFilter(e.usageScope(ctx, q), q)
	if err != nil {
		return Result{}, err
	}
	rows, err := e.usageRows(tx)
	if err != nil {
		return Result{}, err
	}
	if q.params.Aggregation == AggTransaction && q.params.TopupPercent != nil {
		rows = topSpenders(rows, *q.params.TopupPercent)
	}

	value, mode := usageValue(q.params.Aggregation)
	tl, err := newTimeline(q.start, q.end, q.params.Interval, e.loc, mode)
	if err != nil {
		return Result{}, err
	}
	for _, r := range rows {
		tl.add(r.Date, value(r))
	}
	res := q.finish(tl, tl.values(), q.summaryScale())

	if q.summary() && familyOf(q.kind) == familyTransfer {
		res.Retailer = retailerBreakdown(rows, value, mode, q.summaryScale())
	}
	return res, nil
}

// retailerBreakdown aggregates rows per subscriber the same way the series
// total is aggregated.
func retailerBreakdown(rows []usageRow, value func(usageRow) float64, mode aggMode, scale float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		sums[r.SubscriberIMSI] += value(r)
		counts[r.SubscriberIMSI]++
	}
	out := make(map[string]float64, len(sums))
	for imsi, s := range sums {
		switch mode {
		case modeCount:
			out[imsi] = float64(counts[imsi])
		case modeAvg:
			out[imsi] = s / float64(counts[imsi])
		default:
			out[imsi] = s * scale
		}
	}
	return out
}

// topSpenders keeps the events of the top pct percent of subscribers ranked
// by total spend.
func topSpenders(rows []usageRow, pct float64) []usageRow {
	totals := make(map[string]float64)
	for _, r := range rows {
		totals[r.SubscriberIMSI] += float64(-r.Change)
	}
	imsis := make([]string, 0, len(totals))
	for imsi := range totals {
		imsis = append(imsis, imsi)
	}
	sort.Slice(imsis, func(i, j int) bool {
		if totals[imsis[i]] != totals[imsis[j]] {
			return totals[imsis[i]] > totals[imsis[j]]
		}
		return imsis[i] < imsis[j]
	})
	n := int(math.Round(float64(len(imsis)) * pct / 100))
	if n < 0 {
		n = 0
	}
	if n > len(imsis) {
		n = len(imsis)
	}
	keep := make(map[string]bool, n)
	for _, imsi := range imsis[:n] {
		keep[imsi] = true
	}
	out := rows[:0:0]
	for _, r := range rows {
		if keep[r.SubscriberIMSI] {
			out = append(out, r)
		}
	}
	return out
}

// gprsSeries reports data volume in MB; the aggregation is always a sum of
// byte counts.
func (e *Engine) gprsSeries(ctx context.Context, q query) (Result, error) {
	rows, err := e.usageRows(e.usageScope(ctx, q).Where("kind = ?", "gprs"))
	if err != nil {
		return Result{}, err
	}
	tl, err := newTimeline(q.start, q.end, q.params.Interval, e.loc, modeSum)
	if err != nil {
		return Result{}, err
	}
	for _, r := range rows {
		var bytes int64
		switch q.kind {
		case "uploaded_data":
			bytes = r.UploadedBytes
		case "downloaded_data":
			bytes = r.DownloadedBytes
		default:
			bytes = r.UploadedBytes + r.DownloadedBytes
		}
		tl.add(r.Date, float64(bytes)/megabyte)
	}
	return q.finish(tl, tl.values(), 1), nil
}

// inactiveSeries counts subscribers in an inactive state by the date their
// validity ran out.
func (e *Engine) inactiveSeries(ctx context.Context, q query) (Result, error) {
	tx := e.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("state = ?", q.kind).
		Where("valid_through >= ? AND valid_through <= ?", q.start.UTC(), q.end.UTC())
	switch q.level {
	case LevelTower:
		tx = tx.Where("bts_id = ?", q.params.LevelID)
	case LevelNetwork:
		tx = tx.Where("network_id = ?", q.params.LevelID)
	}
	var dates []time.Time
	if err := tx.Pluck("valid_through", &dates).Error; err != nil {
		return Result{}, fmt.Errorf("query subscribers: %w", err)
	}
	tl, err := newTimeline(q.start, q.end, q.params.Interval, e.loc, modeCount)
	if err != nil {
		return Result{}, err
	}
	for _, d := range dates {
		tl.add(d, 1)
	}
	return q.finish(tl, tl.values(), 1), nil
}

// healthSeries counts tower up/down events.
func (e *Engine) healthSeries(ctx context.Context, q query) (Result, error) {
	tx := e.db.WithContext(ctx).Model(&models.SystemEvent{}).
		Where("type = ?", q.kind).
		Where("date >= ? AND date <= ?", q.start.UTC(), q.end.UTC())
	switch q.level {
	case LevelTower:
		tx = tx.Where("bts_id = ?", q.params.LevelID)
	case LevelNetwork:
		towers := e.db.Model(&models.BTS{}).Select("id").Where("network_id = ?", q.params.LevelID)
		tx = tx.Where("bts_id IN (?)", towers)
	}
	var dates []time.Time
	if err := tx.Pluck("date", &dates).Error; err != nil {
		return Result{}, fmt.Errorf("query system events: %w", err)
	}
	tl, err := newTimeline(q.start, q.end, q.params.Interval, e.loc, modeCount)
	if err != nil {
		return Result{}, err
	}
	for _, d := range dates {
		tl.add(d, 1)
	}
	return q.finish(tl, tl.values(), 1), nil
}

// towerSeries averages a tower sample key per bucket across every tower in
// the query level.
func (e *Engine) towerSeries(ctx context.Context, q query) (Result, error) {
	tl, err := newTimeline(q.start, q.end, q.params.Interval, e.loc, modeAvg)
	if err != nil {
		return Result{}, err
	}
	if e.samples != nil {
		towers, err := e.towers(ctx, q)
		if err != nil {
			return Result{}, err
		}
		for _, id := range towers {
			samples, err := e.samples.Query(ctx, id, q.kind, q.start, q.end)
			if err != nil {
				return Result{}, fmt.Errorf("query tower %d samples: %w", id, err)
			}
			for _, s := range samples {
				tl.add(s.Timestamp, s.Value)
			}
		}
	}
	return q.finish(tl, tl.values(), 1), nil
}

func (e *Engine) towers(ctx context.Context, q query) ([]int64, error) {
	if q.level == LevelTower {
		return []int64{q.params.LevelID}, nil
	}
	tx := e.db.WithContext(ctx).Model(&models.BTS{})
	if q.level == LevelNetwork {
		tx = tx.Where("network_id = ?", q.params.LevelID)
	}
	var ids []int64
	if err := tx.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list towers: %w", err)
	}
	return ids, nil
}
