package stats

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
)

// Cohort is a waterfall table: one row per activation month, one column per
// month of the span.
type Cohort struct {
	Header []report.Column `json:"header"`
	Data   [][]interface{} `json:"data"`
}

// waterfall groups subscribers provisioned by retailers into monthly
// cohorts and reports the cohort's transfer activity in every month.
func (e *Engine) waterfall(ctx context.Context, q query) (*Cohort, error) {
	c := &Cohort{
		Header: []report.Column{{Title: "Months"}, {Title: "Activation"}},
		Data:   [][]interface{}{},
	}
	var months []time.Time
	for m := q.start; !m.After(q.end); m = nextMonth(m) {
		months = append(months, m)
		c.Header = append(c.Header, report.Column{Title: m.Format("Jan-2006")})
	}

	for _, m := range months {
		from, to := monthWindow(m)
		var cohort []string
		err := e.usageWindow(ctx, q, from, to).
			Where("kind = ?", "provisioned").
			Where("subscriber_imsi IN (?)", e.retailers()).
			Distinct().Pluck("subscriber_imsi", &cohort).Error
		if err != nil {
			return nil, fmt.Errorf("query cohort %s: %w", m.Format("Jan-2006"), err)
		}

		row := []interface{}{m.Format("Jan-2006"), len(cohort)}
		for _, col := range months {
			v, err := e.cohortActivity(ctx, q, cohort, col)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		c.Data = append(c.Data, row)
	}
	return c, nil
}

// cohortActivity measures the cohort's transfers within one month.
func (e *Engine) cohortActivity(ctx context.Context, q query, cohort []string, month time.Time) (interface{}, error) {
	if len(cohort) == 0 {
		if q.kind == "loader" || q.kind == "reload_transaction" {
			return 0, nil
		}
		return 0.0, nil
	}
	from, to := monthWindow(month)
	tx := e.usageWindow(ctx, q, from, to).
		Where("kind = ?", "transfer").
		Where("subscriber_imsi IN ?", cohort)

	switch q.kind {
	case "loader":
		var loaders []string
		if err := tx.Distinct().Pluck("subscriber_imsi", &loaders).Error; err != nil {
			return nil, fmt.Errorf("query loaders: %w", err)
		}
		return len(loaders), nil
	case "reload_transaction":
		var n int64
		if err := tx.Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count reloads: %w", err)
		}
		return int(n), nil
	default:
		var total float64
		if err := tx.Select("COALESCE(SUM(-`change`), 0)").Scan(&total).Error; err != nil {
			return nil, fmt.Errorf("sum reloads: %w", err)
		}
		return total * 1e-6, nil
	}
}

// usageWindow is usageScope over an explicit window instead of the query
// span.
func (e *Engine) usageWindow(ctx context.Context, q query, from, to time.Time) *gorm.DB {
	w := q
	w.start, w.end = from, to
	return e.usageScope(ctx, w)
}

func nextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
}

// monthWindow spans from t to the last moment of t's month.
func monthWindow(t time.Time) (time.Time, time.Time) {
	return t, nextMonth(t).Add(-time.Nanosecond)
}
