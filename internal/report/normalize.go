package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Placeholder is shown instead of a chart when a report has no data.
const Placeholder = "No data available for this range."

// NoData is the label and value of the sentinel row for an empty retailer
// breakdown.
const NoData = "No data"

// Point is a single [timestamp, value] pair. Timestamps are epoch
// milliseconds.
type Point struct {
	Timestamp int64
	Value     float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.Timestamp), p.Value})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("point needs 2 elements, got %d", len(pair))
	}
	p.Timestamp = int64(pair[0])
	p.Value = pair[1]
	return nil
}

// RawSeries is one series as produced by the stats API. Values is either a
// scalar (Scalar set) or a list of points.
type RawSeries struct {
	Key      string
	Scalar   *float64
	Points   []Point
	Retailer map[string]float64
}

type rawSeriesJSON struct {
	Key      string             `json:"key"`
	Values   json.RawMessage    `json:"values"`
	Retailer map[string]float64 `json:"retailer_table_data,omitempty"`
}

// UnmarshalJSON accepts a scalar or a pair list for values. Any other shape
// decodes as a series with no values rather than failing the whole payload.
func (s *RawSeries) UnmarshalJSON(data []byte) error {
	var raw rawSeriesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = RawSeries{Key: raw.Key, Retailer: raw.Retailer}

	values := bytes.TrimSpace(raw.Values)
	if len(values) == 0 || bytes.Equal(values, []byte("null")) {
		return nil
	}
	var scalar float64
	if err := json.Unmarshal(values, &scalar); err == nil {
		s.Scalar = &scalar
		return nil
	}
	var points []Point
	if err := json.Unmarshal(values, &points); err == nil {
		s.Points = points
	}
	return nil
}

func (s RawSeries) MarshalJSON() ([]byte, error) {
	out := struct {
		Key      string             `json:"key"`
		Values   interface{}        `json:"values"`
		Retailer map[string]float64 `json:"retailer_table_data,omitempty"`
	}{Key: s.Key, Retailer: s.Retailer}
	if s.Scalar != nil {
		out.Values = *s.Scalar
	} else if s.Points != nil {
		out.Values = s.Points
	} else {
		out.Values = []Point{}
	}
	return json.Marshal(out)
}

// ScalarSeries builds a series holding a single summary value.
func ScalarSeries(key string, v float64) RawSeries {
	return RawSeries{Key: key, Scalar: &v}
}

// NormalizedSeries is chart-ready: it carries the magnitude of its total and,
// for list series, the points in their original order.
type NormalizedSeries struct {
	Key    string  `json:"key"`
	Total  float64 `json:"total"`
	Values []Point `json:"values,omitempty"`
}

// TableRow is a [label, value] pair of the summary table. Value is a float64
// or a preformatted string.
type TableRow struct {
	Label string
	Value interface{}
}

func (r TableRow) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{r.Label, r.Value})
}

func (r *TableRow) UnmarshalJSON(data []byte) error {
	var pair [2]interface{}
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	label, ok := pair[0].(string)
	if !ok {
		label = fmt.Sprint(pair[0])
	}
	*r = TableRow{Label: label, Value: pair[1]}
	return nil
}

// Result is the view-model of a report widget.
type Result struct {
	Series  []NormalizedSeries `json:"series"`
	Table   []TableRow         `json:"table"`
	Columns []Column           `json:"columns"`
	Flat    bool               `json:"flat"`
}

// Normalize reshapes raw series for a chart of the given kind. Every input
// series yields exactly one normalized series; only the table rows of a
// retailer kind are replaced by the breakdown.
func Normalize(raw []RawSeries, kind Kind, unit string) Result {
	res := Result{
		Series:  make([]NormalizedSeries, 0, len(raw)),
		Table:   make([]TableRow, 0, len(raw)),
		Columns: kind.Columns(unit),
		Flat:    IsFlat(raw),
	}

	for _, s := range raw {
		ns := NormalizedSeries{Key: s.Key}
		if s.Scalar != nil {
			ns.Total = math.Abs(*s.Scalar)
		} else {
			var sum float64
			values := make([]Point, 0, len(s.Points))
			for _, p := range s.Points {
				values = append(values, p)
				sum += p.Value
			}
			if sum < 0 {
				sum = -sum
			}
			ns.Total = sum
			ns.Values = values
		}

		switch kind.Rows {
		case RowsCurrency:
			ns.Total = RoundTo2(ns.Total)
			res.Table = append(res.Table, TableRow{Label: ns.Key, Value: strconv.FormatFloat(ns.Total, 'f', 2, 64)})
		case RowsRetailer:
			res.Table = append(res.Table, retailerRows(s.Retailer)...)
		default:
			res.Table = append(res.Table, TableRow{Label: ns.Key, Value: ns.Total})
		}
		res.Series = append(res.Series, ns)
	}
	return res
}

func retailerRows(breakdown map[string]float64) []TableRow {
	if len(breakdown) == 0 {
		return []TableRow{{Label: NoData, Value: NoData}}
	}
	keys := make([]string, 0, len(breakdown))
	for k := range breakdown {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]TableRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, TableRow{Label: k, Value: breakdown[k]})
	}
	return rows
}

// IsFlat reports whether there is nothing to chart: no series at all, or
// every point and scalar is zero.
func IsFlat(raw []RawSeries) bool {
	for _, s := range raw {
		if s.Scalar != nil {
			if *s.Scalar != 0 {
				return false
			}
			continue
		}
		for _, p := range s.Points {
			if p.Value != 0 {
				return false
			}
		}
	}
	return true
}

// RoundTo2 rounds half away from zero to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
