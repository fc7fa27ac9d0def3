package export

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
)

// ChartOptions describes how a report is drawn.
type ChartOptions struct {
	Title    string
	Type     report.ChartType
	Axis     report.AxisFormat
	YFormat  string
	Width    int
	Height   int
	Location *time.Location
}

func (o ChartOptions) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 900
	}
	if h <= 0 {
		h = 420
	}
	return w, h
}

func (o ChartOptions) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// PNG renders the report. A flat report, or a pie with nothing to slice,
// renders the placeholder message over an empty plot.
func PNG(w io.Writer, res report.Result, o ChartOptions) error {
	width, height := o.size()
	if res.Flat {
		return placeholderPNG(w, width, height)
	}
	switch {
	case o.Type == report.PieChart:
		return piePNG(w, res, o, width, height)
	case o.Type == report.BarChart || !hasValues(res):
		return barPNG(w, res, o, width, height)
	default:
		return linePNG(w, res, o, width, height)
	}
}

func hasValues(res report.Result) bool {
	for _, s := range res.Series {
		if len(s.Values) > 0 {
			return true
		}
	}
	return false
}

func placeholderPNG(w io.Writer, width, height int) error {
	ch := chart.Chart{
		Title:  report.Placeholder,
		Width:  width,
		Height: height,
		YAxis:  chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: 1}},
		Series: []chart.Series{
			chart.ContinuousSeries{XValues: []float64{0, 1}, YValues: []float64{0, 0}},
		},
	}
	return ch.Render(chart.PNG, w)
}

func linePNG(w io.Writer, res report.Result, o ChartOptions, width, height int) error {
	loc := o.loc()
	minY, maxY := 0.0, -math.MaxFloat64
	series := make([]chart.Series, 0, len(res.Series))
	for _, s := range res.Series {
		if len(s.Values) == 0 {
			continue
		}
		xs := make([]time.Time, 0, len(s.Values)+1)
		ys := make([]float64, 0, len(s.Values)+1)
		for _, p := range s.Values {
			xs = append(xs, time.UnixMilli(p.Timestamp).In(loc))
			ys = append(ys, p.Value)
			minY = math.Min(minY, p.Value)
			maxY = math.Max(maxY, p.Value)
		}
		// a single point has no x range
		if len(xs) == 1 {
			xs = append(xs, xs[0].Add(time.Minute))
			ys = append(ys, ys[0])
		}
		series = append(series, chart.TimeSeries{Name: s.Key, XValues: xs, YValues: ys})
	}
	if maxY <= minY {
		maxY = minY + 1
	}

	layout := o.Axis.Layout
	if layout == "" {
		layout = DateLayout
	}
	ch := chart.Chart{
		Title:      o.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat(layout)},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: minY, Max: maxY},
			ValueFormatter: numberFormatter(o.YFormat),
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

func barPNG(w io.Writer, res report.Result, o ChartOptions, width, height int) error {
	bars := make([]chart.Value, 0, len(res.Series))
	maxY := 0.0
	for _, s := range res.Series {
		bars = append(bars, chart.Value{Label: s.Key, Value: s.Total})
		maxY = math.Max(maxY, s.Total)
	}
	// go-chart derives the axis from the bars and rejects a zero span, which
	// a single bar or equal bars would give
	if maxY < 1 {
		maxY = 1
	}
	bc := chart.BarChart{
		Title:    o.Title,
		Width:    width,
		Height:   height,
		BarWidth: 48,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY},
			ValueFormatter: numberFormatter(o.YFormat),
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

func piePNG(w io.Writer, res report.Result, o ChartOptions, width, height int) error {
	values := make([]chart.Value, 0, len(res.Series))
	for _, s := range res.Series {
		if s.Total == 0 {
			continue
		}
		values = append(values, chart.Value{Label: s.Key, Value: s.Total})
	}
	if len(values) == 0 {
		return placeholderPNG(w, width, height)
	}
	pc := chart.PieChart{
		Title:  o.Title,
		Width:  width,
		Height: height,
		Values: values,
	}
	return pc.Render(chart.PNG, w)
}

// numberFormatter turns a d3 fixed-point format such as ".2f" into a
// value formatter. Anything else prints the value as is.
func numberFormatter(d3 string) chart.ValueFormatter {
	verb := "%v"
	if strings.HasPrefix(d3, ".") && strings.HasSuffix(d3, "f") {
		verb = "%" + d3
	}
	return func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return fmt.Sprintf(verb, f)
		}
		return fmt.Sprint(v)
	}
}
