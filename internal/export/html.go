package export

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
)

// HTML renders the report as a standalone interactive chart page.
func HTML(w io.Writer, res report.Result, o ChartOptions) error {
	width, height := o.size()
	initOpts := opts.Initialization{
		PageTitle: o.Title,
		Width:     pixels(width),
		Height:    pixels(height),
	}
	title := opts.Title{Title: o.Title}
	if res.Flat {
		title.Subtitle = report.Placeholder
	}

	var c components.Charter
	switch {
	case res.Flat:
		line := charts.NewLine()
		line.SetGlobalOptions(charts.WithInitializationOpts(initOpts), charts.WithTitleOpts(title))
		c = line
	case o.Type == report.PieChart:
		c = htmlPie(res, initOpts, title)
	case o.Type == report.BarChart || !hasValues(res):
		c = htmlBar(res, initOpts, title)
	default:
		c = htmlLine(res, o, initOpts, title)
	}

	page := components.NewPage()
	page.PageTitle = o.Title
	page.AddCharts(c)
	return page.Render(w)
}

func pixels(n int) string {
	return strconv.Itoa(n) + "px"
}

func htmlLine(res report.Result, o ChartOptions, initOpts opts.Initialization, title opts.Title) *charts.Line {
	loc := o.loc()
	layout := o.Axis.Layout
	if layout == "" {
		layout = DateLayout
	}

	// the x axis is the union of every series' buckets
	seen := make(map[int64]bool)
	var stamps []int64
	for _, s := range res.Series {
		for _, p := range s.Values {
			if !seen[p.Timestamp] {
				seen[p.Timestamp] = true
				stamps = append(stamps, p.Timestamp)
			}
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	labels := make([]string, len(stamps))
	index := make(map[int64]int, len(stamps))
	for i, ts := range stamps {
		labels[i] = time.UnixMilli(ts).In(loc).Format(layout)
		index[ts] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(title),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: true, Right: "5%"}),
		charts.WithYAxisOpts(opts.YAxis{Name: o.YFormat}),
	)
	line.SetXAxis(labels)
	for _, s := range res.Series {
		if len(s.Values) == 0 {
			continue
		}
		data := make([]opts.LineData, len(stamps))
		for _, p := range s.Values {
			data[index[p.Timestamp]] = opts.LineData{Value: p.Value}
		}
		line.AddSeries(s.Key, data)
	}
	return line
}

func htmlBar(res report.Result, initOpts opts.Initialization, title opts.Title) *charts.Bar {
	keys := make([]string, 0, len(res.Series))
	data := make([]opts.BarData, 0, len(res.Series))
	for _, s := range res.Series {
		keys = append(keys, s.Key)
		data = append(data, opts.BarData{Value: s.Total})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(title),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
	)
	bar.SetXAxis(keys).AddSeries("total", data,
		charts.WithLabelOpts(opts.Label{Show: true, Position: "top"}))
	return bar
}

func htmlPie(res report.Result, initOpts opts.Initialization, title opts.Title) *charts.Pie {
	data := make([]opts.PieData, 0, len(res.Series))
	for _, s := range res.Series {
		data = append(data, opts.PieData{Name: s.Key, Value: s.Total})
	}
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(title),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
		charts.WithLegendOpts(opts.Legend{Show: true, Orient: "vertical", Left: "left", Top: "middle"}),
	)
	pie.AddSeries("total", data, charts.WithLabelOpts(opts.Label{Show: true, Formatter: "{b}: {c}"}))
	return pie
}
