package report

import "strings"

// RowPolicy decides how a normalized series becomes summary table rows.
type RowPolicy int

const (
	// RowsPlain emits [key, total] unrounded.
	RowsPlain RowPolicy = iota
	// RowsCurrency emits [key, total] with the total fixed to 2 decimals.
	RowsCurrency
	// RowsRetailer emits one row per retailer breakdown entry.
	RowsRetailer
)

// Column is a summary table column header.
type Column struct {
	Title string `json:"title"`
}

// Kind is the per-chart strategy: which table rows it shows, the column
// titles and the y-axis number format.
type Kind struct {
	ID          string
	Rows        RowPolicy
	YAxisFormat string

	labelTitle string
	valueTitle string
	// valueWithUnit appends "(unit)" to the value column when a unit is known.
	valueWithUnit bool
}

// Columns returns the table headers for the kind and display unit.
func (k Kind) Columns(unit string) []Column {
	value := k.valueTitle
	if k.valueWithUnit && unit != "" {
		value += " (" + unit + ")"
	}
	return []Column{{Title: k.labelTitle}, {Title: value}}
}

var defaultKind = Kind{
	ID:         "default",
	Rows:       RowsPlain,
	labelTitle: "Type",
	valueTitle: "Count",
}

var kinds = map[string]Kind{
	"call-chart":     {ID: "call-chart", Rows: RowsPlain, labelTitle: "Type", valueTitle: "Count"},
	"sms-chart":      {ID: "sms-chart", Rows: RowsPlain, labelTitle: "Type", valueTitle: "Count"},
	"call-sms-chart": {ID: "call-sms-chart", Rows: RowsPlain, labelTitle: "Type", valueTitle: "Count"},

	"data-chart": {ID: "data-chart", Rows: RowsCurrency, YAxisFormat: ".2f", labelTitle: "Type", valueTitle: "Minutes"},
	"topupSubscriber-chart": {
		ID: "topupSubscriber-chart", Rows: RowsCurrency, YAxisFormat: ".2f",
		labelTitle: "Denomination Bracket", valueTitle: "Amount in", valueWithUnit: true,
	},
	"call-billing-chart":     {ID: "call-billing-chart", Rows: RowsCurrency, labelTitle: "Type", valueTitle: "Amount in", valueWithUnit: true},
	"sms-billing-chart":      {ID: "sms-billing-chart", Rows: RowsCurrency, labelTitle: "Type", valueTitle: "Amount in", valueWithUnit: true},
	"call-sms-billing-chart": {ID: "call-sms-billing-chart", Rows: RowsCurrency, labelTitle: "Type", valueTitle: "Amount in", valueWithUnit: true},

	"topup-chart": {ID: "topup-chart", Rows: RowsPlain, YAxisFormat: ".2f", labelTitle: "Denomination Bracket", valueTitle: "Count"},

	"load-transfer-chart": {ID: "load-transfer-chart", Rows: RowsRetailer, YAxisFormat: ".2f", labelTitle: "IMSI", valueTitle: "Amount in", valueWithUnit: true},
	"add-money-chart":     {ID: "add-money-chart", Rows: RowsRetailer, labelTitle: "IMSI", valueTitle: "Amount in", valueWithUnit: true},
}

// KindFor looks up the strategy for a chart id. Unknown ids get the default
// kind.
func KindFor(chartID string) Kind {
	if k, ok := kinds[strings.TrimSpace(chartID)]; ok {
		return k
	}
	return defaultKind
}

const dataStatTypes = "total_data,uploaded_data,downloaded_data"

// YAxisFormatFor returns the y-axis number format for a chart. Data volume
// charts use one decimal unless the chart kind sets its own format.
func YAxisFormatFor(k Kind, statTypes string) string {
	if k.YAxisFormat != "" {
		return k.YAxisFormat
	}
	if statTypes == dataStatTypes {
		return ".1f"
	}
	return ""
}

// ChartType is the visual form a report is drawn in.
type ChartType string

const (
	LineChart ChartType = "line-chart"
	BarChart  ChartType = "bar-chart"
	PieChart  ChartType = "pie-chart"
)

// ParseChartType maps a chart type name onto a ChartType, defaulting to a
// line chart.
func ParseChartType(s string) ChartType {
	switch ChartType(strings.TrimSpace(s)) {
	case BarChart:
		return BarChart
	case PieChart:
		return PieChart
	default:
		return LineChart
	}
}
