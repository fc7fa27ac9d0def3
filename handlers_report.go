package main

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pcarivbts/CommunityCellularManager/internal/export"
	"github.com/pcarivbts/CommunityCellularManager/internal/report"
	"github.com/pcarivbts/CommunityCellularManager/internal/stats"
)

// builtReport is a computed report in every shape the handlers need.
type builtReport struct {
	Response reportResponse
	Raw      []report.RawSeries
	Result   report.Result
}

func buildReport(ctx context.Context, engine *stats.Engine, rr reportRequest) (builtReport, error) {
	resp, err := engine.Query(ctx, rr.Level, rr.Params)
	if err != nil {
		return builtReport{}, err
	}
	raw := resp.Raw()
	res := report.Normalize(raw, rr.Kind, rr.Unit)

	out := reportResponse{
		OK:          true,
		Range:       rr.Range,
		Granularity: rr.Params.Interval,
		AxisFormat:  rr.Resolution.Axis,
		YAxisFormat: report.YAxisFormatFor(rr.Kind, strings.Join(rr.Params.StatTypes, ",")),
		ChartType:   rr.ChartType,
		Columns:     res.Columns,
		Series:      res.Series,
		Table:       res.Table,
		Flat:        res.Flat,
		Buttons:     report.Buttons(),
		Request:     rr.Params,
	}
	if res.Flat {
		out.Placeholder = report.Placeholder
	}
	for _, r := range resp.Results {
		if cohort, ok := r.Values.(*stats.Cohort); ok {
			if out.Cohorts == nil {
				out.Cohorts = make(map[string]*stats.Cohort)
			}
			out.Cohorts[r.Key] = cohort
		}
	}
	return builtReport{Response: out, Raw: raw, Result: res}, nil
}

func handleReport(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		rr, err := parseReportRequest(c.Param("level"), c.Request.URL.Query(), engine.Now())
		if err != nil {
			writeQueryError(c, err)
			return
		}
		built, err := buildReport(c.Request.Context(), engine, rr)
		if err != nil {
			writeQueryError(c, err)
			return
		}
		c.JSON(http.StatusOK, built.Response)
	}
}

func handleReportCSV(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		rr, err := parseReportRequest(reportLevel(c), c.Request.URL.Query(), engine.Now())
		if err != nil {
			writeQueryError(c, err)
			return
		}
		built, err := buildReport(c.Request.Context(), engine, rr)
		if err != nil {
			writeQueryError(c, err)
			return
		}

		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, built.Raw, built.Result, engine.Location()); err != nil {
			c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
			return
		}
		reportType := strings.TrimSpace(c.Query("report-type"))
		if reportType == "" {
			reportType = "report"
		}
		filename := export.Filename(reportType, engine.Now().In(engine.Location()))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}

func chartOptions(c *gin.Context, engine *stats.Engine, rr reportRequest, built builtReport) export.ChartOptions {
	return export.ChartOptions{
		Title:    rr.Title,
		Type:     rr.ChartType,
		Axis:     rr.Resolution.Axis,
		YFormat:  built.Response.YAxisFormat,
		Width:    parseLimit(c.Query("width"), 900, 200, 4000),
		Height:   parseLimit(c.Query("height"), 420, 150, 3000),
		Location: engine.Location(),
	}
}

func handleReportPNG(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		rr, err := parseReportRequest(reportLevel(c), c.Request.URL.Query(), engine.Now())
		if err != nil {
			writeQueryError(c, err)
			return
		}
		built, err := buildReport(c.Request.Context(), engine, rr)
		if err != nil {
			writeQueryError(c, err)
			return
		}

		var buf bytes.Buffer
		if err := export.PNG(&buf, built.Result, chartOptions(c, engine, rr, built)); err != nil {
			c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
			return
		}
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	}
}

func handleReportChart(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		rr, err := parseReportRequest(reportLevel(c), c.Request.URL.Query(), engine.Now())
		if err != nil {
			writeQueryError(c, err)
			return
		}
		built, err := buildReport(c.Request.Context(), engine, rr)
		if err != nil {
			writeQueryError(c, err)
			return
		}

		var buf bytes.Buffer
		if err := export.HTML(&buf, built.Result, chartOptions(c, engine, rr, built)); err != nil {
			c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	}
}

// reportLevel reads the level of the /report/* endpoints, which take it as
// a query parameter.
func reportLevel(c *gin.Context) string {
	if v := strings.TrimSpace(c.Query("level")); v != "" {
		return v
	}
	return string(stats.LevelGlobal)
}
