package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pcarivbts/CommunityCellularManager/internal/report"
	"github.com/pcarivbts/CommunityCellularManager/internal/stats"
)

type errResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type reportResponse struct {
	OK          bool                      `json:"ok"`
	Range       report.TimeRange          `json:"range"`
	Granularity report.Granularity        `json:"granularity"`
	AxisFormat  report.AxisFormat         `json:"axis_format"`
	YAxisFormat string                    `json:"y_axis_format"`
	ChartType   report.ChartType          `json:"chart_type"`
	Columns     []report.Column           `json:"columns"`
	Series      []report.NormalizedSeries `json:"series"`
	Table       []report.TableRow         `json:"table"`
	Flat        bool                      `json:"flat"`
	Placeholder string                    `json:"placeholder,omitempty"`
	Cohorts     map[string]*stats.Cohort  `json:"cohorts,omitempty"`
	Buttons     []string                  `json:"buttons"`
	Request     stats.Params              `json:"request"`
}

type usageEventRequest struct {
	Seq             *int64    `json:"seq"`
	Date            time.Time `json:"date"`
	Kind            string    `json:"kind"`
	IMSI            string    `json:"imsi"`
	Change          int64     `json:"change"`
	Billsec         int64     `json:"billsec"`
	UploadedBytes   int64     `json:"uploaded_bytes"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	OldAmt          int64     `json:"oldamt"`
	NewAmt          int64     `json:"newamt"`
}

type usageBatchRequest struct {
	BTSID  int64               `json:"bts_id"`
	Events []usageEventRequest `json:"events"`
}

type ingestResponse struct {
	OK         bool  `json:"ok"`
	Inserted   int64 `json:"inserted"`
	Duplicates int64 `json:"duplicates"`
}

type sampleRequest struct {
	Key       string  `json:"key"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

type systemEventRequest struct {
	Type string    `json:"type"`
	Date time.Time `json:"date"`
}

// writeQueryError maps a failed stats or report query onto the error
// envelope: bad input is a validation error, anything else a failed
// upstream request the console shows as a transient banner.
func writeQueryError(c *gin.Context, err error) {
	switch {
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: err.Error()})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		c.JSON(http.StatusBadGateway, errResponse{OK: false, Error: "REQUEST_FAILED", Message: err.Error()})
	}
}

func isValidationError(err error) bool {
	var perr *time.ParseError
	var nerr *strconv.NumError
	return errors.Is(err, stats.ErrBadParam) ||
		errors.Is(err, stats.ErrNoDenomination) ||
		errors.Is(err, report.ErrUnknownButton) ||
		errors.Is(err, errInvalidRange) ||
		errors.As(err, &perr) ||
		errors.As(err, &nerr)
}
