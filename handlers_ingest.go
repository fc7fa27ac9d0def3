package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pcarivbts/CommunityCellularManager/internal/models"
	"github.com/pcarivbts/CommunityCellularManager/internal/stats"
	"github.com/pcarivbts/CommunityCellularManager/internal/tsdb"
)

const maxIngestBatch = 5000

// handleUsageEvents stores a batch of usage events uploaded by a tower.
// Events carrying a seq already stored for that tower are skipped, so a
// tower may resend a batch after a timeout.
func handleUsageEvents(db *gorm.DB, engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req usageBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: err.Error()})
			return
		}
		if msg := validateUsageBatch(req); msg != "" {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: msg})
			return
		}

		bts, err := findBTS(db.WithContext(c.Request.Context()), req.BTSID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: "unknown bts_id"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
			return
		}

		inserted, err := createUsageEvents(db.WithContext(c.Request.Context()), bts, req.Events)
		if err != nil {
			c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
			return
		}
		if inserted > 0 {
			engine.ClearCache()
		}
		c.JSON(http.StatusOK, ingestResponse{OK: true, Inserted: inserted, Duplicates: int64(len(req.Events)) - inserted})
	}
}

func validateUsageBatch(req usageBatchRequest) string {
	if req.BTSID <= 0 {
		return "bts_id is required"
	}
	if len(req.Events) == 0 {
		return "events is required"
	}
	if len(req.Events) > maxIngestBatch {
		return fmt.Sprintf("at most %d events per batch", maxIngestBatch)
	}
	seen := make(map[int64]bool, len(req.Events))
	for i, ev := range req.Events {
		if strings.TrimSpace(ev.Kind) == "" {
			return fmt.Sprintf("events[%d].kind is required", i)
		}
		if ev.Date.IsZero() {
			return fmt.Sprintf("events[%d].date is required", i)
		}
		if ev.Billsec < 0 || ev.UploadedBytes < 0 || ev.DownloadedBytes < 0 {
			return fmt.Sprintf("events[%d] has a negative counter", i)
		}
		if ev.Seq != nil {
			if seen[*ev.Seq] {
				return fmt.Sprintf("events[%d].seq %d is repeated in the batch", i, *ev.Seq)
			}
			seen[*ev.Seq] = true
		}
	}
	return ""
}

func findBTS(db *gorm.DB, id int64) (models.BTS, error) {
	var bts models.BTS
	err := db.Where("id = ?", id).First(&bts).Error
	return bts, err
}

func createUsageEvents(db *gorm.DB, bts models.BTS, events []usageEventRequest) (int64, error) {
	rows := make([]models.UsageEvent, 0, len(events))
	for _, ev := range events {
		rows = append(rows, models.UsageEvent{
			Date:            ev.Date.UTC(),
			Kind:            strings.TrimSpace(ev.Kind),
			NetworkID:       bts.NetworkID,
			BTSID:           bts.ID,
			Seq:             ev.Seq,
			SubscriberIMSI:  strings.TrimSpace(ev.IMSI),
			Change:          ev.Change,
			Billsec:         ev.Billsec,
			UploadedBytes:   ev.UploadedBytes,
			DownloadedBytes: ev.DownloadedBytes,
			OldAmt:          ev.OldAmt,
			NewAmt:          ev.NewAmt,
		})
	}

	var inserted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bts_id"}, {Name: "seq"}},
			DoNothing: true,
		}).CreateInBatches(&rows, 500)
		if result.Error != nil {
			return result.Error
		}
		inserted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// handleTowerSamples writes tower timeseries samples into the sample store.
func handleTowerSamples(db *gorm.DB, store *tsdb.Store, engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		towerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || towerID <= 0 {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: "invalid tower id"})
			return
		}
		var req []sampleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: err.Error()})
			return
		}
		if len(req) == 0 || len(req) > maxIngestBatch {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: fmt.Sprintf("between 1 and %d samples per batch", maxIngestBatch)})
			return
		}
		if _, err := findBTS(db.WithContext(c.Request.Context()), towerID); err != nil {
			status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
			if errors.Is(err, gorm.ErrRecordNotFound) {
				status, code = http.StatusBadRequest, "VALIDATION_ERROR"
			}
			c.JSON(status, errResponse{OK: false, Error: code, Message: "unknown tower"})
			return
		}

		byKey := make(map[string][]tsdb.Sample)
		for i, s := range req {
			if !isTimeseriesKey(s.Key) {
				c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: fmt.Sprintf("samples[%d].key %q is not a tower stat", i, s.Key)})
				return
			}
			if s.Timestamp <= 0 {
				c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: fmt.Sprintf("samples[%d].timestamp is required", i)})
				return
			}
			byKey[s.Key] = append(byKey[s.Key], tsdb.Sample{Timestamp: time.Unix(s.Timestamp, 0).UTC(), Value: s.Value})
		}
		for key, samples := range byKey {
			if err := store.Write(c.Request.Context(), towerID, key, samples); err != nil {
				c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
				return
			}
		}
		engine.ClearCache()
		c.JSON(http.StatusOK, gin.H{"ok": true, "written": len(req)})
	}
}

func isTimeseriesKey(key string) bool {
	for _, k := range stats.TimeseriesStatKeys {
		if k == key {
			return true
		}
	}
	return false
}

// handleSystemEvent records a tower up/down transition.
func handleSystemEvent(db *gorm.DB, engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		towerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || towerID <= 0 {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: "invalid tower id"})
			return
		}
		var req systemEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: err.Error()})
			return
		}
		if !isHealthStatus(req.Type) {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: "type must be one of " + strings.Join(stats.HealthStatus, ", ")})
			return
		}
		if req.Date.IsZero() {
			req.Date = engine.Now()
		}

		ev := models.SystemEvent{Date: req.Date.UTC(), Type: req.Type, BTSID: towerID}
		if err := db.WithContext(c.Request.Context()).Create(&ev).Error; err != nil {
			c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
			return
		}
		engine.ClearCache()
		c.JSON(http.StatusOK, gin.H{"ok": true, "id": ev.ID})
	}
}

func isHealthStatus(t string) bool {
	for _, s := range stats.HealthStatus {
		if s == t {
			return true
		}
	}
	return false
}
