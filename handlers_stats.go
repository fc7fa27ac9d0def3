package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pcarivbts/CommunityCellularManager/internal/stats"
)

func handleStats(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		level, err := stats.ParseLevel(c.Param("level"))
		if err != nil {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: err.Error()})
			return
		}
		params, err := stats.ParseParams(c.Request.URL.Query())
		if err != nil {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: err.Error()})
			return
		}

		resp, err := engine.Query(c.Request.Context(), level, params)
		if err != nil {
			writeQueryError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleCacheStats(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "cache": engine.CacheStats()})
	}
}
