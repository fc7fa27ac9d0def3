package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pcarivbts/CommunityCellularManager/internal/broadcast"
)

func handleBroadcast(svc *broadcast.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req broadcast.Request
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: err.Error()})
			return
		}

		resp, err := svc.Send(c.Request.Context(), req)
		if errors.Is(err, broadcast.ErrQueueFull) || errors.Is(err, broadcast.ErrStopped) {
			c.JSON(http.StatusServiceUnavailable, errResponse{OK: false, Error: "REQUEST_FAILED", Message: err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleBroadcastHistory(svc *broadcast.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		networkID, err := strconv.ParseInt(strings.TrimSpace(c.Query("network_id")), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errResponse{OK: false, Error: "VALIDATION_ERROR", Message: "network_id is required"})
			return
		}
		limit := parseLimit(c.Query("limit"), 20, 1, 200)

		logs, err := svc.History(c.Request.Context(), networkID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, errResponse{OK: false, Error: "INTERNAL_ERROR", Message: err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "network_id": networkID, "data": logs})
	}
}
