package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"p2pwatcher/internal/aggregate"
	"p2pwatcher/internal/scheduler"
	"p2pwatcher/internal/storage"
)

type startRequest struct {
	MinAmount *int64 `json:"minAmount"`
	Bank      string `json:"bank"`
}

// StartMonitoring handles POST /api/monitoring/start.
func (h *Handler) StartMonitoring(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	cfg := scheduler.Config{MinAmount: h.opts.DefaultMinAmount, Bank: strings.ToLower(strings.TrimSpace(req.Bank))}
	if req.MinAmount != nil {
		cfg.MinAmount = *req.MinAmount
	}
	if h.opts.SupportsBank != nil && !h.opts.SupportsBank(cfg.Bank) {
		h.badRequest(c, "unknown bank "+strconv.Quote(cfg.Bank))
		return
	}

	status, err := h.monitor.Start(cfg)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "monitoring started", "status": status})
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error(), "status": status})
	case errors.Is(err, scheduler.ErrInvalidConfiguration):
		h.badRequest(c, "minAmount must be a positive integer")
	default:
		h.handleError(c, err)
	}
}

// StopMonitoring handles POST /api/monitoring/stop.
func (h *Handler) StopMonitoring(c *gin.Context) {
	status, err := h.monitor.Stop()
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "monitoring stopped", "status": status})
	case errors.Is(err, scheduler.ErrNotRunning):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error(), "status": status})
	default:
		h.handleError(c, err)
	}
}

// MonitoringStatus handles GET /api/monitoring/status.
func (h *Handler) MonitoringStatus(c *gin.Context) {
	status := h.monitor.Status()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"isActive":     status.Running,
		"recordsCount": status.HistorySize,
		"status":       status,
	})
}

// Analytics handles GET /api/analytics.
func (h *Handler) Analytics(c *gin.Context) {
	hourly := h.monitor.Hourly()
	latest := newestFirst(h.monitor.History(h.opts.LatestLimit))

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"totalRecords": h.monitor.Status().HistorySize,
		"totalSamples": aggregate.TotalCount(hourly),
		"hourlyData":   hourly,
		"analysis":     h.monitor.Analyze(),
		"latestData":   latest,
	})
}

// Hourly handles GET /api/hourly.
func (h *Handler) Hourly(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "hourlyData": h.monitor.Hourly()})
}

// History handles GET /api/history?limit=N.
func (h *Handler) History(c *gin.Context) {
	limit, err := parseLimit(c.DefaultQuery("limit", "100"))
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	samples := h.monitor.History(limit)
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(samples), "samples": samples})
}

// ExportCSV handles GET /api/export.csv.
func (h *Handler) ExportCSV(c *gin.Context) {
	samples := h.monitor.History(0)
	filename := "price_data_" + time.Now().Format("20060102_150405") + ".csv"

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := storage.WriteCSV(c.Writer, samples); err != nil {
		h.logger.Error().Err(err).Msg("csv export failed")
		_ = c.Error(err)
	}
}

// Banks handles GET /api/banks.
func (h *Handler) Banks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "banks": h.opts.Banks})
}

// HealthCheck handles GET /healthz. A failing storage backend turns the
// answer into 503.
func (h *Handler) HealthCheck(c *gin.Context) {
	status := h.monitor.Status()
	body := gin.H{
		"status":      "OK",
		"state":       status.State,
		"historySize": status.HistorySize,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if h.opts.CheckStorage != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.opts.CheckStorage(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("storage health check failed")
			body["status"] = "DEGRADED"
			body["storage"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			body["storage"] = "OK"
		}
	}
	c.JSON(code, body)
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
}

func parseLimit(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}

func newestFirst(samples []storage.Sample) []storage.Sample {
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples
}
