package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"p2pwatcher/internal/aggregate"
	"p2pwatcher/internal/analyzer"
	"p2pwatcher/internal/metrics"
	"p2pwatcher/internal/scheduler"
	"p2pwatcher/internal/service"
	"p2pwatcher/internal/storage"
)

const (
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"

	defaultLatestLimit  = 10
	defaultMinAmount    = 5000
	maxHistoryLimit     = 5000
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

// Monitor is the control and reporting surface the API drives.
type Monitor interface {
	Start(cfg scheduler.Config) (service.Status, error)
	Stop() (service.Status, error)
	Status() service.Status
	Hourly() []aggregate.HourBucket
	Analyze() analyzer.Result
	History(n int) []storage.Sample
}

// Bank describes a selectable payment bank.
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Options configure the handler.
type Options struct {
	// DefaultMinAmount applies when a start request omits minAmount.
	DefaultMinAmount int64
	// LatestLimit caps latestData in the analytics payload.
	LatestLimit int
	Banks       []Bank
	// SupportsBank rejects start requests for unmapped banks. Nil accepts all.
	SupportsBank func(code string) bool
	// CheckStorage probes the persistence backend for /healthz. Nil skips it.
	CheckStorage func(ctx context.Context) error
}

// Handler serves the monitoring API over gin.
type Handler struct {
	monitor Monitor
	opts    Options
	logger  zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(monitor Monitor, opts Options, logger zerolog.Logger) *Handler {
	if opts.DefaultMinAmount <= 0 {
		opts.DefaultMinAmount = defaultMinAmount
	}
	if opts.LatestLimit <= 0 {
		opts.LatestLimit = defaultLatestLimit
	}
	return &Handler{
		monitor: monitor,
		opts:    opts,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Routes builds the gin engine.
func (h *Handler) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(h.logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/monitoring/start", h.StartMonitoring)
		api.POST("/monitoring/stop", h.StopMonitoring)
		api.GET("/monitoring/status", h.MonitoringStatus)
		api.GET("/analytics", h.Analytics)
		api.GET("/hourly", h.Hourly)
		api.GET("/history", h.History)
		api.GET("/export.csv", h.ExportCSV)
		api.GET("/banks", h.Banks)
	}

	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}

// Server wraps the routes in an http.Server.
func (h *Handler) Server(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &http.Server{
		Addr:         addr,
		Handler:      h.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}
