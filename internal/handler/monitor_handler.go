package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/response"
	"github.com/stemsi/ielts-mock/internal/service"
)

const (
	defaultRefreshInterval = 5 * time.Second
	keepAliveInterval      = 30 * time.Second
)

// MonitorHandler exposes the live view of loaded sessions.
type MonitorHandler struct {
	monitorService  *service.MonitorService
	refreshInterval time.Duration
	log             zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler. A non-positive refresh
// interval means 5s.
func NewMonitorHandler(monitorService *service.MonitorService, refresh time.Duration, log zerolog.Logger) *MonitorHandler {
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}
	return &MonitorHandler{
		monitorService:  monitorService,
		refreshInterval: refresh,
		log:             log.With().Str("component", "monitor_handler").Logger(),
	}
}

// ListSessions godoc
// GET /api/v1/admin/sessions
func (h *MonitorHandler) ListSessions(c *gin.Context) {
	response.Success(c, http.StatusOK, h.monitorService.Snapshot())
}

// MonitorSSE godoc
// GET /api/v1/admin/sessions/monitor
// Streams a snapshot on connect and again every refresh interval.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c)

	refreshTicker := time.NewTicker(h.refreshInterval)
	defer refreshTicker.Stop()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case <-refreshTicker.C:
			h.sendSnapshot(c)

		case <-keepAliveTicker.C:
			c.SSEvent("message", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context) {
	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": h.monitorService.Snapshot(),
	})
	c.Writer.Flush()
}
