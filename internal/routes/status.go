package routes

import (
	"AkhilTG/tvsb/internal/dc"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type StatusResponse struct {
	BotConnected  bool             `json:"bot_connected"`
	BotStatus     string           `json:"bot_status"`
	ActiveStreams int64            `json:"active_streams"`
	CachedHandles int64            `json:"cached_handles"`
	Sessions      []dc.SessionStat `json:"sessions"`
	FileMapping   dc.MapStats      `json:"file_mapping"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Timestamp     time.Time        `json:"timestamp"`
}

// LoadStatus registers the operational status route: per-DC session state,
// back-off deadlines and the file→DC mapping distribution.
func (e *allRoutes) LoadStatus(r *Route) {
	statusLog := e.log.Named("Status")
	defer statusLog.Info("Loaded status route")
	r.Engine.GET("/status", func(ctx *gin.Context) {
		response := StatusResponse{
			BotConnected:  e.svc.Ready(),
			BotStatus:     e.svc.Status(),
			ActiveStreams: e.svc.ActiveStreams(),
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Timestamp:     time.Now(),
		}

		if streamer, err := e.svc.Streamer(); err == nil {
			response.Sessions = streamer.Registry().Stats()
			response.FileMapping = streamer.FileMap().Stats()
			response.CachedHandles = streamer.Handles().EntryCount()
		}

		ctx.JSON(http.StatusOK, response)
	})
}
