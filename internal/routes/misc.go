package routes

import (
	"AkhilTG/tvsb/internal/types"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// LoadHome registers the root liveness route.
func (e *allRoutes) LoadHome(r *Route) {
	homeLog := e.log.Named("Home")
	defer homeLog.Info("Loaded home route")
	r.Engine.GET("/", func(ctx *gin.Context) {
		status := "starting"
		if e.svc.Ready() {
			status = "running"
		}
		ctx.JSON(http.StatusOK, types.RootResponse{
			Status:  status,
			Service: "Telegram Stream Gateway",
			Version: e.version,
			Message: "Send a file to the bot to get a stream link.",
			Uptime:  uptime(),
			Feats: []string{
				"Range request support",
				"File handle caching",
				"Multi-DC media session management",
				"VLC compatible streaming",
			},
		})
	})
}

// LoadHealth registers the health check route.
func (e *allRoutes) LoadHealth(r *Route) {
	healthLog := e.log.Named("Health")
	defer healthLog.Info("Loaded health route")
	r.Engine.GET("/health", func(ctx *gin.Context) {
		connected := e.svc.Ready()
		status := "unhealthy"
		if connected {
			status = "healthy"
		}
		ctx.JSON(http.StatusOK, types.HealthResponse{
			Status:       status,
			BotConnected: connected,
		})
	})
}

func uptime() string {
	return time.Since(startTime).Round(time.Second).String()
}
