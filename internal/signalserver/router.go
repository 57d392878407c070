package signalserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CosmosZhu/eEducation/internal/config"
)

// SetupRouter wires the REST inspection surface and the websocket endpoint.
func SetupRouter(ctx context.Context, cfg *config.Config, ctl *Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// GET /api/channels — member counts per channel, for debugging.
	r.GET("/api/channels", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"channels": ctl.Hub.ChannelCounts()})
	})

	r.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	return r
}
