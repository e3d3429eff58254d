// Package api is the bot's HTTP side: the keep-alive root, a health probe
// and an aggregate stats endpoint for dashboards.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"

	"github.com/tgfetch/url-uploader-bot/internal/services"
	"github.com/tgfetch/url-uploader-bot/internal/session"
	"github.com/tgfetch/url-uploader-bot/internal/storage"
)

// Deps are the backends the endpoints report on. Nil NATS means the event
// bus is disabled, not unhealthy.
type Deps struct {
	Users    storage.Store
	Minio    *services.MinioService
	NATS     *nats.Conn
	Sessions *session.Store
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gintrace.Middleware("url-uploader-bot"))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Bot is alive")
	})

	api := r.Group("/api")
	{
		api.GET("/health", healthCheck(deps))
		api.GET("/stats", RequireAuth(), statsHandler(deps))
	}
	return r
}

func healthCheck(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true

		if err := deps.Users.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}

		if err := deps.Minio.CheckConnection(ctx); err != nil {
			checks["minio"] = err.Error()
			healthy = false
		} else {
			checks["minio"] = "ok"
		}

		switch {
		case deps.NATS == nil:
			checks["nats"] = "disabled"
		case deps.NATS.IsConnected():
			checks["nats"] = "ok"
		default:
			checks["nats"] = "disconnected"
			healthy = false
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
	}
}

func statsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := deps.Users.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"users":            stats,
			"pending_sessions": deps.Sessions.Count(),
		})
	}
}
