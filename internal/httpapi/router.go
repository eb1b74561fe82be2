// Package httpapi exposes the bot's HTTP surface: liveness, health,
// readiness, and the inbound webhook endpoint.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kritika-bot/kritika/internal/telegram"
)

// Status is the structured health payload.
type Status struct {
	Status           string `json:"status"`
	TelegramAppReady bool   `json:"telegram_app_ready"`
	ModelReady       bool   `json:"model_ready"`
	ConfigLoaded     bool   `json:"config_loaded"`
}

// StatusSource is implemented by the lifecycle controller. Health reporting
// is owned there, never derived from transport-library internals.
type StatusSource interface {
	Health() Status
	Ready() bool
	// Accepting reports whether new inbound events are still taken;
	// false while starting or shutting down.
	Accepting() bool
	// WebhookEnabled reports whether the service runs in webhook mode.
	WebhookEnabled() bool
}

// WebhookSink receives each decoded inbound update.
type WebhookSink func(ctx context.Context, u telegram.Update)

// NewRouter wires the HTTP routes.
func NewRouter(src StatusSource, sink WebhookSink) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Health())
	})

	r.GET("/ready", func(c *gin.Context) {
		if !src.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	})

	r.POST("/webhook", func(c *gin.Context) {
		if !src.WebhookEnabled() {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"status": "error", "error": "webhook disabled"})
			return
		}
		if !src.Accepting() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "shutting down"})
			return
		}
		var u telegram.Update
		if err := c.ShouldBindJSON(&u); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "malformed payload"})
			return
		}
		sink(c.Request.Context(), u)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
