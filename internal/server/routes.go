package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SetupRoutes returns the application router bound to the process-wide hub.
func SetupRoutes() http.Handler {
	return NewRouter(GetHub())
}

// NewRouter builds the gin engine for h: health check, WebSocket endpoint,
// file upload and static serving of uploaded files.
func NewRouter(h *Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	cfg := currentConfig()

	r := gin.New()
	r.Use(gin.CustomRecoveryWithWriter(io.Discard, recoverWithLog), requestLogger(), securityHeaders())

	r.Any("/", gin.WrapF(HealthHandler))
	r.Any("/ws", gin.WrapF(h.ServeWS))
	r.GET("/stats", statsHandler(h))
	r.POST("/upload", UploadHandler)
	r.Static("/uploads", cfg.UploadDir)

	return r
}

func statsHandler(h *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms, clients := h.Stats()
		c.JSON(http.StatusOK, gin.H{"rooms": rooms, "clients": clients})
	}
}

func recoverWithLog(c *gin.Context, recovered any) {
	log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("recovered from panic in http handler")
	c.String(http.StatusInternalServerError, "ERROR!")
	c.Abort()
}

// requestLogger logs one line per HTTP request. WebSocket sessions are
// logged when the upgrade handler returns, not when the socket closes.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("addr", c.ClientIP()).
			Msg("http request")
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "SAMEORIGIN")
		header.Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
