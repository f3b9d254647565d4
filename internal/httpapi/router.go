package httpapi

import (
	"expvar"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the RAG endpoints, request logging and /debug/vars.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	r.GET("/", h.health)
	r.POST("/add", h.add)
	r.POST("/query", h.query)
	r.DELETE("/delete/:doc_id", h.delete)
	// An empty id never reaches the param route.
	r.DELETE("/delete/", h.delete)
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		switch {
		case status >= 500:
			log.Error("Request failed", attrs...)
		case status >= 400:
			log.Warn("Request rejected", attrs...)
		default:
			log.Info("Request handled", attrs...)
		}
	}
}
