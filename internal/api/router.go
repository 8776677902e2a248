package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the handlers into a gin engine. mode is a gin mode
// ("debug", "release", "test").
func NewRouter(h *Handler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	r.GET("/healthz", h.Health)
	api := r.Group("/api")
	api.POST("/runs", h.StartRun)
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/:id", h.GetRun)
	api.POST("/resolve", h.Resolve)
	return r
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
