package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CORSMiddleware allows the configured origins. An empty list or "*" allows any origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	for _, o := range origins {
		if o == "*" {
			return cors.New(cfg)
		}
	}
	if len(origins) > 0 {
		cfg.AllowAllOrigins = false
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// RequestLogger logs every request once it has been served.
func RequestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("Request served")
			return
		}
		entry.Debug("Request served")
	}
}
