package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rohitwebstep/synco-sub000/internal/logger"
)

// RequestLoggingMiddleware logs every HTTP request with latency and client
// details.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		logger.Infof("%s %s -> %d (%dms) from %s",
			c.Request.Method, path, status, latency.Milliseconds(), c.ClientIP())
	}
}
