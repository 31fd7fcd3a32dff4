package middleware

import (
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware registra contagem e latência por endpoint
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start).Milliseconds()
		statusCode := c.Writer.Status()

		metrics.Get().IncrementRequests(statusCode < 400, latency)

		// rota registrada, para não explodir a cardinalidade com /cep/:cep
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.Get().TrackEndpoint(path, c.Request.Method, statusCode, latency)
	}
}
