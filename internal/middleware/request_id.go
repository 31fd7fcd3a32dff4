package middleware

import (
	"net/http"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID é o header HTTP para request ID
	HeaderRequestID = "X-Request-ID"
	// HeaderTraceID é o header HTTP para trace ID
	HeaderTraceID = "X-Trace-ID"

	// ContextRequestID é a chave do request ID no gin.Context
	ContextRequestID = "request_id"
)

// RequestID adiciona request_id e trace_id a cada requisição e registra
// início e fim com a latência
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := SanitizeID(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}

		traceID := SanitizeID(c.GetHeader(HeaderTraceID))
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		ctx = logger.WithTraceID(ctx, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextRequestID, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		log := logger.Get(ctx)
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int64("content_length", c.Request.ContentLength).
			Msg("Request started")

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		logEvent := log.Info()
		if statusCode >= 400 {
			logEvent = log.Warn()
		}
		if statusCode >= 500 {
			logEvent = log.Error()
		}

		logEvent.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", statusCode).
			Int("size", c.Writer.Size()).
			Dur("latency", duration).
			Msg("Request completed")
	}
}

// MaxBodySize limita o tamanho do corpo das requisições
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
