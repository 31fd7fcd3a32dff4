package handler

import (
	"net/http"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/websocket"
	"github.com/gin-gonic/gin"
)

// maxHeapMB limite de memória usado no health check
const maxHeapMB = 512

// AIProviderStatus informa o provedor de IA configurado
type AIProviderStatus interface {
	Name() string
	Configured() bool
}

// HealthHandler handles health check and metrics endpoints
type HealthHandler struct {
	provider  AIProviderStatus
	wsHub     *websocket.Hub
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler. wsHub pode ser nil.
func NewHealthHandler(provider AIProviderStatus, wsHub *websocket.Hub, version string) *HealthHandler {
	return &HealthHandler{
		provider:  provider,
		wsHub:     wsHub,
		version:   version,
		startTime: time.Now(),
	}
}

// LivenessCheck returns basic liveness status
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health/live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck returns readiness status. Sem chave de API o serviço fica
// degradado, mas o cálculo local continua disponível.
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health/ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	components := map[string]metrics.HealthStatus{
		"ai_provider": metrics.CheckAIProviderHealth(h.provider.Name(), h.provider.Configured()),
		"memory":      metrics.CheckMemoryHealth(maxHeapMB),
	}
	h.respond(c, components)
}

// DetailedHealthCheck returns comprehensive health information
// @Summary Detailed health check
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health [get]
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	components := map[string]metrics.HealthStatus{
		"ai_provider": metrics.CheckAIProviderHealth(h.provider.Name(), h.provider.Configured()),
		"memory":      metrics.CheckMemoryHealth(maxHeapMB),
		"analyses":    h.checkAnalysisHealth(),
	}
	if h.wsHub != nil {
		components["websocket"] = metrics.HealthStatus{Status: "healthy"}
	}
	h.respond(c, components)
}

func (h *HealthHandler) respond(c *gin.Context, components map[string]metrics.HealthStatus) {
	overallStatus := metrics.DetermineOverallStatus(components)

	healthCheck := metrics.HealthCheck{
		Status:     overallStatus,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, healthCheck)
}

// checkAnalysisHealth marca o serviço como degradado quando a maioria das análises falha
func (h *HealthHandler) checkAnalysisHealth() metrics.HealthStatus {
	snapshot := metrics.Get().Snapshot()

	total := snapshot.Analyses.Completed + snapshot.Analyses.Failed
	if total >= 10 {
		failureRate := float64(snapshot.Analyses.Failed) / float64(total) * 100
		if failureRate > 50 {
			return metrics.HealthStatus{
				Status:  "degraded",
				Message: "High analysis failure rate",
			}
		}
	}

	return metrics.HealthStatus{
		Status: "healthy",
	}
}

// GetMetrics returns application metrics
// @Summary Get application metrics
// @Tags metrics
// @Produce json
// @Success 200 {object} metrics.MetricsSnapshot
// @Router /metrics [get]
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.Get().Snapshot())
}

// GetMetricsSummary returns a summary of key metrics
// @Summary Get metrics summary
// @Tags metrics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /metrics/summary [get]
func (h *HealthHandler) GetMetricsSummary(c *gin.Context) {
	snapshot := metrics.Get().Snapshot()

	requestSuccessRate := float64(0)
	if snapshot.Requests.Total > 0 {
		requestSuccessRate = float64(snapshot.Requests.Successful) / float64(snapshot.Requests.Total) * 100
	}

	analysisSuccessRate := float64(0)
	finished := snapshot.Analyses.Completed + snapshot.Analyses.Failed
	if finished > 0 {
		analysisSuccessRate = float64(snapshot.Analyses.Completed) / float64(finished) * 100
	}

	cacheHitRate := float64(0)
	if snapshot.CEP.Lookups > 0 {
		cacheHitRate = float64(snapshot.CEP.CacheHits) / float64(snapshot.CEP.Lookups) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": snapshot.UptimeSeconds,
		"version":        h.version,
		"requests": gin.H{
			"total":        snapshot.Requests.Total,
			"success_rate": requestSuccessRate,
			"avg_latency":  snapshot.Requests.AvgLatencyMs,
		},
		"analyses": gin.H{
			"in_progress":  snapshot.Analyses.InProgress,
			"completed":    snapshot.Analyses.Completed,
			"failed":       snapshot.Analyses.Failed,
			"canceled":     snapshot.Analyses.Canceled,
			"success_rate": analysisSuccessRate,
			"avg_latency":  snapshot.Analyses.AvgLatencyMs,
		},
		"calculations": snapshot.Calculations,
		"cep": gin.H{
			"lookups":        snapshot.CEP.Lookups,
			"cache_hit_rate": cacheHitRate,
		},
		"websocket": gin.H{
			"connections": snapshot.WebSocket.Connections,
		},
		"system": gin.H{
			"goroutines":  snapshot.System.Goroutines,
			"heap_mb":     snapshot.System.HeapAllocMB,
			"heap_use_mb": snapshot.System.HeapInUseMB,
		},
	})
}

// GetEndpointMetrics returns metrics for specific endpoints
// @Summary Get endpoint metrics
// @Tags metrics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /metrics/endpoints [get]
func (h *HealthHandler) GetEndpointMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"endpoints": metrics.Get().Snapshot().Endpoints,
	})
}
