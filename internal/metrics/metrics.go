package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// EndpointMetrics acumula os números de um endpoint
type EndpointMetrics struct {
	Requests     int64
	Errors       int64
	TotalLatency int64
}

// Metrics reúne os contadores da aplicação
type Metrics struct {
	mu sync.RWMutex

	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64

	// latência em milissegundos
	TotalLatency int64
	RequestCount int64

	Calculations int64

	AnalysesStarted    int64
	AnalysesCompleted  int64
	AnalysesFailed     int64
	AnalysesCanceled   int64
	AnalysesInProgress int64
	AnalysisLatency    int64
	StreamChunks       int64

	WebhooksSent    int64
	WebhookFailures int64

	WSConnections int64
	WSMessagesIn  int64
	WSMessagesOut int64

	CEPLookups   int64
	CEPCacheHits int64

	ExportsGenerated int64
	ExportErrors     int64

	EndpointMetrics map[string]*EndpointMetrics

	StartTime time.Time
}

var globalMetrics *Metrics
var once sync.Once

// Init inicializa a instância global
func Init() {
	once.Do(func() {
		globalMetrics = &Metrics{
			StartTime:       time.Now(),
			EndpointMetrics: make(map[string]*EndpointMetrics),
		}
	})
}

// Get retorna a instância global
func Get() *Metrics {
	Init()
	return globalMetrics
}

// IncrementRequests conta uma requisição HTTP
func (m *Metrics) IncrementRequests(success bool, latencyMs int64) {
	atomic.AddInt64(&m.TotalRequests, 1)
	atomic.AddInt64(&m.TotalLatency, latencyMs)
	atomic.AddInt64(&m.RequestCount, 1)

	if success {
		atomic.AddInt64(&m.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&m.FailedRequests, 1)
	}
}

func (m *Metrics) IncrementCalculations() {
	atomic.AddInt64(&m.Calculations, 1)
}

// IncrementAnalysisStarted marca uma análise como em andamento
func (m *Metrics) IncrementAnalysisStarted() {
	atomic.AddInt64(&m.AnalysesStarted, 1)
	atomic.AddInt64(&m.AnalysesInProgress, 1)
}

// IncrementAnalysisCompleted encerra uma análise com sucesso
func (m *Metrics) IncrementAnalysisCompleted(latencyMs int64) {
	atomic.AddInt64(&m.AnalysesCompleted, 1)
	atomic.AddInt64(&m.AnalysesInProgress, -1)
	atomic.AddInt64(&m.AnalysisLatency, latencyMs)
}

// IncrementAnalysisFailed encerra uma análise com erro
func (m *Metrics) IncrementAnalysisFailed() {
	atomic.AddInt64(&m.AnalysesFailed, 1)
	atomic.AddInt64(&m.AnalysesInProgress, -1)
}

// IncrementAnalysisCanceled encerra uma análise cancelada ou substituída
func (m *Metrics) IncrementAnalysisCanceled() {
	atomic.AddInt64(&m.AnalysesCanceled, 1)
	atomic.AddInt64(&m.AnalysesInProgress, -1)
}

func (m *Metrics) IncrementStreamChunks() {
	atomic.AddInt64(&m.StreamChunks, 1)
}

// IncrementWebhook conta uma entrega de webhook
func (m *Metrics) IncrementWebhook(success bool) {
	if success {
		atomic.AddInt64(&m.WebhooksSent, 1)
	} else {
		atomic.AddInt64(&m.WebhookFailures, 1)
	}
}

func (m *Metrics) IncrementWSConnection() {
	atomic.AddInt64(&m.WSConnections, 1)
}

func (m *Metrics) DecrementWSConnection() {
	atomic.AddInt64(&m.WSConnections, -1)
}

func (m *Metrics) IncrementWSMessageIn() {
	atomic.AddInt64(&m.WSMessagesIn, 1)
}

func (m *Metrics) IncrementWSMessageOut() {
	atomic.AddInt64(&m.WSMessagesOut, 1)
}

func (m *Metrics) IncrementCEPLookups() {
	atomic.AddInt64(&m.CEPLookups, 1)
}

func (m *Metrics) IncrementCEPCacheHits() {
	atomic.AddInt64(&m.CEPCacheHits, 1)
}

// IncrementExport conta uma planilha gerada
func (m *Metrics) IncrementExport(success bool) {
	if success {
		atomic.AddInt64(&m.ExportsGenerated, 1)
	} else {
		atomic.AddInt64(&m.ExportErrors, 1)
	}
}

// TrackEndpoint registra uma requisição para o endpoint
func (m *Metrics) TrackEndpoint(path, method string, statusCode int, latencyMs int64) {
	key := method + " " + path

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EndpointMetrics == nil {
		m.EndpointMetrics = make(map[string]*EndpointMetrics)
	}

	em, exists := m.EndpointMetrics[key]
	if !exists {
		em = &EndpointMetrics{}
		m.EndpointMetrics[key] = em
	}

	atomic.AddInt64(&em.Requests, 1)
	atomic.AddInt64(&em.TotalLatency, latencyMs)
	if statusCode >= 400 {
		atomic.AddInt64(&em.Errors, 1)
	}
}

// GetEndpointMetrics retorna uma cópia das métricas por endpoint
func (m *Metrics) GetEndpointMetrics() map[string]EndpointMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]EndpointMetrics)
	for k, v := range m.EndpointMetrics {
		result[k] = EndpointMetrics{
			Requests:     atomic.LoadInt64(&v.Requests),
			Errors:       atomic.LoadInt64(&v.Errors),
			TotalLatency: atomic.LoadInt64(&v.TotalLatency),
		}
	}
	return result
}

// GetAverageLatency retorna a latência média em milissegundos
func (m *Metrics) GetAverageLatency() float64 {
	count := atomic.LoadInt64(&m.RequestCount)
	if count == 0 {
		return 0
	}
	total := atomic.LoadInt64(&m.TotalLatency)
	return float64(total) / float64(count)
}

func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.StartTime)
}

type EndpointMetricsSnapshot struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// MetricsSnapshot é a foto de todas as métricas em um instante
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`

	Requests struct {
		Total        int64   `json:"total"`
		Successful   int64   `json:"successful"`
		Failed       int64   `json:"failed"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	} `json:"requests"`

	Calculations int64 `json:"calculations"`

	Analyses struct {
		Started      int64   `json:"started"`
		Completed    int64   `json:"completed"`
		Failed       int64   `json:"failed"`
		Canceled     int64   `json:"canceled"`
		InProgress   int64   `json:"in_progress"`
		Chunks       int64   `json:"chunks"`
		AvgLatencyMs float64 `json:"avg_latency_ms"`
	} `json:"analyses"`

	Webhooks struct {
		Sent     int64 `json:"sent"`
		Failures int64 `json:"failures"`
	} `json:"webhooks"`

	WebSocket struct {
		Connections int64 `json:"connections"`
		MessagesIn  int64 `json:"messages_in"`
		MessagesOut int64 `json:"messages_out"`
	} `json:"websocket"`

	CEP struct {
		Lookups   int64 `json:"lookups"`
		CacheHits int64 `json:"cache_hits"`
	} `json:"cep"`

	Exports struct {
		Generated int64 `json:"generated"`
		Errors    int64 `json:"errors"`
	} `json:"exports"`

	System struct {
		Goroutines   int    `json:"goroutines"`
		HeapAllocMB  uint64 `json:"heap_alloc_mb"`
		HeapInUseMB  uint64 `json:"heap_inuse_mb"`
		StackInUseMB uint64 `json:"stack_inuse_mb"`
		NumGC        uint32 `json:"num_gc"`
	} `json:"system"`

	Endpoints map[string]EndpointMetricsSnapshot `json:"endpoints,omitempty"`
}

// Snapshot retorna a foto atual das métricas
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snapshot := MetricsSnapshot{}

	snapshot.UptimeSeconds = m.GetUptime().Seconds()
	snapshot.StartTime = m.StartTime.Format(time.RFC3339)

	snapshot.Requests.Total = atomic.LoadInt64(&m.TotalRequests)
	snapshot.Requests.Successful = atomic.LoadInt64(&m.SuccessfulRequests)
	snapshot.Requests.Failed = atomic.LoadInt64(&m.FailedRequests)
	snapshot.Requests.AvgLatencyMs = m.GetAverageLatency()

	snapshot.Calculations = atomic.LoadInt64(&m.Calculations)

	completed := atomic.LoadInt64(&m.AnalysesCompleted)
	snapshot.Analyses.Started = atomic.LoadInt64(&m.AnalysesStarted)
	snapshot.Analyses.Completed = completed
	snapshot.Analyses.Failed = atomic.LoadInt64(&m.AnalysesFailed)
	snapshot.Analyses.Canceled = atomic.LoadInt64(&m.AnalysesCanceled)
	snapshot.Analyses.InProgress = atomic.LoadInt64(&m.AnalysesInProgress)
	snapshot.Analyses.Chunks = atomic.LoadInt64(&m.StreamChunks)
	if completed > 0 {
		snapshot.Analyses.AvgLatencyMs = float64(atomic.LoadInt64(&m.AnalysisLatency)) / float64(completed)
	}

	snapshot.Webhooks.Sent = atomic.LoadInt64(&m.WebhooksSent)
	snapshot.Webhooks.Failures = atomic.LoadInt64(&m.WebhookFailures)

	snapshot.WebSocket.Connections = atomic.LoadInt64(&m.WSConnections)
	snapshot.WebSocket.MessagesIn = atomic.LoadInt64(&m.WSMessagesIn)
	snapshot.WebSocket.MessagesOut = atomic.LoadInt64(&m.WSMessagesOut)

	snapshot.CEP.Lookups = atomic.LoadInt64(&m.CEPLookups)
	snapshot.CEP.CacheHits = atomic.LoadInt64(&m.CEPCacheHits)

	snapshot.Exports.Generated = atomic.LoadInt64(&m.ExportsGenerated)
	snapshot.Exports.Errors = atomic.LoadInt64(&m.ExportErrors)

	snapshot.System.Goroutines = runtime.NumGoroutine()
	snapshot.System.HeapAllocMB = memStats.HeapAlloc / 1024 / 1024
	snapshot.System.HeapInUseMB = memStats.HeapInuse / 1024 / 1024
	snapshot.System.StackInUseMB = memStats.StackInuse / 1024 / 1024
	snapshot.System.NumGC = memStats.NumGC

	endpointMetrics := m.GetEndpointMetrics()
	if len(endpointMetrics) > 0 {
		snapshot.Endpoints = make(map[string]EndpointMetricsSnapshot)
		for k, v := range endpointMetrics {
			em := EndpointMetricsSnapshot{
				Requests: v.Requests,
				Errors:   v.Errors,
			}
			if v.Requests > 0 {
				em.ErrorRate = float64(v.Errors) / float64(v.Requests) * 100
				em.AvgLatencyMs = float64(v.TotalLatency) / float64(v.Requests)
			}
			snapshot.Endpoints[k] = em
		}
	}

	return snapshot
}

// HealthStatus é o estado de um componente
type HealthStatus struct {
	Status  string `json:"status"` // "healthy", "degraded", "unhealthy"
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
}

// HealthCheck é a resposta completa do health check
type HealthCheck struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Timestamp  string                  `json:"timestamp"`
	Components map[string]HealthStatus `json:"components"`
}

// CheckAIProviderHealth informa se o provedor de IA pode ser usado. Sem chave
// o servidor continua atendendo cálculos, então o estado é "degraded".
func CheckAIProviderHealth(provider string, configured bool) HealthStatus {
	if !configured {
		return HealthStatus{
			Status:  "degraded",
			Message: provider + ": chave da API não configurada",
		}
	}
	return HealthStatus{
		Status:  "healthy",
		Message: provider,
	}
}

// CheckMemoryHealth verifica o uso de heap
func CheckMemoryHealth(maxHeapMB uint64) HealthStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	heapMB := memStats.HeapAlloc / 1024 / 1024

	if heapMB > maxHeapMB {
		return HealthStatus{
			Status:  "unhealthy",
			Message: "heap memory exceeds limit",
		}
	}

	if heapMB > (maxHeapMB * 80 / 100) {
		return HealthStatus{
			Status:  "degraded",
			Message: "heap memory usage high",
		}
	}

	return HealthStatus{
		Status: "healthy",
	}
}

// DetermineOverallStatus combina os estados dos componentes
func DetermineOverallStatus(components map[string]HealthStatus) string {
	hasUnhealthy := false
	hasDegraded := false

	for _, status := range components {
		switch status.Status {
		case "unhealthy":
			hasUnhealthy = true
		case "degraded":
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return "unhealthy"
	}
	if hasDegraded {
		return "degraded"
	}
	return "healthy"
}
