package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/client"
	"github.com/cleberrangel/freelance-pricing-api/internal/config"
	"github.com/cleberrangel/freelance-pricing-api/internal/handler"
	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/middleware"
	"github.com/cleberrangel/freelance-pricing-api/internal/service"
	"github.com/cleberrangel/freelance-pricing-api/internal/websocket"
	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

// maxBodyBytes limita o payload das requisições JSON
const maxBodyBytes = 1 << 20

const shutdownTimeout = 15 * time.Second

func main() {
	// Carrega configurações
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Erro ao carregar configurações: %v", err)
	}

	// Inicializa logger estruturado
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	metrics.Init()
	log := logger.Global()
	log.Info().
		Str("version", Version).
		Str("port", cfg.Port).
		Str("ai_provider", cfg.AIProvider).
		Str("ai_model", cfg.AIModel).
		Str("log_level", cfg.LogLevel).
		Bool("log_json", cfg.LogJSON).
		Msg("Freelance Pricing API iniciando")

	// Inicializa dependências
	provider := client.NewProvider(cfg)
	if !provider.Configured() {
		log.Warn().
			Str("ai_provider", provider.Name()).
			Msg("Chave da API de IA não configurada: análises vão falhar até que seja definida")
	}

	interpreter := service.NewInterpreter(service.NewMarkdownRenderer())
	analysisService := service.NewAnalysisService(provider, interpreter, cfg.AIRequestsPerMinute, cfg.AITimeout)
	webhookService := service.NewWebhookService()
	excelGenerator := service.NewExcelGenerator()
	cepClient := client.NewViaCEPClient(cfg.CEPBaseURL, cfg.CEPCacheTTL)

	hub := websocket.NewHub(analysisService)
	go hub.Run()

	estimateHandler := handler.NewEstimateHandler(analysisService, webhookService, excelGenerator)
	cepHandler := handler.NewCEPHandler(cepClient)
	healthHandler := handler.NewHealthHandler(provider, hub, Version)
	wsHandler := handler.NewWebSocketHandler(hub)

	// Configura modo do Gin
	gin.SetMode(cfg.GinMode)

	// Inicializa router
	r := gin.New()
	r.Use(middleware.RequestID()) // Request ID + logging estruturado
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())

	// Health check e métricas
	r.GET("/health", healthHandler.DetailedHealthCheck)
	r.GET("/health/live", healthHandler.LivenessCheck)
	r.GET("/health/ready", healthHandler.ReadinessCheck)
	r.GET("/metrics", healthHandler.GetMetrics)
	r.GET("/metrics/summary", healthHandler.GetMetricsSummary)
	r.GET("/metrics/endpoints", healthHandler.GetEndpointMetrics)

	// Debug memory endpoint
	r.GET("/debug/memory", func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		c.JSON(200, gin.H{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"heap_alloc_mb":  m.HeapAlloc / 1024 / 1024,
			"heap_inuse_mb":  m.HeapInuse / 1024 / 1024,
			"heap_objects":   m.HeapObjects,
			"goroutines":     runtime.NumGoroutine(),
			"gc_runs":        m.NumGC,
			"gc_pause_total": m.PauseTotalNs / 1000000, // ms
		})
	})

	// Force GC endpoint
	r.POST("/debug/gc", func(c *gin.Context) {
		runtime.GC()
		debug.FreeOSMemory()
		c.JSON(200, gin.H{"status": "gc_completed"})
	})

	api := r.Group("/api/v1")
	{
		estimates := api.Group("/estimates")
		estimates.Use(middleware.MaxBodySize(maxBodyBytes))
		estimates.POST("/calculate", estimateHandler.Calculate)
		estimates.POST("/analyze", estimateHandler.Analyze)
		estimates.POST("/analyze/stream", estimateHandler.Stream)
		estimates.POST("/export", estimateHandler.Export)

		api.GET("/cep/:cep", cepHandler.Lookup)
		api.GET("/ws/stats", wsHandler.GetConnectionStats)
	}
	r.GET("/ws", wsHandler.HandleConnection)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Servidor iniciando")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Erro ao iniciar servidor")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Encerrando servidor")

	hub.Broadcast(websocket.Message{Type: websocket.TypeServerShutdown})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Erro no shutdown do servidor")
	}

	hub.Stop()
	cepClient.Close()

	log.Info().Msg("Servidor encerrado")
}
