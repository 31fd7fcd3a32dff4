package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/middleware"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"github.com/cleberrangel/freelance-pricing-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// asyncTimeout limita análises entregues por webhook
const asyncTimeout = 5 * time.Minute

// EstimateService calcula e analisa estimativas
type EstimateService interface {
	Calculate(estimate model.PriceEstimate) (*model.CalculationResponse, error)
	Analyze(ctx context.Context, analysisID string, estimate model.PriceEstimate, onChunk func(model.StreamChunk)) (*model.AnalysisResult, error)
}

// Notifier entrega resultados assíncronos
type Notifier interface {
	SendSuccess(ctx context.Context, webhookURL string, result *model.AnalysisResult) error
	SendError(ctx context.Context, webhookURL, analysisID string, err error) error
}

// Exporter gera a planilha da estimativa
type Exporter interface {
	Generate(estimate model.PriceEstimate, totals model.Totals, analysis *model.AiAnalysis) (*bytes.Buffer, error)
}

// EstimateHandler manipula requisições de estimativa
type EstimateHandler struct {
	service  EstimateService
	notifier Notifier
	exporter Exporter
}

// NewEstimateHandler cria um novo handler de estimativas
func NewEstimateHandler(service EstimateService, notifier Notifier, exporter Exporter) *EstimateHandler {
	return &EstimateHandler{
		service:  service,
		notifier: notifier,
		exporter: exporter,
	}
}

// Calculate calcula os totais da estimativa
// @Summary      Calcula a estimativa
// @Tags         estimates
// @Accept       json
// @Produce      json
// @Param        request body model.PriceEstimate true "Tarefas e configuração"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/estimates/calculate [post]
func (h *EstimateHandler) Calculate(c *gin.Context) {
	var estimate model.PriceEstimate
	if err := c.ShouldBindJSON(&estimate); err != nil {
		badRequest(c, err)
		return
	}
	middleware.SanitizeEstimate(&estimate)

	result, err := h.service.Calculate(estimate)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    result,
	})
}

// Analyze executa a análise com IA. Com webhook_url responde 202 e entrega
// o resultado depois.
// @Summary      Analisa a estimativa com IA
// @Tags         estimates
// @Accept       json
// @Produce      json
// @Param        request body model.AnalyzeRequest true "Estimativa e webhook opcional"
// @Success      200 {object} model.Response
// @Success      202 {object} model.Response "Quando webhook_url é fornecido"
// @Failure      400 {object} model.ErrorResponse
// @Failure      429 {object} model.ErrorResponse
// @Failure      502 {object} model.ErrorResponse
// @Failure      503 {object} model.ErrorResponse
// @Failure      504 {object} model.ErrorResponse
// @Router       /api/v1/estimates/analyze [post]
func (h *EstimateHandler) Analyze(c *gin.Context) {
	req, ok := h.bindAnalyzeRequest(c)
	if !ok {
		return
	}

	analysisID := uuid.New().String()

	if req.WebhookURL != "" {
		ctx := context.WithoutCancel(c.Request.Context())
		go h.processAsync(ctx, analysisID, req)

		c.JSON(http.StatusAccepted, model.Response{
			Success: true,
			Data:    gin.H{"analysis_id": analysisID, "status": "processing"},
		})
		return
	}

	result, err := h.service.Analyze(c.Request.Context(), analysisID, req.PriceEstimate, nil)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    result,
	})
}

// processAsync executa a análise e envia o resultado para o webhook
func (h *EstimateHandler) processAsync(ctx context.Context, analysisID string, req model.AnalyzeRequest) {
	ctx, cancel := context.WithTimeout(ctx, asyncTimeout)
	defer cancel()

	log := logger.Get(ctx).With().Str("analysis_id", analysisID).Logger()

	result, err := h.service.Analyze(ctx, analysisID, req.PriceEstimate, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Análise assíncrona falhou")
		if webhookErr := h.notifier.SendError(ctx, req.WebhookURL, analysisID, err); webhookErr != nil {
			log.Error().Err(webhookErr).Msg("Erro ao enviar webhook de erro")
		}
		return
	}

	if err := h.notifier.SendSuccess(ctx, req.WebhookURL, result); err != nil {
		log.Error().Err(err).Msg("Erro ao enviar webhook de sucesso")
	}
}

type sseEvent struct {
	name string
	data interface{}
}

// Stream executa a análise enviando os fragmentos como Server-Sent Events:
// started, chunk*, e por fim result ou error.
// @Summary      Analisa a estimativa com streaming
// @Tags         estimates
// @Accept       json
// @Produce      text/event-stream
// @Param        request body model.PriceEstimate true "Estimativa"
// @Router       /api/v1/estimates/analyze/stream [post]
func (h *EstimateHandler) Stream(c *gin.Context) {
	req, ok := h.bindAnalyzeRequest(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	analysisID := uuid.New().String()
	events := make(chan sseEvent, 16)

	emit := func(ev sseEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)

		emit(sseEvent{name: "started", data: gin.H{"analysis_id": analysisID}})

		result, err := h.service.Analyze(ctx, analysisID, req.PriceEstimate, func(chunk model.StreamChunk) {
			emit(sseEvent{name: "chunk", data: chunk})
		})
		if err != nil {
			_, body := errorResponse(err)
			emit(sseEvent{name: "error", data: body})
			return
		}
		emit(sseEvent{name: "result", data: result})
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Status(http.StatusOK)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.name, ev.data)
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// Export gera a planilha Excel da estimativa
// @Summary      Exporta a estimativa em Excel
// @Tags         estimates
// @Accept       json
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        request body model.ExportRequest true "Estimativa e análise opcional"
// @Success      200 {file} binary
// @Failure      400 {object} model.ErrorResponse
// @Failure      422 {object} model.ErrorResponse
// @Router       /api/v1/estimates/export [post]
func (h *EstimateHandler) Export(c *gin.Context) {
	var req model.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	middleware.SanitizeEstimate(&req.PriceEstimate)

	if err := req.PriceEstimate.Validate(); err != nil {
		handleError(c, err)
		return
	}
	if req.Analysis != nil {
		if err := req.Analysis.Validate(); err != nil {
			handleError(c, err)
			return
		}
	}

	totals := service.CalculateTotal(req.Tasks, req.Config)

	buf, err := h.exporter.Generate(req.PriceEstimate, totals, req.Analysis)
	metrics.Get().IncrementExport(err == nil)
	if err != nil {
		handleError(c, fmt.Errorf("gerar planilha: %w", err))
		return
	}

	name := middleware.SanitizeFilename(c.DefaultQuery("filename", "estimativa"))
	filename := fmt.Sprintf("%s_%s.xlsx", name, time.Now().Format("2006-01-02_15-04-05"))

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Length", fmt.Sprintf("%d", buf.Len()))
	c.Header("X-Total-Tasks", fmt.Sprintf("%d", len(req.Tasks)))

	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *EstimateHandler) bindAnalyzeRequest(c *gin.Context) (model.AnalyzeRequest, bool) {
	var req model.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	middleware.SanitizeEstimate(&req.PriceEstimate)

	if err := req.Validate(); err != nil {
		handleError(c, err)
		return req, false
	}
	return req, true
}
