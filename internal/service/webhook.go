package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
)

// WebhookTimeout limita cada entrega
const WebhookTimeout = 30 * time.Second

// WebhookService envia resultados de análise para webhooks
type WebhookService struct {
	httpClient *http.Client
}

// NewWebhookService cria um novo serviço de webhook
func NewWebhookService() *WebhookService {
	return &WebhookService{
		httpClient: &http.Client{Timeout: WebhookTimeout},
	}
}

// SendSuccess envia o resultado da análise
func (w *WebhookService) SendSuccess(ctx context.Context, webhookURL string, result *model.AnalysisResult) error {
	return w.Send(ctx, webhookURL, model.WebhookPayload{
		Success:    true,
		AnalysisID: result.AnalysisID,
		Result:     result,
	})
}

// SendError envia o erro da análise
func (w *WebhookService) SendError(ctx context.Context, webhookURL, analysisID string, err error) error {
	return w.Send(ctx, webhookURL, model.WebhookPayload{
		Success:    false,
		Error:      err.Error(),
		AnalysisID: analysisID,
	})
}

// Send faz o POST do payload em JSON
func (w *WebhookService) Send(ctx context.Context, webhookURL string, payload model.WebhookPayload) error {
	err := w.send(ctx, webhookURL, payload)
	metrics.Get().IncrementWebhook(err == nil)
	return err
}

func (w *WebhookService) send(ctx context.Context, webhookURL string, payload model.WebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("criar request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("enviar webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook retornou status %d: %s", resp.StatusCode, string(respBody))
	}

	logger.Get(ctx).Info().
		Str("url", webhookURL).
		Str("analysis_id", payload.AnalysisID).
		Bool("success", payload.Success).
		Int("status", resp.StatusCode).
		Msg("Webhook enviado com sucesso")

	return nil
}
