package model

// AnalyzeRequest representa o payload de entrada para análise com IA
type AnalyzeRequest struct {
	PriceEstimate
	WebhookURL string `json:"webhook_url,omitempty" validate:"omitempty,url"`
}

// ExportRequest representa o payload para exportar uma estimativa em Excel
type ExportRequest struct {
	PriceEstimate
	Analysis *AiAnalysis `json:"aiAnalysis,omitempty"`
}

// CalculationResponse contém os totais numéricos e formatados
type CalculationResponse struct {
	Totals    Totals            `json:"totals"`
	Formatted map[string]string `json:"formatted"`
}

// AnalysisResult é o resultado final de uma análise
type AnalysisResult struct {
	AnalysisID string      `json:"analysis_id"`
	Totals     Totals      `json:"totals"`
	Analysis   *AiAnalysis `json:"aiAnalysis"`
}

// StreamChunk é enviado a cada fragmento recebido do modelo
type StreamChunk struct {
	AnalysisID string      `json:"analysis_id"`
	Delta      string      `json:"delta"`
	Text       string      `json:"text"`
	Preview    *AiAnalysis `json:"preview,omitempty"`
}

// Address representa um endereço retornado pela consulta de CEP
type Address struct {
	ZipCode      string `json:"zipCode"`
	Address      string `json:"address"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	DDD          string `json:"ddd,omitempty"`
}

// Response representa a resposta padrão da API
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// ErrorResponse representa uma resposta de erro
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// WebhookPayload representa o payload enviado para o webhook
type WebhookPayload struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	AnalysisID string          `json:"analysis_id,omitempty"`
	Result     *AnalysisResult `json:"result,omitempty"`
}
