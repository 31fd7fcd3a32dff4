package service

import (
	"context"
	"errors"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/client"
	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"golang.org/x/time/rate"
)

// GeneratorSource entrega o gerador do provedor configurado
type GeneratorSource interface {
	Generator(ctx context.Context) (client.Generator, error)
	Name() string
}

// AnalysisService orquestra cálculo, prompt, chamada ao modelo e interpretação
type AnalysisService struct {
	source      GeneratorSource
	interpreter *Interpreter
	limiter     *rate.Limiter
	timeout     time.Duration
}

// NewAnalysisService cria o serviço. requestsPerMinute limita as chamadas
// ao modelo somando todas as conexões.
func NewAnalysisService(source GeneratorSource, interpreter *Interpreter, requestsPerMinute int, timeout time.Duration) *AnalysisService {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	return &AnalysisService{
		source:      source,
		interpreter: interpreter,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		timeout:     timeout,
	}
}

// Calculate valida a estimativa e devolve os totais formatados
func (s *AnalysisService) Calculate(estimate model.PriceEstimate) (*model.CalculationResponse, error) {
	if err := estimate.Validate(); err != nil {
		return nil, err
	}

	totals := CalculateTotal(estimate.Tasks, estimate.Config)
	metrics.Get().IncrementCalculations()

	return &model.CalculationResponse{
		Totals:    totals,
		Formatted: FormattedTotals(totals),
	}, nil
}

// Analyze executa uma análise completa. Cada fragmento aceito é repassado a
// onChunk (que pode ser nil) antes do resultado final. Cancelar ctx aborta a
// chamada ao modelo e retorna model.ErrCanceled.
func (s *AnalysisService) Analyze(ctx context.Context, analysisID string, estimate model.PriceEstimate, onChunk func(model.StreamChunk)) (*model.AnalysisResult, error) {
	if err := estimate.Validate(); err != nil {
		return nil, err
	}

	ctx = logger.WithAnalysisID(ctx, analysisID)
	log := logger.Get(ctx)

	totals := CalculateTotal(estimate.Tasks, estimate.Config)

	generator, err := s.source.Generator(ctx)
	if err != nil {
		log.Warn().Err(err).Str("provider", s.source.Name()).Msg("Provedor de IA indisponível")
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, model.ErrCanceled
		}
		// Wait falha sem esperar quando a vez não chegaria antes do timeout
		return nil, model.ErrRateLimited
	}

	m := metrics.Get()
	m.IncrementAnalysisStarted()
	start := time.Now()

	log.Info().
		Str("provider", generator.Name()).
		Int("tasks", len(estimate.Tasks)).
		Float64("base_total", totals.BaseTotal).
		Msg("Análise iniciada")

	acc := NewStreamAccumulator(analysisID, s.interpreter, totals.BaseTotal)
	forward := func(delta string) {
		chunk, ok := acc.Append(analysisID, delta)
		if !ok {
			return
		}
		m.IncrementStreamChunks()
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	full, err := generator.Stream(ctx, BuildPrompt(estimate, totals), forward)
	if err != nil {
		acc.Discard()
		if errors.Is(err, model.ErrCanceled) {
			m.IncrementAnalysisCanceled()
			log.Info().Int("chunks", acc.Chunks()).Msg("Análise cancelada")
		} else {
			m.IncrementAnalysisFailed()
			log.Error().Err(err).Int("chunks", acc.Chunks()).Dur("duration", time.Since(start)).Msg("Falha na análise")
		}
		return nil, err
	}

	// geradores sem streaming entregam tudo no retorno
	if acc.Chunks() == 0 && full != "" {
		forward(full)
	}

	analysis, err := acc.Complete(analysisID)
	if err != nil {
		m.IncrementAnalysisFailed()
		log.Error().Err(err).Int("chunks", acc.Chunks()).Msg("Resposta do modelo inválida")
		return nil, err
	}

	elapsed := time.Since(start)
	m.IncrementAnalysisCompleted(elapsed.Milliseconds())

	log.Info().
		Str("provider", generator.Name()).
		Int("chunks", acc.Chunks()).
		Float64("suggested_total", analysis.SuggestedTotal).
		Dur("duration", elapsed).
		Msg("Análise concluída")

	return &model.AnalysisResult{
		AnalysisID: analysisID,
		Totals:     totals,
		Analysis:   analysis,
	}, nil
}
