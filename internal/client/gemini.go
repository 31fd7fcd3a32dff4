package client

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/cleberrangel/freelance-pricing-api/internal/config"
	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"google.golang.org/genai"
)

type geminiStreamFunc func(ctx context.Context, model, prompt string) iter.Seq2[*genai.GenerateContentResponse, error]

// GeminiGenerator gera a análise com a API Gemini
type GeminiGenerator struct {
	model  string
	stream geminiStreamFunc
}

// NewGeminiGenerator cria o cliente genai para a Gemini API
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("criar cliente gemini: %w", err)
	}

	if model == "" {
		model = config.DefaultGeminiModel
	}

	return &GeminiGenerator{
		model: model,
		stream: func(ctx context.Context, model, prompt string) iter.Seq2[*genai.GenerateContentResponse, error] {
			return c.Models.GenerateContentStream(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
				MaxOutputTokens: DefaultMaxTokens,
			})
		},
	}, nil
}

// Name retorna o identificador do modelo
func (g *GeminiGenerator) Name() string {
	return config.ProviderGemini + "/" + g.model
}

// Stream implementa Generator
func (g *GeminiGenerator) Stream(ctx context.Context, prompt string, onChunk func(delta string)) (string, error) {
	var full strings.Builder

	for resp, err := range g.stream(ctx, g.model, prompt) {
		if err != nil {
			logger.Get(ctx).Warn().
				Err(err).
				Str("model", g.model).
				Int("received", full.Len()).
				Msg("Stream do Gemini interrompido")
			return full.String(), classifyError(ctx, err)
		}

		delta := responseText(resp)
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onChunk != nil {
			onChunk(delta)
		}
	}

	if err := ctx.Err(); err != nil {
		return full.String(), classifyError(ctx, err)
	}

	return full.String(), nil
}

// responseText concatena as partes de texto do primeiro candidato
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
