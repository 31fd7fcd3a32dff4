package client

import (
	"context"
	"iter"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cleberrangel/freelance-pricing-api/internal/config"
	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
)

type anthropicStreamFunc func(ctx context.Context, params anthropic.MessageNewParams) iter.Seq2[string, error]

// AnthropicGenerator gera a análise com a Messages API da Anthropic
type AnthropicGenerator struct {
	model  string
	stream anthropicStreamFunc
}

// NewAnthropicGenerator cria o gerador com a chave informada
func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	messages := &c.Messages

	if model == "" {
		model = config.DefaultAnthropicModel
	}

	return &AnthropicGenerator{
		model: model,
		stream: func(ctx context.Context, params anthropic.MessageNewParams) iter.Seq2[string, error] {
			return func(yield func(string, error) bool) {
				stream := messages.NewStreaming(ctx, params)
				defer stream.Close()

				for stream.Next() {
					event := stream.Current()
					delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
					if !ok {
						continue
					}
					text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
					if !ok {
						continue
					}
					if !yield(text.Text, nil) {
						return
					}
				}
				if err := stream.Err(); err != nil {
					yield("", err)
				}
			}
		},
	}
}

// Name retorna o identificador do modelo
func (g *AnthropicGenerator) Name() string {
	return config.ProviderAnthropic + "/" + g.model
}

// Stream implementa Generator
func (g *AnthropicGenerator) Stream(ctx context.Context, prompt string, onChunk func(delta string)) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: DefaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var full strings.Builder
	for delta, err := range g.stream(ctx, params) {
		if err != nil {
			logger.Get(ctx).Warn().
				Err(err).
				Str("model", g.model).
				Int("received", full.Len()).
				Msg("Stream da Anthropic interrompido")
			return full.String(), classifyError(ctx, err)
		}
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
