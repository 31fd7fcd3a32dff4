package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cleberrangel/freelance-pricing-api/internal/config"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
)

// DefaultMaxTokens limita o tamanho da resposta do modelo
const DefaultMaxTokens = 4096

// Generator envia um prompt ao modelo e repassa cada fragmento recebido a onChunk,
// na ordem de chegada. Retorna o texto completo ao final.
type Generator interface {
	Stream(ctx context.Context, prompt string, onChunk func(delta string)) (string, error)
	Name() string
}

// GeneratorConfig contém o necessário para criar um Generator
type GeneratorConfig struct {
	Provider string
	Model    string
	APIKey   string
}

// NewGenerator cria o gerador do provedor configurado.
// Sem chave de API retorna model.ErrMissingAPIKey.
func NewGenerator(ctx context.Context, cfg GeneratorConfig) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, model.ErrMissingAPIKey
	}

	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	case config.ProviderAnthropic:
		return NewAnthropicGenerator(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}

// Provider cria o Generator sob demanda e o reaproveita depois do primeiro sucesso.
// A chave ausente vira erro de cada análise, não da inicialização do servidor.
type Provider struct {
	mu        sync.Mutex
	cfg       GeneratorConfig
	generator Generator
	factory   func(context.Context, GeneratorConfig) (Generator, error)
}

// NewProvider cria um provider a partir da configuração da aplicação
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		cfg: GeneratorConfig{
			Provider: cfg.AIProvider,
			Model:    cfg.AIModel,
			APIKey:   cfg.APIKey(),
		},
		factory: NewGenerator,
	}
}

// Generator retorna o gerador, criando-o se necessário
func (p *Provider) Generator(ctx context.Context) (Generator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generator != nil {
		return p.generator, nil
	}

	g, err := p.factory(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	p.generator = g
	return g, nil
}

// Configured informa se há chave de API para o provedor
func (p *Provider) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

// Name retorna o nome do provedor configurado
func (p *Provider) Name() string {
	if p.cfg.Provider == "" {
		return config.ProviderGemini
	}
	return p.cfg.Provider
}

// classifyError converte erros de transporte nos erros de domínio
func classifyError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.ErrTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return model.ErrCanceled
	default:
		return fmt.Errorf("%w: %v", model.ErrProviderFailure, err)
	}
}
