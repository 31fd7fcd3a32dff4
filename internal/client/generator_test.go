package client

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/cleberrangel/freelance-pricing-api/internal/config"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"google.golang.org/genai"
)

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := NewGenerator(ctx, GeneratorConfig{Provider: config.ProviderGemini, APIKey: "  "})
		if !errors.Is(err, model.ErrMissingAPIKey) {
			t.Fatalf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewGenerator(ctx, GeneratorConfig{Provider: "openai", APIKey: "key"})
		if !errors.Is(err, config.ErrInvalidProvider) {
			t.Fatalf("expected ErrInvalidProvider, got %v", err)
		}
	})

	t.Run("anthropic", func(t *testing.T) {
		g, err := NewGenerator(ctx, GeneratorConfig{Provider: config.ProviderAnthropic, APIKey: "key"})
		if err != nil {
			t.Fatal(err)
		}
		if g.Name() != "anthropic/"+config.DefaultAnthropicModel {
			t.Errorf("Name() = %q", g.Name())
		}
	})

	t.Run("gemini is the default", func(t *testing.T) {
		g, err := NewGenerator(ctx, GeneratorConfig{APIKey: "key", Model: "gemini-2.0-flash"})
		if err != nil {
			t.Fatal(err)
		}
		if g.Name() != "gemini/gemini-2.0-flash" {
			t.Errorf("Name() = %q", g.Name())
		}
	})
}

type stubGenerator struct{ name string }

func (g *stubGenerator) Name() string { return g.name }

func (g *stubGenerator) Stream(context.Context, string, func(string)) (string, error) {
	return "", nil
}

func TestProviderCachesAfterSuccess(t *testing.T) {
	p := NewProvider(&config.Config{AIProvider: config.ProviderGemini, GeminiAPIKey: "key"})

	calls := 0
	p.factory = func(ctx context.Context, cfg GeneratorConfig) (Generator, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		if cfg.APIKey != "key" {
			t.Errorf("APIKey = %q", cfg.APIKey)
		}
		return &stubGenerator{name: "stub"}, nil
	}

	if _, err := p.Generator(context.Background()); err == nil {
		t.Fatal("expected first creation to fail")
	}
	for i := 0; i < 3; i++ {
		g, err := p.Generator(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if g.Name() != "stub" {
			t.Errorf("Name() = %q", g.Name())
		}
	}
	if calls != 2 {
		t.Errorf("factory calls = %d, want 2", calls)
	}
}

func TestProviderConfigured(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.Config
		want   bool
		source string
	}{
		{"gemini with key", config.Config{AIProvider: config.ProviderGemini, GeminiAPIKey: "g"}, true, "gemini"},
		{"gemini without key", config.Config{AIProvider: config.ProviderGemini, AnthropicAPIKey: "a"}, false, "gemini"},
		{"anthropic with key", config.Config{AIProvider: config.ProviderAnthropic, AnthropicAPIKey: "a"}, true, "anthropic"},
		{"empty provider", config.Config{GeminiAPIKey: "g"}, true, "gemini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(&tt.cfg)
			if p.Configured() != tt.want {
				t.Errorf("Configured() = %v, want %v", p.Configured(), tt.want)
			}
			if p.Name() != tt.source {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.source)
			}
		})
	}
}

func TestProviderMissingKey(t *testing.T) {
	p := NewProvider(&config.Config{AIProvider: config.ProviderAnthropic})

	_, err := p.Generator(context.Background())
	if !errors.Is(err, model.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want error
	}{
		{"deadline error", context.Background(), context.DeadlineExceeded, model.ErrTimeout},
		{"expired context", expired, errors.New("read tcp: closed"), model.ErrTimeout},
		{"canceled error", context.Background(), context.Canceled, model.ErrCanceled},
		{"canceled context", canceled, errors.New("stream closed"), model.ErrCanceled},
		{"other", context.Background(), errors.New("500 internal"), model.ErrProviderFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.ctx, tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func TestGeminiGeneratorStream(t *testing.T) {
	g := &GeminiGenerator{
		model: "gemini-test",
		stream: func(ctx context.Context, model, prompt string) iter.Seq2[*genai.GenerateContentResponse, error] {
			return func(yield func(*genai.GenerateContentResponse, error) bool) {
				responses := []*genai.GenerateContentResponse{
					textResponse(&genai.Part{Text: "VALOR_SUGERIDO: "}),
					textResponse(&genai.Part{Text: "pensando...", Thought: true}, &genai.Part{Text: "R$ 1.000,00"}),
					{},
					textResponse(&genai.Part{Text: "\nCONFIANÇA: 80%"}),
				}
				for _, r := range responses {
					if !yield(r, nil) {
						return
					}
				}
			}
		},
	}

	var chunks []string
	full, err := g.Stream(context.Background(), "prompt", func(delta string) {
		chunks = append(chunks, delta)
	})
	if err != nil {
		t.Fatal(err)
	}

	want := "VALOR_SUGERIDO: R$ 1.000,00\nCONFIANÇA: 80%"
	if full != want {
		t.Errorf("full = %q, want %q", full, want)
	}
	if len(chunks) != 3 || strings.Join(chunks, "") != want {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestGeminiGeneratorStreamError(t *testing.T) {
	g := &GeminiGenerator{
		model: "gemini-test",
		stream: func(ctx context.Context, model, prompt string) iter.Seq2[*genai.GenerateContentResponse, error] {
			return func(yield func(*genai.GenerateContentResponse, error) bool) {
				if !yield(textResponse(&genai.Part{Text: "parcial"}), nil) {
					return
				}
				yield(nil, errors.New("connection reset"))
			}
		},
	}

	full, err := g.Stream(context.Background(), "prompt", nil)
	if !errors.Is(err, model.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if full != "parcial" {
		t.Errorf("full = %q", full)
	}
}

func TestAnthropicGeneratorStream(t *testing.T) {
	var gotParams anthropic.MessageNewParams
	g := &AnthropicGenerator{
		model: "claude-test",
		stream: func(ctx context.Context, params anthropic.MessageNewParams) iter.Seq2[string, error] {
			gotParams = params
			return func(yield func(string, error) bool) {
				for _, d := range []string{"EXPLICAÇÃO:", "", " texto"} {
					if !yield(d, nil) {
						return
					}
				}
			}
		},
	}

	var chunks []string
	full, err := g.Stream(context.Background(), "prompt", func(delta string) {
		chunks = append(chunks, delta)
	})
	if err != nil {
		t.Fatal(err)
	}
	if full != "EXPLICAÇÃO: texto" {
		t.Errorf("full = %q", full)
	}
	if len(chunks) != 2 {
		t.Errorf("chunks = %q", chunks)
	}
	if string(gotParams.Model) != "claude-test" || gotParams.MaxTokens != DefaultMaxTokens {
		t.Errorf("unexpected params: model=%q max=%d", gotParams.Model, gotParams.MaxTokens)
	}
}

func TestAnthropicGeneratorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &AnthropicGenerator{
		model: "claude-test",
		stream: func(ctx context.Context, params anthropic.MessageNewParams) iter.Seq2[string, error] {
			return func(yield func(string, error) bool) {
				if !yield("início", nil) {
					return
				}
				cancel()
				yield("", ctx.Err())
			}
		},
	}

	_, err := g.Stream(ctx, "prompt", nil)
	if !errors.Is(err, model.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
}
