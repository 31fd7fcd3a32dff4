package model

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func validEstimate() PriceEstimate {
	return PriceEstimate{
		Tasks: []Task{
			{Description: "Tela de login", Hours: "5", Difficulty: 2},
			{Description: "API de pagamentos", Hours: "3.5", Difficulty: 4},
		},
		Config: CalculationConfig{
			HourlyRate:   "100",
			SafetyMargin: "20",
		},
		Context: ProjectContext{
			ProjectContext: "Aplicativo web para agendamento de consultas com pagamento online.",
		},
	}
}

func TestPriceEstimateValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *PriceEstimate)
		wantErr string
	}{
		{"válida", func(p *PriceEstimate) {}, ""},
		{"ajuste negativo permitido", func(p *PriceEstimate) { p.Config.ValueAdjustment = strPtr("-30") }, ""},
		{"ajuste vazio ignorado", func(p *PriceEstimate) { p.Config.ValueAdjustment = strPtr("") }, ""},
		{"sem tarefas", func(p *PriceEstimate) { p.Tasks = nil }, "Adicione pelo menos uma tarefa"},
		{"descrição curta", func(p *PriceEstimate) { p.Tasks[0].Description = "ab" }, "no mínimo 3 caracteres"},
		{"descrição longa", func(p *PriceEstimate) { p.Tasks[0].Description = strings.Repeat("a", 201) }, "Descrição muito longa"},
		{"horas zero", func(p *PriceEstimate) { p.Tasks[1].Hours = "0" }, "Horas devem ser um número positivo"},
		{"horas texto", func(p *PriceEstimate) { p.Tasks[1].Hours = "dez" }, "Horas devem ser um número positivo"},
		{"dificuldade fora da escala", func(p *PriceEstimate) { p.Tasks[0].Difficulty = 6 }, "Dificuldade deve estar entre 0 e 5"},
		{"taxa vazia", func(p *PriceEstimate) { p.Config.HourlyRate = "" }, "Taxa horária deve ser um número positivo"},
		{"margem vazia", func(p *PriceEstimate) { p.Config.SafetyMargin = "" }, "Margem de segurança é obrigatória"},
		{"margem acima de 100", func(p *PriceEstimate) { p.Config.SafetyMargin = "101" }, "entre 0 e 100%"},
		{"ajuste abaixo de -100", func(p *PriceEstimate) { p.Config.ValueAdjustment = strPtr("-101") }, "maior ou igual a -100%"},
		{"contexto curto", func(p *PriceEstimate) { p.Context.ProjectContext = "curto" }, "Forneça mais detalhes"},
		{"contexto longo", func(p *PriceEstimate) { p.Context.ProjectContext = strings.Repeat("x", 1001) }, "Contexto muito longo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validEstimate()
			tt.mutate(&p)
			err := p.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if !strings.Contains(ve.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want to contain %q", ve.Error(), tt.wantErr)
			}
		})
	}
}

func TestAnalyzeRequestValidateWebhook(t *testing.T) {
	req := AnalyzeRequest{PriceEstimate: validEstimate(), WebhookURL: "não é url"}
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "webhook_url") {
		t.Fatalf("Validate() error = %v, want webhook_url error", err)
	}

	req.WebhookURL = "https://example.com/hook"
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestAiAnalysisValidate(t *testing.T) {
	conf := func(v int) *int { return &v }

	tests := []struct {
		name     string
		analysis AiAnalysis
		wantErr  bool
	}{
		{"zero", AiAnalysis{SuggestedTotal: 0}, false},
		{"positivo com confiança", AiAnalysis{SuggestedTotal: 1234.56, Confidence: conf(85)}, false},
		{"negativo", AiAnalysis{SuggestedTotal: -1}, true},
		{"NaN", AiAnalysis{SuggestedTotal: math.NaN()}, true},
		{"infinito", AiAnalysis{SuggestedTotal: math.Inf(1)}, true},
		{"confiança acima de 100", AiAnalysis{SuggestedTotal: 10, Confidence: conf(101)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.analysis.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAnalysis) {
				t.Errorf("error %v should wrap ErrInvalidAnalysis", err)
			}
		})
	}
}

func TestDifficultyLabel(t *testing.T) {
	want := []string{"Muito fácil", "Fácil", "Médio", "Intermediário", "Difícil", "Muito difícil"}
	for i, label := range want {
		if got := DifficultyLabel(i); got != label {
			t.Errorf("DifficultyLabel(%d) = %q, want %q", i, got, label)
		}
	}
	if DifficultyLabel(-1) != "" || DifficultyLabel(6) != "" {
		t.Error("rótulo fora da escala deveria ser vazio")
	}
	if DifficultyLabel(DefaultDifficulty) != "Médio" {
		t.Error("dificuldade padrão deveria ser Médio")
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"5", 5},
		{" 3.5 ", 3.5},
		{"", 0},
		{"abc", 0},
		{"1e3", 1000},
		{"NaN", 0},
		{"Inf", 0},
		{"10,5", 0},
		{"-20", -20},
	}
	for _, tt := range tests {
		if got := ParseNumber(tt.in); got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
