package service

import (
	"math"

	"github.com/cleberrangel/freelance-pricing-api/internal/model"
)

// TotalHours soma as horas de todas as tarefas; horas inválidas valem 0
func TotalHours(tasks []model.Task) float64 {
	total := 0.0
	for _, task := range tasks {
		total += model.ParseNumber(task.Hours)
	}
	return total
}

// CalculateTotal calcula os valores base, com margem de segurança e final.
// É pura e barata: pode ser chamada a cada alteração do formulário.
func CalculateTotal(tasks []model.Task, cfg model.CalculationConfig) model.Totals {
	hours := TotalHours(tasks)
	baseTotal := hours * model.ParseNumber(cfg.HourlyRate)
	withSafetyMargin := baseTotal * (1 + model.ParseNumber(cfg.SafetyMargin)/100)

	adjustment := 0.0
	if cfg.ValueAdjustment != nil {
		adjustment = model.ParseNumber(*cfg.ValueAdjustment)
	}
	finalTotal := withSafetyMargin * (1 + adjustment/100)

	return model.Totals{
		TotalHours:       finite(hours),
		BaseTotal:        finite(baseTotal),
		WithSafetyMargin: finite(withSafetyMargin),
		FinalTotal:       finite(finalTotal),
	}
}

// finite troca NaN e ±Inf (ex.: "1e308" * "1e308") por 0
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormattedTotals formata os totais em reais para exibição
func FormattedTotals(t model.Totals) map[string]string {
	return map[string]string{
		"base_total":         FormatCurrency(t.BaseTotal),
		"with_safety_margin": FormatCurrency(t.WithSafetyMargin),
		"final_total":        FormatCurrency(t.FinalTotal),
	}
}
