package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cleberrangel/freelance-pricing-api/internal/model"
)

const promptHeader = `Você é um especialista em precificação de projetos freelance com vasta experiência no mercado.
Analise cuidadosamente os dados fornecidos e gere uma resposta detalhada e profissional.

IMPORTANTE: Sua resposta DEVE conter EXATAMENTE os marcadores abaixo, em maiúsculas, nesta ordem,
cada um no início de uma linha:

VALOR_SUGERIDO: R$ [valor no formato 1.234,56]
CONFIANÇA: [0 a 100]%
EXPLICAÇÃO:
[Explicação clara e objetiva do valor sugerido, considerando o valor base calculado e justificando eventuais ajustes. Pode usar Markdown.]
ANÁLISE_DE_MERCADO:
[Análise do cenário atual do mercado, posicionamento do projeto e justificativa do valor em relação à concorrência.]
FATORES:
- [fator considerado, um por linha, iniciando com "-"]
RECOMENDAÇÕES:
- [recomendação prática para o projeto e a negociação, uma por linha, iniciando com "-"]
`

// BuildPrompt monta o prompt enviado ao modelo com os números calculados
// localmente e a lista de tarefas.
func BuildPrompt(estimate model.PriceEstimate, totals model.Totals) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	b.WriteString("\nDADOS DO PROJETO:\n")
	b.WriteString(strings.TrimSpace(estimate.Context.ProjectContext))
	b.WriteString("\n")

	b.WriteString("\nINFORMAÇÕES TÉCNICAS:\n")
	fmt.Fprintf(&b, "- Horas totais estimadas: %sh\n", formatHours(totals.TotalHours))
	fmt.Fprintf(&b, "- Taxa horária: %s/h\n", FormatCurrency(model.ParseNumber(estimate.Config.HourlyRate)))
	fmt.Fprintf(&b, "- Margem de segurança: %s%%\n", formatPercent(estimate.Config.SafetyMargin))
	if adj := estimate.Config.ValueAdjustment; adj != nil && strings.TrimSpace(*adj) != "" {
		fmt.Fprintf(&b, "- Ajuste de valor: %s%%\n", formatPercent(*adj))
	}
	fmt.Fprintf(&b, "- Valor base: %s\n", FormatCurrency(totals.BaseTotal))
	fmt.Fprintf(&b, "- Valor com margem: %s\n", FormatCurrency(totals.WithSafetyMargin))
	fmt.Fprintf(&b, "- Valor final calculado: %s\n", FormatCurrency(totals.FinalTotal))

	b.WriteString("\nESCOPO E TAREFAS:\n")
	for _, task := range estimate.Tasks {
		fmt.Fprintf(&b, "- %s (%sh)\n", strings.TrimSpace(task.Description), formatHours(model.ParseNumber(task.Hours)))
		if label := model.DifficultyLabel(task.Difficulty); label != "" {
			fmt.Fprintf(&b, "  Complexidade: %s\n", label)
		}
	}

	return b.String()
}

// formatHours usa vírgula decimal: 12,5
func formatHours(h float64) string {
	return strings.Replace(strconv.FormatFloat(h, 'f', -1, 64), ".", ",", 1)
}

func formatPercent(s string) string {
	return formatHours(model.ParseNumber(s))
}
