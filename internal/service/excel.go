package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	estimateSheet = "Estimativa"
	analysisSheet = "Análise da IA"
)

// currencyNumFmt exibe o valor em reais; o separador segue a localidade do Excel
const currencyNumFmt = `"R$" #,##0.00`

var estimateHeaders = []string{"Tarefa", "Horas", "Complexidade", "Valor"}

// ExcelGenerator gera a planilha de uma estimativa
type ExcelGenerator struct{}

// NewExcelGenerator cria um novo gerador de Excel
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

// excelStyles agrupa os estilos usados nas duas abas
type excelStyles struct {
	header   int
	odd      int
	even     int
	currency int
	label    int
	wrap     int
}

// Generate gera o arquivo com as tarefas e os totais e, se houver análise,
// uma segunda aba com o resultado da IA
func (g *ExcelGenerator) Generate(estimate model.PriceEstimate, totals model.Totals, analysis *model.AiAnalysis) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, estimateSheet); err != nil {
		return nil, fmt.Errorf("renomear sheet: %w", err)
	}

	styles, err := g.newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("criar estilos: %w", err)
	}

	if err := g.writeHeaders(f, styles); err != nil {
		return nil, fmt.Errorf("escrever headers: %w", err)
	}

	next, err := g.writeTasks(f, styles, estimate)
	if err != nil {
		return nil, fmt.Errorf("escrever tarefas: %w", err)
	}

	if err := g.writeTotals(f, styles, estimate.Config, totals, next+1); err != nil {
		return nil, fmt.Errorf("escrever totais: %w", err)
	}

	if err := g.setColumnWidths(f, estimateSheet, []float64{50, 10, 16, 18}); err != nil {
		return nil, fmt.Errorf("ajustar colunas: %w", err)
	}

	if analysis != nil {
		if err := g.writeAnalysis(f, styles, analysis); err != nil {
			return nil, fmt.Errorf("escrever análise: %w", err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("escrever buffer: %w", err)
	}

	return buf, nil
}

func (g *ExcelGenerator) newStyles(f *excelize.File) (*excelStyles, error) {
	border := func(color string) []excelize.Border {
		return []excelize.Border{
			{Type: "left", Color: color, Style: 1},
			{Type: "top", Color: color, Style: 1},
			{Type: "bottom", Color: color, Style: 1},
			{Type: "right", Color: color, Style: 1},
		}
	}

	var s excelStyles
	var err error

	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: border("000000"),
	})
	if err != nil {
		return nil, err
	}

	s.odd, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"F2F2F2"},
			Pattern: 1,
		},
		Border: border("D9D9D9"),
	})
	if err != nil {
		return nil, err
	}

	s.even, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFFFFF"},
			Pattern: 1,
		},
		Border: border("D9D9D9"),
	})
	if err != nil {
		return nil, err
	}

	numFmt := currencyNumFmt
	s.currency, err = f.NewStyle(&excelize.Style{
		CustomNumFmt: &numFmt,
		Border:       border("D9D9D9"),
	})
	if err != nil {
		return nil, err
	}

	s.label, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, err
	}

	s.wrap, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			WrapText: true,
			Vertical: "top",
		},
	})
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (g *ExcelGenerator) writeHeaders(f *excelize.File, styles *excelStyles) error {
	for col, header := range estimateHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(estimateSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(estimateSheet, cell, cell, styles.header); err != nil {
			return err
		}
	}
	return nil
}

// writeTasks escreve uma linha por tarefa e retorna a próxima linha livre
func (g *ExcelGenerator) writeTasks(f *excelize.File, styles *excelStyles, estimate model.PriceEstimate) (int, error) {
	rate := model.ParseNumber(estimate.Config.HourlyRate)

	for i, task := range estimate.Tasks {
		row := i + 2 // linha 1 é header

		style := styles.even
		if i%2 == 1 {
			style = styles.odd
		}

		hours := model.ParseNumber(task.Hours)
		values := []interface{}{
			strings.TrimSpace(task.Description),
			hours,
			model.DifficultyLabel(task.Difficulty),
			hours * rate,
		}

		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(estimateSheet, cell, value); err != nil {
				return 0, err
			}
			if err := f.SetCellStyle(estimateSheet, cell, cell, style); err != nil {
				return 0, err
			}
		}

		valueCell, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(estimateSheet, valueCell, valueCell, styles.currency); err != nil {
			return 0, err
		}
	}

	return len(estimate.Tasks) + 2, nil
}

func (g *ExcelGenerator) writeTotals(f *excelize.File, styles *excelStyles, cfg model.CalculationConfig, totals model.Totals, row int) error {
	type line struct {
		label    string
		value    interface{}
		currency bool
	}

	lines := []line{
		{"Horas totais", totals.TotalHours, false},
		{"Taxa horária", model.ParseNumber(cfg.HourlyRate), true},
		{"Margem de segurança (%)", model.ParseNumber(cfg.SafetyMargin), false},
	}
	if cfg.ValueAdjustment != nil && strings.TrimSpace(*cfg.ValueAdjustment) != "" {
		lines = append(lines, line{"Ajuste de valor (%)", model.ParseNumber(*cfg.ValueAdjustment), false})
	}
	lines = append(lines,
		line{"Valor base", totals.BaseTotal, true},
		line{"Valor com margem", totals.WithSafetyMargin, true},
		line{"Valor final", totals.FinalTotal, true},
	)

	for i, l := range lines {
		r := row + i
		labelCell, _ := excelize.CoordinatesToCellName(1, r)
		valueCell, _ := excelize.CoordinatesToCellName(4, r)

		if err := f.SetCellValue(estimateSheet, labelCell, l.label); err != nil {
			return err
		}
		if err := f.SetCellStyle(estimateSheet, labelCell, labelCell, styles.label); err != nil {
			return err
		}
		if err := f.SetCellValue(estimateSheet, valueCell, l.value); err != nil {
			return err
		}
		if l.currency {
			if err := f.SetCellStyle(estimateSheet, valueCell, valueCell, styles.currency); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *ExcelGenerator) writeAnalysis(f *excelize.File, styles *excelStyles, analysis *model.AiAnalysis) error {
	if _, err := f.NewSheet(analysisSheet); err != nil {
		return err
	}

	confidence := ""
	if analysis.Confidence != nil {
		confidence = fmt.Sprintf("%d%%", *analysis.Confidence)
	}

	rows := []struct {
		label string
		value interface{}
	}{
		{"Valor sugerido", analysis.SuggestedTotal},
		{"Confiança", confidence},
		{"Explicação", analysis.Explanation},
		{"Análise de mercado", analysis.MarketAnalysis},
		{"Fatores", joinItems(analysis.Factors)},
		{"Recomendações", joinItems(analysis.Recommendations)},
	}

	for i, r := range rows {
		labelCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)

		if err := f.SetCellValue(analysisSheet, labelCell, r.label); err != nil {
			return err
		}
		if err := f.SetCellStyle(analysisSheet, labelCell, labelCell, styles.label); err != nil {
			return err
		}
		if err := f.SetCellValue(analysisSheet, valueCell, r.value); err != nil {
			return err
		}

		style := styles.wrap
		if i == 0 {
			style = styles.currency
		}
		if err := f.SetCellStyle(analysisSheet, valueCell, valueCell, style); err != nil {
			return err
		}
	}

	return g.setColumnWidths(f, analysisSheet, []float64{22, 90})
}

func (g *ExcelGenerator) setColumnWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, width := range widths {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, colName, colName, width); err != nil {
			return err
		}
	}
	return nil
}

func joinItems(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}
