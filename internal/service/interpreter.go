package service

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"golang.org/x/text/unicode/norm"
)

// Marcadores de seção que o prompt pede ao modelo
const (
	MarkerSuggestedValue  = "VALOR_SUGERIDO:"
	MarkerConfidence      = "CONFIANÇA:"
	MarkerExplanation     = "EXPLICAÇÃO:"
	MarkerMarketAnalysis  = "ANÁLISE_DE_MERCADO:"
	MarkerFactors         = "FATORES:"
	MarkerRecommendations = "RECOMENDAÇÕES:"
)

// SectionMarkers na ordem em que o modelo deve emiti-los
var SectionMarkers = []string{
	MarkerSuggestedValue,
	MarkerConfidence,
	MarkerExplanation,
	MarkerMarketAnalysis,
	MarkerFactors,
	MarkerRecommendations,
}

// o sinal só conta colado ao símbolo ou ao número: "- R$ 5.000" é item de lista
var (
	suggestedTotalPattern  = regexp.MustCompile(`(?i)valor[ _]sugerido[^:\n]*:\s*[^\n]*?(-?)R\$\s*(-?)(\d[\d.,]*)`)
	currencyNumeralPattern = regexp.MustCompile(`(-?)R\$\s*(-?)(\d[\d.,]*)`)
	bareNumeralPattern     = regexp.MustCompile(`(-?)(\d[\d.,]*)`)
	confidencePattern      = regexp.MustCompile(`(?i)confian[çc]a[^:\n]*:[\s*_]*(\d{1,3})(?:[.,]\d+)?(?:\D|$)`)
)

// ExtractSection retorna o texto entre startMarker e endMarker, sem espaços nas pontas.
// Sem startMarker no texto retorna "". Com endMarker vazio ou ausente após o início,
// a seção vai até o fim do texto.
func ExtractSection(text, startMarker, endMarker string) string {
	startIndex := strings.Index(text, startMarker)
	if startIndex == -1 {
		return ""
	}

	start := startIndex + len(startMarker)
	end := len(text)
	if endMarker != "" {
		if i := strings.Index(text[start:], endMarker); i != -1 {
			end = start + i
		}
	}

	return strings.TrimSpace(text[start:end])
}

// ExtractSuggestedTotal lê o numeral da seção VALOR_SUGERIDO: (com ou sem "R$");
// sem a seção, procura "Valor sugerido: ... R$ <numeral>" no texto todo.
// O sinal negativo é preservado. Sem valor retorna (0, false).
func ExtractSuggestedTotal(text string) (float64, bool) {
	if section, found := newSectionIndex(text).section(MarkerSuggestedValue); found {
		if m := currencyNumeralPattern.FindStringSubmatch(section); m != nil {
			return signedNumeral(m[1]+m[2], m[3])
		}
		if m := bareNumeralPattern.FindStringSubmatch(section); m != nil {
			return signedNumeral(m[1], m[2])
		}
	}

	if m := suggestedTotalPattern.FindStringSubmatch(text); m != nil {
		return signedNumeral(m[1]+m[2], m[3])
	}

	return 0, false
}

func signedNumeral(sign, numeral string) (float64, bool) {
	v, ok := NormalizeNumeral(numeral)
	if !ok {
		return 0, false
	}
	if sign != "" {
		v = -v
	}
	return v, true
}

// ExtractConfidence lê "Confiança ...: 85%". Valores fora de 0–100 são ignorados.
func ExtractConfidence(text string) (int, bool) {
	m := confidencePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// ExtractListItems mantém as linhas iniciadas por "-" (ou "* " e "• ")
// e remove o marcador e os espaços.
func ExtractListItems(block string) []string {
	var items []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		var item string
		switch {
		case strings.HasPrefix(line, "-"):
			item = strings.TrimPrefix(line, "-")
		case strings.HasPrefix(line, "* "):
			item = strings.TrimPrefix(line, "* ")
		case strings.HasPrefix(line, "•"):
			item = strings.TrimPrefix(line, "•")
		default:
			continue
		}
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Interpreter converte o texto livre do modelo em uma AiAnalysis
type Interpreter struct {
	renderer MarkdownRenderer
}

// NewInterpreter cria um interpretador. renderer pode ser nil: nesse caso
// a explicação não é convertida para HTML.
func NewInterpreter(renderer MarkdownRenderer) *Interpreter {
	return &Interpreter{renderer: renderer}
}

// Parse extrai a análise de forma tolerante e nunca falha. Serve para a prévia
// durante o streaming: seções ainda não recebidas ficam vazias.
// Sem valor sugerido no texto usa fallback (o total base calculado).
func (i *Interpreter) Parse(text string, fallback float64) model.AiAnalysis {
	idx := newSectionIndex(text)

	analysis := model.AiAnalysis{
		RawResponse: text,
	}

	if total, ok := ExtractSuggestedTotal(text); ok {
		analysis.SuggestedTotal = total
	} else if !math.IsNaN(fallback) && !math.IsInf(fallback, 0) {
		analysis.SuggestedTotal = fallback
	}

	if confidence, ok := ExtractConfidence(text); ok {
		analysis.Confidence = &confidence
	}

	if idx.empty() {
		// modelo ignorou o formato: o texto inteiro vira a explicação
		analysis.Explanation = strings.TrimSpace(text)
		return analysis
	}

	analysis.Explanation, _ = idx.section(MarkerExplanation)
	analysis.MarketAnalysis, _ = idx.section(MarkerMarketAnalysis)

	if factors, ok := idx.section(MarkerFactors); ok {
		analysis.Factors = ExtractListItems(factors)
	}
	if recommendations, ok := idx.section(MarkerRecommendations); ok {
		analysis.Recommendations = ExtractListItems(recommendations)
	}

	return analysis
}

// Finalize produz o resultado definitivo a partir do texto completo:
// extrai, valida as invariantes e renderiza a explicação.
func (i *Interpreter) Finalize(text string, fallback float64) (*model.AiAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.ErrEmptyResponse
	}

	analysis := i.Parse(text, fallback)
	if err := analysis.Validate(); err != nil {
		return nil, err
	}

	if i.renderer != nil && analysis.Explanation != "" {
		html, err := i.renderer.Render(analysis.Explanation)
		if err != nil {
			return nil, fmt.Errorf("renderizar explicação: %w", err)
		}
		analysis.ExplanationHTML = html
	}

	return &analysis, nil
}

// markerLocation é a posição de um marcador no texto
type markerLocation struct {
	marker string
	start  int // início do marcador
	end    int // início do conteúdo da seção
}

// sectionIndex localiza todos os marcadores conhecidos; cada seção termina
// no marcador seguinte, seja ele qual for, o que tolera seções fora de ordem.
type sectionIndex struct {
	text      string
	locations []markerLocation
}

func newSectionIndex(text string) *sectionIndex {
	idx := &sectionIndex{text: text}
	for _, marker := range SectionMarkers {
		if start, end, ok := findMarker(text, marker); ok {
			idx.locations = append(idx.locations, markerLocation{marker: marker, start: start, end: end})
		}
	}
	sort.Slice(idx.locations, func(a, b int) bool {
		return idx.locations[a].start < idx.locations[b].start
	})
	return idx
}

func (s *sectionIndex) empty() bool {
	return len(s.locations) == 0
}

func (s *sectionIndex) section(marker string) (string, bool) {
	for n, loc := range s.locations {
		if loc.marker != marker {
			continue
		}
		end := len(s.text)
		for _, next := range s.locations[n+1:] {
			if next.start >= loc.end {
				end = next.start
				break
			}
		}
		return strings.TrimSpace(s.text[loc.end:end]), true
	}
	return "", false
}

// findMarker procura o marcador exato; sem ele, aceita a forma tolerante no
// início de linha (maiúsculas/minúsculas, acentos, "_" ou espaço, negrito e
// títulos markdown).
func findMarker(text, marker string) (start, end int, ok bool) {
	if i := strings.Index(text, marker); i != -1 {
		start, end = i, i+len(marker)
		// decoração markdown em volta do marcador não pertence às seções vizinhas
		for start > 0 && strings.IndexByte(markerDecoration, text[start-1]) != -1 {
			start--
		}
		for end < len(text) && (text[end] == '*' || text[end] == '_') {
			end++
		}
		return start, end, true
	}

	loc := markerPattern(marker).FindStringIndex(text)
	if loc == nil {
		return -1, -1, false
	}
	return loc[0], loc[1], true
}

const markerDecoration = " \t>#*_"

var markerPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, marker := range SectionMarkers {
		markerPatterns[marker] = compileMarkerPattern(marker)
	}
}

func markerPattern(marker string) *regexp.Regexp {
	if re, ok := markerPatterns[marker]; ok {
		return re
	}
	return compileMarkerPattern(marker)
}

// compileMarkerPattern transforma "ANÁLISE_DE_MERCADO:" em uma expressão que
// aceita "## Análise de mercado:", "**ANALISE_DE_MERCADO:**" etc.
func compileMarkerPattern(marker string) *regexp.Regexp {
	name := strings.TrimSuffix(marker, ":")

	var b strings.Builder
	b.WriteString(`(?im)^[ \t>#*_]*(?:`)
	for _, r := range name {
		switch {
		case r == '_' || r == ' ':
			b.WriteString(`[ _]+`)
		default:
			base := baseLetter(r)
			if base != r {
				b.WriteString("[" + regexp.QuoteMeta(string(r)) + regexp.QuoteMeta(string(base)) + "]")
			} else {
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
	}
	b.WriteString(`)[*_]*[ \t]*:[*_]*`)

	return regexp.MustCompile(b.String())
}

// baseLetter remove o acento de uma letra: 'Ç' -> 'C', 'Ã' -> 'A'
func baseLetter(r rune) rune {
	base, _ := utf8.DecodeRuneInString(norm.NFD.String(string(r)))
	if base == utf8.RuneError {
		return r
	}
	return base
}
