package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const currencySymbol = "R$"

// brlFormat usa "." como separador de milhar e "," como separador decimal
const brlFormat = "#.###,##"

// FormatCurrency formata um valor em reais: "R$ 1.234,56".
// O espaço após o símbolo é um espaço comum para que o texto volte
// a ser lido por NormalizeNumeral quando embutido no prompt.
func FormatCurrency(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	formatted := humanize.FormatFloat(brlFormat, value)
	if strings.HasPrefix(formatted, "-") {
		return "-" + currencySymbol + " " + formatted[1:]
	}
	return currencySymbol + " " + formatted
}

// NormalizeNumeral converte um numeral no formato brasileiro ("1.234,56")
// em float64: remove todos os ".", troca "," por "." e interpreta o resultado.
func NormalizeNumeral(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, currencySymbol)
	s = strings.TrimSpace(s)
	// pontuação de fim de frase capturada junto com o número
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return 0, false
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
