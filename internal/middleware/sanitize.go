package middleware

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cleberrangel/freelance-pricing-api/internal/model"
)

// SanitizeConfig controla a limpeza de textos livres
type SanitizeConfig struct {
	MaxStringLength int  // tamanho máximo em bytes
	KeepNewlines    bool // preserva \n e \t (textos de várias linhas)
}

// DefaultSanitizeConfig retorna a configuração padrão
func DefaultSanitizeConfig() SanitizeConfig {
	return SanitizeConfig{
		MaxStringLength: 10000,
		KeepNewlines:    false,
	}
}

// SanitizeString remove bytes nulos e caracteres de controle, apara os espaços
// e trunca sem cortar um caractere UTF-8 ao meio. HTML não é escapado: o texto
// vai para o prompt e a saída para o usuário passa pelo renderer de markdown.
func SanitizeString(input string, config SanitizeConfig) string {
	input = strings.ReplaceAll(input, "\x00", "")

	if config.KeepNewlines {
		input = removeControlCharsExcept(input, '\n', '\t')
	} else {
		input = removeControlChars(input)
	}

	input = strings.TrimSpace(input)

	if config.MaxStringLength > 0 && len(input) > config.MaxStringLength {
		input = truncateUTF8(input, config.MaxStringLength)
	}

	return input
}

// limites de model.Task.Description e model.ProjectContext
const (
	maxDescriptionRunes = 200
	maxContextRunes     = 1000
)

// SanitizeEstimate limpa os textos livres de uma estimativa antes da validação
func SanitizeEstimate(estimate *model.PriceEstimate) {
	// limites em bytes folgados o bastante para a validação em caracteres
	// ainda rejeitar textos longos demais
	line := DefaultSanitizeConfig()
	line.MaxStringLength = utf8.UTFMax * maxDescriptionRunes

	multiline := DefaultSanitizeConfig()
	multiline.KeepNewlines = true
	multiline.MaxStringLength = utf8.UTFMax * maxContextRunes

	for i := range estimate.Tasks {
		task := &estimate.Tasks[i]
		task.Description = SanitizeString(task.Description, line)
		task.Hours = SanitizeNumber(task.Hours)
	}

	estimate.Config.HourlyRate = SanitizeNumber(estimate.Config.HourlyRate)
	estimate.Config.SafetyMargin = SanitizeNumber(estimate.Config.SafetyMargin)
	if adj := estimate.Config.ValueAdjustment; adj != nil {
		v := SanitizeNumber(*adj)
		estimate.Config.ValueAdjustment = &v
		if v == "" {
			estimate.Config.ValueAdjustment = nil
		}
	}

	estimate.Context.ProjectContext = SanitizeString(estimate.Context.ProjectContext, multiline)
}

// SanitizeNumber apara um campo numérico textual
func SanitizeNumber(s string) string {
	return strings.TrimSpace(removeControlChars(s))
}

var invalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeID mantém apenas letras, dígitos, "-" e "_" (request e analysis ids)
func SanitizeID(id string) string {
	id = strings.TrimSpace(id)
	id = invalidIDChars.ReplaceAllString(id, "")
	if len(id) > 64 {
		id = id[:64]
	}
	return id
}

// SanitizeFilename remove componentes de caminho e caracteres perigosos
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, "/", "")
	filename = strings.ReplaceAll(filename, "\\", "")
	filename = strings.ReplaceAll(filename, `"`, "")
	filename = removeControlChars(filename)
	filename = strings.TrimSpace(filename)

	if filename == "" || filename == "." {
		return "estimativa"
	}

	return filename
}

func removeControlChars(s string) string {
	return removeControlCharsExcept(s)
}

func removeControlCharsExcept(s string, keep ...rune) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) && !containsRune(keep, r) {
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

func containsRune(runes []rune, r rune) bool {
	for _, k := range runes {
		if k == r {
			return true
		}
	}
	return false
}

func truncateUTF8(s string, max int) string {
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
