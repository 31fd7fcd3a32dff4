package model

// DefaultDifficulty é a dificuldade de uma nova tarefa (Médio)
const DefaultDifficulty = 2

// difficultyLabels é a escala ordinal de dificuldade, índices 0 a 5
var difficultyLabels = [...]string{
	"Muito fácil",
	"Fácil",
	"Médio",
	"Intermediário",
	"Difícil",
	"Muito difícil",
}

// MaxDifficulty é o maior índice de dificuldade aceito
const MaxDifficulty = len(difficultyLabels) - 1

// DifficultyLabel retorna o rótulo da dificuldade ou "" fora da escala
func DifficultyLabel(difficulty int) string {
	if difficulty < 0 || difficulty > MaxDifficulty {
		return ""
	}
	return difficultyLabels[difficulty]
}

// DifficultyLabels retorna a escala completa
func DifficultyLabels() []string {
	out := make([]string, len(difficultyLabels))
	copy(out, difficultyLabels[:])
	return out
}

// Task representa uma tarefa do projeto
type Task struct {
	Description string `json:"description" validate:"required,min=3,max=200"`
	Hours       string `json:"hours" validate:"positive_number"`
	Difficulty  int    `json:"difficulty" validate:"min=0,max=5"`
}

// CalculationConfig contém a taxa horária e os ajustes percentuais
type CalculationConfig struct {
	HourlyRate      string  `json:"hourlyRate" validate:"positive_number"`
	SafetyMargin    string  `json:"safetyMargin" validate:"required,percent"`
	ValueAdjustment *string `json:"valueAdjustment,omitempty" validate:"omitempty,adjustment"`
}

// ProjectContext descreve o projeto em texto livre
type ProjectContext struct {
	ProjectContext string `json:"projectContext" validate:"min=30,max=1000"`
}

// PriceEstimate é o registro validado enviado pelo formulário
type PriceEstimate struct {
	Tasks   []Task            `json:"tasks" validate:"required,min=1,dive"`
	Config  CalculationConfig `json:"config"`
	Context ProjectContext    `json:"context"`
}

// Totals contém o resultado do cálculo base
type Totals struct {
	TotalHours       float64 `json:"total_hours"`
	BaseTotal        float64 `json:"base_total"`
	WithSafetyMargin float64 `json:"with_safety_margin"`
	FinalTotal       float64 `json:"final_total"`
}

// AiAnalysis é a análise estruturada extraída da resposta do modelo
type AiAnalysis struct {
	SuggestedTotal  float64  `json:"suggestedTotal" validate:"gte=0"`
	Explanation     string   `json:"explanation"`
	MarketAnalysis  string   `json:"marketAnalysis,omitempty"`
	Confidence      *int     `json:"confidence,omitempty" validate:"omitempty,min=0,max=100"`
	Factors         []string `json:"factors,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	ExplanationHTML string   `json:"explanationHtml,omitempty"`
	RawResponse     string   `json:"rawResponse,omitempty"`
}
