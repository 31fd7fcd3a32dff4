package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("positive_number", func(fl validator.FieldLevel) bool {
		v, ok := parseStrict(fl.Field().String())
		return ok && v > 0
	})
	_ = validate.RegisterValidation("percent", func(fl validator.FieldLevel) bool {
		v, ok := parseStrict(fl.Field().String())
		return ok && v >= 0 && v <= 100
	})
	// campo vazio equivale a ajuste ausente
	_ = validate.RegisterValidation("adjustment", func(fl validator.FieldLevel) bool {
		if strings.TrimSpace(fl.Field().String()) == "" {
			return true
		}
		v, ok := parseStrict(fl.Field().String())
		return ok && v >= -100
	})
}

// ValidationError agrupa as mensagens de validação por campo
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "dados inválidos: " + strings.Join(e.Fields, "; ")
}

// Validate valida uma estimativa recebida do formulário
func (p *PriceEstimate) Validate() error {
	return validateStruct(p)
}

// Validate valida uma requisição de análise
func (r *AnalyzeRequest) Validate() error {
	return validateStruct(r)
}

// Validate verifica as invariantes da análise: valor sugerido finito e não negativo,
// confiança entre 0 e 100
func (a *AiAnalysis) Validate() error {
	if math.IsNaN(a.SuggestedTotal) || math.IsInf(a.SuggestedTotal, 0) {
		return fmt.Errorf("%w: valor sugerido não é um número finito", ErrInvalidAnalysis)
	}
	if err := validateStruct(a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}
	return nil
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, messageFor(fe))
	}
	return &ValidationError{Fields: messages}
}

// messageFor traduz um erro do validator para a mensagem exibida no formulário
func messageFor(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Tasks":
		return "Adicione pelo menos uma tarefa"
	case "Description":
		if fe.Tag() == "max" {
			return fmt.Sprintf("%s: Descrição muito longa", fe.Namespace())
		}
		return fmt.Sprintf("%s: Descrição deve ter no mínimo 3 caracteres", fe.Namespace())
	case "Hours":
		return fmt.Sprintf("%s: Horas devem ser um número positivo", fe.Namespace())
	case "Difficulty":
		return fmt.Sprintf("%s: Dificuldade deve estar entre 0 e %d", fe.Namespace(), MaxDifficulty)
	case "HourlyRate":
		return "Taxa horária deve ser um número positivo"
	case "SafetyMargin":
		if fe.Tag() == "required" {
			return "Margem de segurança é obrigatória"
		}
		return "Margem de segurança deve ser entre 0 e 100%"
	case "ValueAdjustment":
		return "Ajuste de valor deve ser maior ou igual a -100%"
	case "ProjectContext":
		if fe.Tag() == "max" {
			return "Contexto muito longo"
		}
		return "Forneça mais detalhes sobre o projeto"
	case "WebhookURL":
		return "webhook_url deve ser uma URL válida"
	case "SuggestedTotal":
		return "O valor sugerido deve ser positivo ou zero"
	case "Confidence":
		return "A confiança deve estar entre 0 e 100"
	default:
		return fmt.Sprintf("%s: regra '%s' não atendida", fe.Namespace(), fe.Tag())
	}
}
