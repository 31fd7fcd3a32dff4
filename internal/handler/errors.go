package handler

import (
	"errors"
	"net/http"

	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"github.com/gin-gonic/gin"
)

// StatusClientClosedRequest é usado quando o cliente desiste da análise
const StatusClientClosedRequest = 499

// errorResponse converte um erro de domínio no status e corpo da resposta
func errorResponse(err error) (int, model.ErrorResponse) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, model.ErrorResponse{
			Error:  "dados inválidos",
			Fields: verr.Fields,
		}
	case errors.Is(err, model.ErrMissingAPIKey):
		return http.StatusServiceUnavailable, model.ErrorResponse{
			Error:   "serviço de IA não configurado",
			Details: "defina GEMINI_API_KEY ou ANTHROPIC_API_KEY",
		}
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests, model.ErrorResponse{
			Error:   "rate limit excedido",
			Details: "aguarde alguns segundos e tente novamente",
		}
	case errors.Is(err, model.ErrTimeout):
		return http.StatusGatewayTimeout, model.ErrorResponse{
			Error:   "timeout na requisição",
			Details: "o serviço de IA demorou muito para responder",
		}
	case errors.Is(err, model.ErrProviderFailure), errors.Is(err, model.ErrEmptyResponse):
		return http.StatusBadGateway, model.ErrorResponse{
			Error:   "falha no serviço de IA",
			Details: err.Error(),
		}
	case errors.Is(err, model.ErrInvalidAnalysis):
		return http.StatusUnprocessableEntity, model.ErrorResponse{
			Error:   "análise da IA inválida",
			Details: err.Error(),
		}
	case errors.Is(err, model.ErrCanceled):
		return StatusClientClosedRequest, model.ErrorResponse{
			Error: "análise cancelada",
		}
	case errors.Is(err, model.ErrInvalidCEP):
		return http.StatusBadRequest, model.ErrorResponse{
			Error:   "CEP inválido",
			Details: "informe 8 dígitos",
		}
	case errors.Is(err, model.ErrCEPNotFound):
		return http.StatusNotFound, model.ErrorResponse{
			Error: "CEP não encontrado",
		}
	default:
		return http.StatusInternalServerError, model.ErrorResponse{
			Error:   "erro interno",
			Details: err.Error(),
		}
	}
}

// handleError trata erros e retorna resposta apropriada
func handleError(c *gin.Context, err error) {
	status, body := errorResponse(err)

	event := logger.FromGin(c).Warn()
	if status >= http.StatusInternalServerError {
		event = logger.FromGin(c).Error()
	}
	event.Err(err).
		Int("status", status).
		Str("path", c.FullPath()).
		Msg("Requisição falhou")

	c.JSON(status, body)
}

// badRequest responde a payloads que não puderam ser lidos
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Error:   "payload inválido",
		Details: err.Error(),
	})
}
