package handler

import (
	"context"
	"net/http"

	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"github.com/gin-gonic/gin"
)

// AddressLookup busca endereços pelo CEP
type AddressLookup interface {
	Lookup(ctx context.Context, cep string) (*model.Address, error)
}

// CEPHandler manipula a consulta de CEP
type CEPHandler struct {
	lookup AddressLookup
}

// NewCEPHandler cria um novo handler de CEP
func NewCEPHandler(lookup AddressLookup) *CEPHandler {
	return &CEPHandler{lookup: lookup}
}

// Lookup retorna o endereço do CEP
// @Summary      Consulta CEP
// @Tags         cep
// @Produce      json
// @Param        cep path string true "CEP com ou sem máscara"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/cep/{cep} [get]
func (h *CEPHandler) Lookup(c *gin.Context) {
	addr, err := h.lookup.Lookup(c.Request.Context(), c.Param("cep"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    addr,
	})
}
