package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cleberrangel/freelance-pricing-api/internal/cache"
	"github.com/cleberrangel/freelance-pricing-api/internal/logger"
	"github.com/cleberrangel/freelance-pricing-api/internal/metrics"
	"github.com/cleberrangel/freelance-pricing-api/internal/model"
	"golang.org/x/time/rate"
)

const (
	// CEPRequestsPerMinute limite conservador para o ViaCEP
	CEPRequestsPerMinute = 120

	// CEPTimeout timeout de cada consulta
	CEPTimeout = 10 * time.Second
)

// viaCEPResponse é o formato devolvido pelo ViaCEP. "erro" vem como booleano
// ou como a string "true", dependendo da versão da API.
type viaCEPResponse struct {
	CEP         string          `json:"cep"`
	Logradouro  string          `json:"logradouro"`
	Complemento string          `json:"complemento"`
	Bairro      string          `json:"bairro"`
	Localidade  string          `json:"localidade"`
	UF          string          `json:"uf"`
	DDD         string          `json:"ddd"`
	Erro        json.RawMessage `json:"erro,omitempty"`
}

func (r viaCEPResponse) notFound() bool {
	erro := strings.Trim(strings.TrimSpace(string(r.Erro)), `"`)
	return erro == "true"
}

// ViaCEPClient consulta endereços pelo CEP
type ViaCEPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache[model.Address]
}

// NewViaCEPClient cria o cliente com cache de ttl
func NewViaCEPClient(baseURL string, ttl time.Duration) *ViaCEPClient {
	return &ViaCEPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: CEPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/CEPRequestsPerMinute), 10),
		cache:   cache.New[model.Address](ttl),
	}
}

// NormalizeCEP remove tudo que não for dígito. Retorna ErrInvalidCEP se
// o resultado não tiver 8 dígitos.
func NormalizeCEP(cep string) (string, error) {
	var b strings.Builder
	for _, r := range cep {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() != 8 {
		return "", model.ErrInvalidCEP
	}
	return b.String(), nil
}

// Lookup busca o endereço do CEP, usando o cache quando possível
func (c *ViaCEPClient) Lookup(ctx context.Context, cep string) (*model.Address, error) {
	clean, err := NormalizeCEP(cep)
	if err != nil {
		return nil, err
	}

	m := metrics.Get()
	m.IncrementCEPLookups()

	if addr, ok := c.cache.Get(clean); ok {
		m.IncrementCEPCacheHits()
		return &addr, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/%s/json/", c.baseURL, clean)
	addr, err := c.doRequest(ctx, url)
	if err != nil {
		logger.Get(ctx).Warn().
			Err(err).
			Str("cep", clean).
			Msg("Falha na consulta de CEP")
		return nil, err
	}

	c.cache.Set(clean, *addr)

	logger.Get(ctx).Debug().
		Str("cep", clean).
		Str("city", addr.City).
		Msg("CEP consultado")

	return addr, nil
}

// CacheStats retorna as estatísticas do cache de CEP
func (c *ViaCEPClient) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// Close libera o cache
func (c *ViaCEPClient) Close() {
	c.cache.Stop()
}

func (c *ViaCEPClient) doRequest(ctx context.Context, url string) (*model.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("criar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.ErrTimeout
		}
		return nil, fmt.Errorf("executar request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return nil, model.ErrInvalidCEP
	case http.StatusNotFound:
		return nil, model.ErrCEPNotFound
	case http.StatusTooManyRequests:
		return nil, model.ErrRateLimited
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var data viaCEPResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if data.notFound() {
		return nil, model.ErrCEPNotFound
	}

	return &model.Address{
		ZipCode:      data.CEP,
		Address:      data.Logradouro,
		Complement:   data.Complemento,
		Neighborhood: data.Bairro,
		City:         data.Localidade,
		State:        data.UF,
		DDD:          data.DDD,
	}, nil
}
