package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// ProviderGemini usa a API Gemini do Google
	ProviderGemini = "gemini"
	// ProviderAnthropic usa a API de mensagens da Anthropic
	ProviderAnthropic = "anthropic"

	DefaultGeminiModel    = "gemini-1.5-pro"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultCEPBaseURL     = "https://viacep.com.br/ws"
)

// Config armazena as configurações da aplicação
type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	LogJSON  bool

	AIProvider          string
	AIModel             string
	GeminiAPIKey        string
	AnthropicAPIKey     string
	AITimeout           time.Duration
	AIRequestsPerMinute int

	CEPBaseURL  string
	CEPCacheTTL time.Duration
}

// ErrInvalidProvider indica um provedor de IA desconhecido
var ErrInvalidProvider = errors.New("provedor de IA inválido")

// Load carrega as configurações do ambiente.
// A ausência da chave da API não é erro aqui: ela é reportada em cada análise.
func Load() (*Config, error) {
	// Tenta carregar .env de múltiplos locais
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Port:            os.Getenv("PORT"),
		GinMode:         os.Getenv("GIN_MODE"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		AIProvider:      strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER"))),
		AIModel:         strings.TrimSpace(os.Getenv("AI_MODEL")),
		GeminiAPIKey:    strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		CEPBaseURL:      strings.TrimRight(os.Getenv("CEP_BASE_URL"), "/"),
	}

	var err error
	if cfg.LogJSON, err = parseBool("LOG_JSON", false); err != nil {
		return nil, err
	}
	if cfg.AITimeout, err = parseDuration("AI_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.CEPCacheTTL, err = parseDuration("CEP_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AIRequestsPerMinute, err = parseInt("AI_REQUESTS_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.AIRequestsPerMinute <= 0 {
		return nil, fmt.Errorf("AI_REQUESTS_PER_MINUTE deve ser positivo: %d", cfg.AIRequestsPerMinute)
	}

	// Defaults
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.GinMode == "" {
		cfg.GinMode = "debug"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AIProvider == "" {
		cfg.AIProvider = ProviderGemini
	}
	if cfg.CEPBaseURL == "" {
		cfg.CEPBaseURL = DefaultCEPBaseURL
	}

	switch cfg.AIProvider {
	case ProviderGemini:
		if cfg.AIModel == "" {
			cfg.AIModel = DefaultGeminiModel
		}
	case ProviderAnthropic:
		if cfg.AIModel == "" {
			cfg.AIModel = DefaultAnthropicModel
		}
	default:
		return nil, fmt.Errorf("%w: %s (suportados: gemini, anthropic)", ErrInvalidProvider, cfg.AIProvider)
	}

	return cfg, nil
}

// APIKey retorna a chave do provedor configurado
func (c *Config) APIKey() string {
	if c.AIProvider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.GeminiAPIKey
}

func parseBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s inválido: %w", key, err)
	}
	return v, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s inválido: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s deve ser positivo: %s", key, raw)
	}
	return v, nil
}

func parseInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s inválido: %w", key, err)
	}
	return v, nil
}
