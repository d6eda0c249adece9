package ai

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
// through the official SDK. The xAI provider is the same type with another
// base URL and model catalog.
type OpenAIProvider struct {
	name    ProviderName
	client  openai.Client // NewClient returns Client (not *Client)
	timeout time.Duration
	models  []ModelInfo
	limiter RateLimiter
	log     *logger.Logger
}

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty keeps the SDK default
	Timeout time.Duration
	Limiter RateLimiter
}

// NewOpenAIProvider creates a provider for api.openai.com (or a compatible proxy).
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	return newCompatibleProvider(ProviderNameOpenAI, cfg, openAIModels())
}

// NewXAIProvider creates a provider for the xAI (Grok) OpenAI-compatible API.
func NewXAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.ai/v1"
	}
	return newCompatibleProvider(ProviderNameXAI, cfg, xAIModels())
}

func newCompatibleProvider(name ProviderName, cfg OpenAIConfig, models []ModelInfo) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s API key is required", name)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewNoOpLimiter()
	}

	// Retries are owned by the caller so every attempt is visible to it.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		name:    name,
		client:  openai.NewClient(opts...),
		timeout: cfg.Timeout,
		models:  models,
		limiter: cfg.Limiter,
		log:     logger.Get().With("component", "ai_provider", "provider", name),
	}, nil
}

// Name returns provider name.
func (p *OpenAIProvider) Name() string { return string(p.name) }

// GetModel returns model info by name.
func (p *OpenAIProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	for _, m := range p.models {
		if strings.EqualFold(m.Name, model) {
			return m, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "%s model %s not found", p.name, model)
}

// ListModels lists available models.
func (p *OpenAIProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}
