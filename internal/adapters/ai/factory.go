package ai

import (
	"strings"

	"github.com/redis/go-redis/v9"

	"prodigy/internal/adapters/config"
	"prodigy/pkg/errors"
)

// BuildRegistry initializes a ProviderRegistry with all enabled providers based on configuration.
// redisClient is optional - if provided, distributed rate limiting will be used (required when
// several counsel instances share one API key). If nil, local in-memory rate limiting is used.
func BuildRegistry(cfg config.AIConfig, redisClient *redis.Client) (*ProviderRegistry, error) {
	registry := NewProviderRegistry()
	limiterFactory := NewRateLimiterFactory(redisClient)

	rateLimitCfg := RateLimitConfig{
		Enabled:      cfg.RateLimitEnabled,
		ReqPerMinute: cfg.RateLimitRPM,
		Burst:        cfg.RateLimitBurst,
	}

	if cfg.OpenAIKey != "" {
		provider, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.CallTimeout,
			Limiter: limiterFactory.Create(ProviderNameOpenAI, rateLimitCfg),
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	// Research is optional, so xAI only joins the registry when a key is present
	if cfg.XAIKey != "" {
		provider, err := NewXAIProvider(OpenAIConfig{
			APIKey:  cfg.XAIKey,
			BaseURL: cfg.XAIBaseURL,
			Timeout: cfg.CallTimeout,
			Limiter: limiterFactory.Create(ProviderNameXAI, rateLimitCfg),
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	if !registry.Has(ProviderNameOpenAI) {
		return nil, errors.Wrap(errors.ErrProviderUnavailable, "OPENAI_API_KEY is not set")
	}

	return registry, nil
}

// NormalizeProviderName makes provider lookup more forgiving.
func NormalizeProviderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
