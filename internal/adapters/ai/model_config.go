package ai

import (
	"context"
	"sync"

	"prodigy/pkg/errors"
)

// AgentModelConfig represents model selection for a specific agent.
type AgentModelConfig struct {
	Agent    string
	Provider ProviderName
	Model    string
}

// ModelBinding is a resolved agent model: the provider to call and the model metadata.
type ModelBinding struct {
	Config   AgentModelConfig
	Provider ChatProvider
	Model    ModelInfo
}

// ModelSelector handles model resolution per agent with graceful fallbacks.
type ModelSelector struct {
	registry        *ProviderRegistry
	defaultProvider ProviderName
	defaultModel    string
	configs         map[string]AgentModelConfig
	mu              sync.RWMutex
}

// NewModelSelector constructs a selector. Agents without an explicit entry
// use defaultProvider/defaultModel.
func NewModelSelector(registry *ProviderRegistry, defaultProvider ProviderName, defaultModel string, overrides ...AgentModelConfig) *ModelSelector {
	configMap := make(map[string]AgentModelConfig, len(overrides))
	for _, cfg := range overrides {
		configMap[cfg.Agent] = cfg
	}

	return &ModelSelector{
		registry:        registry,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		configs:         configMap,
	}
}

// Set assigns model configuration for an agent.
func (s *ModelSelector) Set(cfg AgentModelConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[cfg.Agent] = cfg
}

// Resolve returns the provider and model an agent should call.
func (s *ModelSelector) Resolve(ctx context.Context, agent string) (ModelBinding, error) {
	s.mu.RLock()
	cfg, ok := s.configs[agent]
	s.mu.RUnlock()

	if !ok {
		cfg = AgentModelConfig{Agent: agent}
	}
	if cfg.Provider == "" {
		cfg.Provider = s.defaultProvider
	}

	provider, err := s.registry.Get(string(cfg.Provider))
	if err != nil {
		return ModelBinding{}, err
	}

	if cfg.Model == "" && cfg.Provider == s.defaultProvider {
		cfg.Model = s.defaultModel
	}
	if cfg.Model == "" {
		models, err := provider.ListModels(ctx)
		if err != nil {
			return ModelBinding{}, errors.Wrapf(err, "failed to list models for provider %s", cfg.Provider)
		}
		if len(models) == 0 {
			return ModelBinding{}, errors.Wrapf(errors.ErrUnavailable, "provider %s has no available models", cfg.Provider)
		}
		cfg.Model = models[0].Name
	}

	info, err := provider.GetModel(ctx, cfg.Model)
	if err != nil {
		// Unknown models still run; cost accounting just reads zero.
		info = ModelInfo{Provider: cfg.Provider, Name: cfg.Model}
	}

	return ModelBinding{Config: cfg, Provider: provider, Model: info}, nil
}
