package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSelectorRegistry(t *testing.T) *ProviderRegistry {
	t.Helper()

	registry := NewProviderRegistry()
	require.NoError(t, registry.Register(&mockProvider{
		name: "openai",
		models: []ModelInfo{
			{Name: ModelGPT4oMini, InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006},
			{Name: ModelGPT4o, InputCostPer1K: 0.0025, OutputCostPer1K: 0.01},
		},
	}))
	require.NoError(t, registry.Register(&mockProvider{
		name:   "xai",
		models: []ModelInfo{{Name: ModelGrokBeta}},
	}))
	return registry
}

func TestModelSelectorDefaults(t *testing.T) {
	selector := NewModelSelector(newSelectorRegistry(t), ProviderNameOpenAI, ModelGPT4o)

	binding, err := selector.Resolve(context.Background(), "market")
	require.NoError(t, err)
	assert.Equal(t, ModelGPT4o, binding.Config.Model)
	assert.Equal(t, ProviderNameOpenAI, binding.Config.Provider)
	assert.Equal(t, "openai", binding.Provider.Name())
	assert.InDelta(t, 0.01, binding.Model.OutputCostPer1K, 1e-9)
}

func TestModelSelectorOverride(t *testing.T) {
	selector := NewModelSelector(newSelectorRegistry(t), ProviderNameOpenAI, ModelGPT4o,
		AgentModelConfig{Agent: "research", Provider: ProviderNameXAI},
	)
	selector.Set(AgentModelConfig{Agent: "tech", Model: ModelGPT4oMini})

	research, err := selector.Resolve(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, ModelGrokBeta, research.Config.Model, "first listed model is the fallback")

	tech, err := selector.Resolve(context.Background(), "tech")
	require.NoError(t, err)
	assert.Equal(t, ModelGPT4oMini, tech.Config.Model)
}

func TestModelSelectorUnknownModelStillResolves(t *testing.T) {
	selector := NewModelSelector(newSelectorRegistry(t), ProviderNameOpenAI, "gpt-next")

	binding, err := selector.Resolve(context.Background(), "ops")
	require.NoError(t, err)
	assert.Equal(t, "gpt-next", binding.Model.Name)
	assert.Zero(t, binding.Model.Cost(1000, 1000))
}

func TestModelSelectorMissingProvider(t *testing.T) {
	selector := NewModelSelector(NewProviderRegistry(), ProviderNameOpenAI, ModelGPT4o)

	_, err := selector.Resolve(context.Background(), "ops")
	assert.Error(t, err)
}
