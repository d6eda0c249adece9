package ai

// ProviderName represents an AI provider identifier
type ProviderName string

// Provider name constants
const (
	ProviderNameOpenAI ProviderName = "openai"
	ProviderNameXAI    ProviderName = "xai"
)

// String returns the string representation of the provider name
func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name is supported
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameOpenAI, ProviderNameXAI:
		return true
	default:
		return false
	}
}

// AllProviderNames returns all supported provider names
func AllProviderNames() []ProviderName {
	return []ProviderName{ProviderNameOpenAI, ProviderNameXAI}
}

// Model name constants
const (
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"
	ModelGrokBeta  = "grok-beta"
)

func openAIModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameOpenAI,
			Name:            ModelGPT4oMini,
			Family:          "gpt-4o",
			MaxTokens:       128000,
			InputCostPer1K:  0.00015,
			OutputCostPer1K: 0.0006,
			SupportsJSON:    true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            ModelGPT4o,
			Family:          "gpt-4o",
			MaxTokens:       128000,
			InputCostPer1K:  0.0025,
			OutputCostPer1K: 0.01,
			SupportsJSON:    true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            "gpt-4.1",
			Family:          "gpt-4.1",
			MaxTokens:       1047576,
			InputCostPer1K:  0.002,
			OutputCostPer1K: 0.008,
			SupportsJSON:    true,
		},
	}
}

func xAIModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameXAI,
			Name:            ModelGrokBeta,
			Family:          "grok",
			MaxTokens:       131072,
			InputCostPer1K:  0.005,
			OutputCostPer1K: 0.015,
			SupportsJSON:    true,
		},
	}
}
