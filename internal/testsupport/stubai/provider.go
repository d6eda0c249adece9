// Package stubai provides a scripted ai.ChatProvider for pipeline tests.
package stubai

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"prodigy/internal/adapters/ai"
	"prodigy/pkg/errors"
)

// ReplyFunc answers the n-th (1-based) call made to one agent.
type ReplyFunc func(req ai.ChatRequest, n int) (string, error)

// Provider routes every call by model name. Selectors built with
// NewSelector map each agent to a model named after it, so the model
// doubles as the agent key.
type Provider struct {
	mu       sync.Mutex
	handlers map[string]ReplyFunc
	calls    map[string]int
	requests map[string][]ai.ChatRequest
}

func NewProvider() *Provider {
	return &Provider{
		handlers: make(map[string]ReplyFunc),
		calls:    make(map[string]int),
		requests: make(map[string][]ai.ChatRequest),
	}
}

// On installs a handler for an agent.
func (s *Provider) On(agent string, h ReplyFunc) *Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[agent] = h
	return s
}

// Reply makes an agent always answer content.
func (s *Provider) Reply(agent, content string) *Provider {
	return s.On(agent, func(ai.ChatRequest, int) (string, error) { return content, nil })
}

// Count returns how many calls reached an agent, failed ones included.
func (s *Provider) Count(agent string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[agent]
}

// Requests returns every request an agent received, oldest first.
func (s *Provider) Requests(agent string) []ai.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.ChatRequest(nil), s.requests[agent]...)
}

// LastRequest returns the most recent request for an agent.
func (s *Provider) LastRequest(agent string) ai.ChatRequest {
	reqs := s.Requests(agent)
	if len(reqs) == 0 {
		return ai.ChatRequest{}
	}
	return reqs[len(reqs)-1]
}

func (s *Provider) Name() string { return string(ai.ProviderNameOpenAI) }

func (s *Provider) GetModel(_ context.Context, model string) (ai.ModelInfo, error) {
	return ai.ModelInfo{
		Provider:        ai.ProviderNameOpenAI,
		Name:            model,
		InputCostPer1K:  0.001,
		OutputCostPer1K: 0.002,
		SupportsJSON:    true,
	}, nil
}

func (s *Provider) ListModels(context.Context) ([]ai.ModelInfo, error) { return nil, nil }

// Chat answers with the agent's handler and a fixed usage of 1000 prompt and 500 completion tokens.
func (s *Provider) Chat(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls[req.Model]++
	n := s.calls[req.Model]
	s.requests[req.Model] = append(s.requests[req.Model], req)
	h := s.handlers[req.Model]
	s.mu.Unlock()

	if h == nil {
		return nil, &ai.PermanentError{Provider: ai.ProviderNameOpenAI, Err: errors.Newf("no stub for %s", req.Model)}
	}
	content, err := h(req, n)
	if err != nil {
		return nil, err
	}
	return &ai.ChatResponse{
		Model:   req.Model,
		Content: content,
		Usage:   ai.Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
	}, nil
}

// Agents are the model selector keys used across the pipeline.
var Agents = []string{
	"market", "tech", "revenue", "ops", "product",
	"chief_of_staff", "query_broker", "devils_advocate", "research",
}

// NewSelector registers p and maps every pipeline agent to a model named after it.
func NewSelector(t testing.TB, p *Provider) *ai.ModelSelector {
	t.Helper()

	registry := ai.NewProviderRegistry()
	require.NoError(t, registry.Register(p))

	overrides := make([]ai.AgentModelConfig, 0, len(Agents))
	for _, agent := range Agents {
		overrides = append(overrides, ai.AgentModelConfig{Agent: agent, Provider: ai.ProviderNameOpenAI, Model: agent})
	}
	return ai.NewModelSelector(registry, ai.ProviderNameOpenAI, ai.ModelGPT4o, overrides...)
}
