package agents

import (
	"context"
	"sort"
	"sync"

	"prodigy/internal/adapters/ai"
	"prodigy/internal/domain/counsel"
)

// CostTracker accumulates model usage for one run.
type CostTracker struct {
	mu    sync.RWMutex
	costs map[string]*ModelCost // model name -> cost data
	calls int
}

// ModelCost tracks cost for a specific model
type ModelCost struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	TotalCostUSD float64
	Attempts     int64
}

// NewCostTracker creates an empty tracker
func NewCostTracker() *CostTracker {
	return &CostTracker{
		costs: make(map[string]*ModelCost),
	}
}

// RecordUsage records the tokens of one attempt and returns its USD cost
func (ct *CostTracker) RecordUsage(model ai.ModelInfo, inputTokens, outputTokens int) float64 {
	cost := model.Cost(inputTokens, outputTokens)

	ct.mu.Lock()
	defer ct.mu.Unlock()

	mc, ok := ct.costs[model.Name]
	if !ok {
		mc = &ModelCost{Model: model.Name}
		ct.costs[model.Name] = mc
	}
	mc.InputTokens += int64(inputTokens)
	mc.OutputTokens += int64(outputTokens)
	mc.TotalCostUSD += cost
	mc.Attempts++

	return cost
}

// RecordCall counts one logical call (all of its attempts)
func (ct *CostTracker) RecordCall() {
	ct.mu.Lock()
	ct.calls++
	ct.mu.Unlock()
}

// Costs returns a snapshot ordered by model name
func (ct *CostTracker) Costs() []ModelCost {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	out := make([]ModelCost, 0, len(ct.costs))
	for _, c := range ct.costs {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// TotalCost returns the total cost across all models
func (ct *CostTracker) TotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	var total float64
	for _, cost := range ct.costs {
		total += cost.TotalCostUSD
	}
	return total
}

// Summary converts the tracker into the run's usage section
func (ct *CostTracker) Summary() counsel.UsageSummary {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	s := counsel.UsageSummary{Calls: ct.calls}
	for _, c := range ct.costs {
		s.Attempts += int(c.Attempts)
		s.PromptTokens += int(c.InputTokens)
		s.CompletionTokens += int(c.OutputTokens)
		s.CostUSD += c.TotalCostUSD
	}
	return s
}

type costTrackerKey struct{}

// WithCostTracker attaches a fresh tracker to ctx and returns both
func WithCostTracker(ctx context.Context) (context.Context, *CostTracker) {
	ct := NewCostTracker()
	return context.WithValue(ctx, costTrackerKey{}, ct), ct
}

// CostTrackerFromContext returns the run tracker, or nil outside a run
func CostTrackerFromContext(ctx context.Context) *CostTracker {
	ct, _ := ctx.Value(costTrackerKey{}).(*CostTracker)
	return ct
}
