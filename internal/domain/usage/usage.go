package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one logical external call (all attempts) as stored for analytics.
type Record struct {
	ID               uuid.UUID `ch:"id" json:"id"`
	RunID            string    `ch:"run_id" json:"run_id"`
	Agent            string    `ch:"agent" json:"agent"`
	Mode             string    `ch:"mode" json:"mode"`
	Provider         string    `ch:"provider" json:"provider"`
	Model            string    `ch:"model" json:"model"`
	PromptTokens     uint32    `ch:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens uint32    `ch:"completion_tokens" json:"completion_tokens"`
	CostUSD          float64   `ch:"cost_usd" json:"cost_usd"`
	LatencyMS        uint32    `ch:"latency_ms" json:"latency_ms"`
	Attempts         uint8     `ch:"attempts" json:"attempts"`
	Success          bool      `ch:"success" json:"success"`
	Error            string    `ch:"error" json:"error"`
	CreatedAt        time.Time `ch:"created_at" json:"created_at"`
}

// AgentTotals aggregates usage for one agent over a time window.
type AgentTotals struct {
	Agent            string  `ch:"agent" json:"agent"`
	Calls            uint64  `ch:"calls" json:"calls"`
	Failures         uint64  `ch:"failures" json:"failures"`
	PromptTokens     uint64  `ch:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens uint64  `ch:"completion_tokens" json:"completion_tokens"`
	CostUSD          float64 `ch:"cost_usd" json:"cost_usd"`
	AvgLatencyMS     float64 `ch:"avg_latency_ms" json:"avg_latency_ms"`
}

// Recorder accepts usage records. Recording never fails the caller.
type Recorder interface {
	RecordUsage(ctx context.Context, rec Record)
}

// Repository reads and writes usage records.
type Repository interface {
	Recorder
	TotalsByAgent(ctx context.Context, since time.Time) ([]AgentTotals, error)
	RunCost(ctx context.Context, runID string) (float64, error)
}
