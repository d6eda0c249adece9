package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeStageCompleted = "counsel.stage_completed"
	TypeRunCompleted   = "counsel.run_completed"
	TypeRunFailed      = "counsel.run_failed"
)

// Stage names as they appear in events and metrics.
const (
	StageResearch    = "research"
	StageMarket      = "market"
	StageProduct     = "product"
	StageTechRevenue = "tech_revenue"
	StageOps         = "ops"
	StageAggregate   = "aggregate"
	StageSynthesis   = "synthesis"
	StageChallenge   = "challenge"
	StageReAnalysis  = "re_analysis"
	StageResynthesis = "resynthesis"
)

// BaseEvent carries the envelope fields shared by every event.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent creates a base event with a fresh id and the current time.
func NewBaseEvent(eventType, source string, runID uuid.UUID) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		RunID:     runID.String(),
		Timestamp: time.Now().UTC(),
	}
}

// StageEvent is emitted by the coordinator after each pipeline stage.
type StageEvent struct {
	BaseEvent
	Stage      string             `json:"stage"`
	DurationMS int64              `json:"duration_ms"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Note       string             `json:"note,omitempty"`
}

// RunEvent is emitted once per run, on completion or failure.
type RunEvent struct {
	BaseEvent
	IdeaName        string   `json:"idea_name"`
	OverallScore    float64  `json:"overall_score"`
	OverallDecision string   `json:"overall_decision,omitempty"`
	Challenged      bool     `json:"challenged"`
	ReAnalyzed      []string `json:"re_analyzed,omitempty"`
	QueriesIssued   int      `json:"queries_issued"`
	CostUSD         float64  `json:"cost_usd"`
	DurationMS      int64    `json:"duration_ms"`
	Error           string   `json:"error,omitempty"`
}
