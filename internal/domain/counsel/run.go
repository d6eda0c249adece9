package counsel

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Aggregate is the combined score across all specialists
type Aggregate struct {
	Score    float64 `json:"score"`
	Decision string  `json:"decision"`
	Spread   float64 `json:"spread"`
}

// UsageSummary totals the external calls made during a run
type UsageSummary struct {
	Calls            int     `json:"calls"`
	Attempts         int     `json:"attempts"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Run is the full materialization of one pipeline execution
type Run struct {
	ID         uuid.UUID
	Brief      Brief
	Results    map[SpecialistKey]*SpecialistResult
	Summaries  Summaries
	Aggregate  Aggregate
	Synthesis  *Synthesis
	Challenge  *Challenge
	ReAnalyzed []SpecialistKey
	Usage      UsageSummary

	// QueriesIssued counts clarifications in the first synthesis turn
	QueriesIssued int
	// Research holds optional market research notes fed to the market stage
	Research string

	StartedAt   time.Time
	CompletedAt time.Time
}

// NewRun starts an empty run for the brief
func NewRun(brief Brief) *Run {
	return &Run{
		ID:        uuid.New(),
		Brief:     brief,
		Results:   make(map[SpecialistKey]*SpecialistResult, 5),
		Summaries: make(Summaries, 5),
		StartedAt: time.Now().UTC(),
	}
}

// Challenged reports whether the devil's advocate ran
func (r *Run) Challenged() bool {
	return r.Challenge != nil
}

// Duration returns wall time of the run, or time since start while in progress
func (r *Run) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Report is the founder-facing document persisted for every run
type Report struct {
	RunID          uuid.UUID                           `json:"run_id"`
	GeneratedAt    time.Time                           `json:"generated_at"`
	Project        ReportProject                       `json:"project"`
	Reports        map[SpecialistKey]*SpecialistResult `json:"reports"`
	CounselSummary CounselSummary                      `json:"counsel_summary"`
	DevilsAdvocate *Challenge                          `json:"devils_advocate,omitempty"`
	ReAnalyzed     []SpecialistKey                     `json:"re_analyzed,omitempty"`
	Usage          UsageSummary                        `json:"usage"`
}

// ReportProject identifies the idea in a report
type ReportProject struct {
	IdeaName    string `json:"idea_name"`
	Description string `json:"description"`
}

// CounselSummary is the headline section of a report
type CounselSummary struct {
	OverallScore    float64    `json:"overall_score"`
	OverallDecision string     `json:"overall_decision"`
	ScoreSpread     float64    `json:"score_spread"`
	ByDimension     Summaries  `json:"by_dimension"`
	ChiefOfStaff    *Synthesis `json:"chief_of_staff"`
}

// Report renders the run in the persisted report layout
func (r *Run) Report() *Report {
	generated := r.CompletedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	return &Report{
		RunID:       r.ID,
		GeneratedAt: generated,
		Project: ReportProject{
			IdeaName:    r.Brief.IdeaName,
			Description: r.Brief.Description,
		},
		Reports: r.Results,
		CounselSummary: CounselSummary{
			OverallScore:    r.Aggregate.Score,
			OverallDecision: r.Aggregate.Decision,
			ScoreSpread:     r.Aggregate.Spread,
			ByDimension:     r.Summaries,
			ChiefOfStaff:    r.Synthesis,
		},
		DevilsAdvocate: r.Challenge,
		ReAnalyzed:     r.ReAnalyzed,
		Usage:          r.Usage,
	}
}

// Record is a stored run as returned by a Repository
type Record struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	IdeaName        string          `db:"idea_name" json:"idea_name"`
	OverallScore    float64         `db:"overall_score" json:"overall_score"`
	OverallDecision string          `db:"overall_decision" json:"overall_decision"`
	Challenged      bool            `db:"challenged" json:"challenged"`
	CostUSD         float64         `db:"cost_usd" json:"cost_usd"`
	Report          json.RawMessage `db:"report" json:"report"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// NewRecord flattens a finished run into its stored form
func NewRecord(r *Run) (*Record, error) {
	report, err := json.Marshal(r.Report())
	if err != nil {
		return nil, err
	}
	created := r.CompletedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &Record{
		ID:              r.ID,
		IdeaName:        r.Brief.IdeaName,
		OverallScore:    r.Aggregate.Score,
		OverallDecision: r.Aggregate.Decision,
		Challenged:      r.Challenged(),
		CostUSD:         r.Usage.CostUSD,
		Report:          report,
		CreatedAt:       created,
	}, nil
}
