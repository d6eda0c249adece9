package agents

import "prodigy/internal/domain/counsel"

// Request selects how a specialist is asked. Exactly one of the three
// variants below; the prompt builder switches over the concrete type.
type Request interface {
	Mode() string
}

// Request modes, as recorded in logs and usage analytics.
const (
	ModeNormal        = "normal"
	ModeClarification = "clarification"
	ModeReAnalysis    = "re_analysis"
)

// NormalRequest is a first evaluation. Prior carries earlier stages' summaries
// and details for grounding; it may be nil.
type NormalRequest struct {
	Prior map[string]any
}

func (NormalRequest) Mode() string { return ModeNormal }

// ClarificationRequest asks a specialist a follow-up question about its own result.
type ClarificationRequest struct {
	Question string
	Prior    *counsel.SpecialistResult
}

func (ClarificationRequest) Mode() string { return ModeClarification }

// ReAnalysisRequest asks a specialist to re-evaluate under challenger guidance.
type ReAnalysisRequest struct {
	Guidance string
	Prior    *counsel.SpecialistResult
}

func (ReAnalysisRequest) Mode() string { return ModeReAnalysis }
