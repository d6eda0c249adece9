package counsel

import (
	"encoding/json"
	"fmt"
)

// DefaultScore is used when a reply carries no usable score
const DefaultScore = 0.0

// MaxScore is the top of the 0-10 scale every score is reported on
const MaxScore = 10.0

// ClampScore pins a score to [0, MaxScore]
func ClampScore(score float64) float64 {
	return min(max(score, 0), MaxScore)
}

// SpecialistResult is the decoded output of one specialist call
type SpecialistResult struct {
	Agent       string
	Score       float64
	Summary     string
	Details     map[string]any
	Risks       []string
	Assumptions []string

	// Raw is the full reply with agent and score filled in
	Raw map[string]any
}

// DecodeSpecialistResult builds a result from a parsed payload, applying the
// documented defaults: score 0.0, empty lists, empty details, the given
// identity label when the reply omits "agent".
func DecodeSpecialistResult(p Payload, identity string) *SpecialistResult {
	score, ok := p.Float("score")
	if !ok {
		score = DefaultScore
	}
	score = ClampScore(score)

	agent := p.String("agent")
	if agent == "" {
		agent = identity
	}

	risks := p.Strings("risks")
	if len(risks) == 0 {
		risks = p.Strings("top_risks")
	}

	raw, _ := Normalize(map[string]any(p)).(map[string]any)
	raw["agent"] = agent
	raw["score"] = score

	details, _ := Normalize(p.Map("details")).(map[string]any)

	return &SpecialistResult{
		Agent:       agent,
		Score:       score,
		Summary:     p.String("summary"),
		Details:     details,
		Risks:       risks,
		Assumptions: p.Strings("assumptions"),
		Raw:         raw,
	}
}

// MarshalJSON emits the raw reply so saved reports keep every field the model returned
func (r *SpecialistResult) MarshalJSON() ([]byte, error) {
	if r.Raw != nil {
		return json.Marshal(r.Raw)
	}
	return json.Marshal(map[string]any{
		"agent":       r.Agent,
		"score":       r.Score,
		"summary":     r.Summary,
		"details":     r.Details,
		"risks":       r.Risks,
		"assumptions": r.Assumptions,
	})
}

// Clarification is a specialist's answer to one synthesizer question
type Clarification struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// Summary is the compact per-specialist record shared across the pipeline
type Summary struct {
	Specialist    SpecialistKey  `json:"specialist"`
	Score         float64        `json:"score"`
	Decision      string         `json:"decision"`
	Summary       string         `json:"summary"`
	TopRisks      []string       `json:"top_risks"`
	Interface     string         `json:"recommended_interface,omitempty"`
	Extras        map[string]any `json:"extras,omitempty"`
	Clarification *Clarification `json:"clarification,omitempty"`
}

// Clone returns a deep copy safe to hand to another goroutine
func (s *Summary) Clone() *Summary {
	if s == nil {
		return nil
	}
	c := *s
	c.TopRisks = append([]string(nil), s.TopRisks...)
	if s.Extras != nil {
		c.Extras = make(map[string]any, len(s.Extras))
		for k, v := range s.Extras {
			c.Extras[k] = v
		}
	}
	if s.Clarification != nil {
		cl := *s.Clarification
		c.Clarification = &cl
	}
	return &c
}

// Summaries maps each specialist to its current summary.
// Owned by the coordinator; other components only read or append clarifications during one turn.
type Summaries map[SpecialistKey]*Summary

// Scores returns the scores in stage order, skipping absent specialists
func (s Summaries) Scores() []float64 {
	out := make([]float64, 0, len(s))
	for _, key := range AllSpecialists() {
		if sum, ok := s[key]; ok && sum != nil {
			out = append(out, sum.Score)
		}
	}
	return out
}

// ConflictKind names the rule that produced a signal
type ConflictKind string

const (
	ConflictScoreSpread    ConflictKind = "score_spread"
	ConflictKeyword        ConflictKind = "keyword"
	ConflictInterfaceClaim ConflictKind = "interface_claim"
)

// ConflictSignal describes a detected disagreement between specialists
type ConflictSignal struct {
	Kind        ConflictKind
	Description string
	Specialists []SpecialistKey
}

func (c *ConflictSignal) String() string {
	if c == nil {
		return "no conflict"
	}
	return fmt.Sprintf("%s: %s", c.Kind, c.Description)
}

// QueryDecision is the broker's verdict on whether to ask a specialist a follow-up
type QueryDecision struct {
	ShouldQuery bool          `json:"should_query"`
	Specialist  SpecialistKey `json:"vp_name,omitempty"`
	Question    string        `json:"question,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}
