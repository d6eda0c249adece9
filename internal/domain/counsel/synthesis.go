package counsel

import "encoding/json"

// Synthesis is the founder-facing recommendation merged from all summaries
type Synthesis struct {
	Agent            string
	Headline         string
	Verdict          string
	OverallScore     float64
	DimensionSummary map[string]string
	KeyInsights      []string
	NextSteps        []string
	ValidationTasks  []string
	MajorRisks       []string
	QueriesIssued    int

	Raw map[string]any
}

// DecodeSynthesis builds a synthesis from a parsed payload. fallbackScore is
// used when the reply carries no overall score.
func DecodeSynthesis(p Payload, identity string, fallbackScore float64) *Synthesis {
	agent := p.String("agent")
	if agent == "" {
		agent = identity
	}
	score, ok := p.Float("overall_score")
	if !ok {
		score = fallbackScore
	}
	score = ClampScore(score)

	dims := make(map[string]string)
	for k, v := range p.Map("dimension_summary") {
		if s, ok := v.(string); ok {
			dims[k] = s
		}
	}

	raw, _ := Normalize(map[string]any(p)).(map[string]any)
	raw["agent"] = agent
	raw["overall_score"] = score

	return &Synthesis{
		Agent:            agent,
		Headline:         p.String("overall_headline"),
		Verdict:          p.String("overall_verdict"),
		OverallScore:     score,
		DimensionSummary: dims,
		KeyInsights:      p.Strings("key_insights"),
		NextSteps:        p.Strings("recommended_next_steps"),
		ValidationTasks:  p.Strings("validation_tasks"),
		MajorRisks:       p.Strings("major_risks_to_watch"),
		Raw:              raw,
	}
}

// MarshalJSON emits the raw reply plus the number of clarifications used
func (s *Synthesis) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Raw)+1)
	for k, v := range s.Raw {
		out[k] = v
	}
	if len(out) == 0 {
		out["agent"] = s.Agent
		out["overall_headline"] = s.Headline
		out["overall_verdict"] = s.Verdict
		out["overall_score"] = s.OverallScore
		out["dimension_summary"] = s.DimensionSummary
		out["key_insights"] = s.KeyInsights
		out["recommended_next_steps"] = s.NextSteps
		out["validation_tasks"] = s.ValidationTasks
		out["major_risks_to_watch"] = s.MajorRisks
	}
	out["queries_issued"] = s.QueriesIssued
	return json.Marshal(out)
}

// Challenge is the devil's advocate critique of a synthesis
type Challenge struct {
	Agent               string
	WeakestAssumption   string
	AffectedSpecialists []SpecialistKey
	Rationale           string
	AlternativeApproach string
	RequiresReAnalysis  bool
	SpecialistsToRerun  []SpecialistKey
	Guidance            string
	Confidence          float64

	// Dropped lists specialist names from the reply that did not normalize
	Dropped []string

	Raw map[string]any
}

// MarshalJSON emits the raw reply
func (c *Challenge) MarshalJSON() ([]byte, error) {
	if c.Raw != nil {
		return json.Marshal(c.Raw)
	}
	return json.Marshal(map[string]any{
		"agent":                                c.Agent,
		"weakest_assumption":                   c.WeakestAssumption,
		"affected_vps":                         c.AffectedSpecialists,
		"why_weak":                             c.Rationale,
		"alternative_approach":                 c.AlternativeApproach,
		"requires_re_analysis":                 c.RequiresReAnalysis,
		"vps_to_rerun":                         c.SpecialistsToRerun,
		"guidance":                             c.Guidance,
		"confidence_in_current_recommendation": c.Confidence,
	})
}

// DecodeChallenge builds a challenge from a parsed payload. Specialist names are
// normalized to canonical keys; names that do not normalize are collected in Dropped.
func DecodeChallenge(p Payload, identity string) *Challenge {
	agent := p.String("agent")
	if agent == "" {
		agent = identity
	}

	c := &Challenge{
		Agent:               agent,
		WeakestAssumption:   p.String("weakest_assumption"),
		Rationale:           p.String("why_weak"),
		AlternativeApproach: p.String("alternative_approach"),
		RequiresReAnalysis:  p.Bool("requires_re_analysis"),
		Guidance:            p.String("guidance"),
	}
	c.Confidence, _ = p.Float("confidence_in_current_recommendation")
	c.AffectedSpecialists = c.normalizeNames(p.Strings("affected_vps"))
	c.SpecialistsToRerun = c.normalizeNames(p.Strings("vps_to_rerun"))

	raw, _ := Normalize(map[string]any(p)).(map[string]any)
	raw["agent"] = agent
	c.Raw = raw
	return c
}

func (c *Challenge) normalizeNames(names []string) []SpecialistKey {
	seen := make(map[SpecialistKey]struct{}, len(names))
	out := make([]SpecialistKey, 0, len(names))
	for _, name := range names {
		key, ok := NormalizeSpecialist(name)
		if !ok {
			c.Dropped = append(c.Dropped, name)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
