package agents

import (
	"context"
	"encoding/json"
	"sort"
	"unicode/utf8"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/schemas"
	"prodigy/pkg/templates"
)

const excerptLimit = 300

// SynthesisInput is everything the synthesizer sees in one turn.
type SynthesisInput struct {
	Brief     *counsel.Brief
	Aggregate counsel.Aggregate
	Summaries counsel.Summaries
	Details   map[counsel.SpecialistKey]map[string]any
}

// Synthesizer merges the specialists' summaries into one recommendation.
type Synthesizer struct {
	caller     *Caller
	templates  *templates.Registry
	maxQueries int
	log        *logger.Logger
}

// NewSynthesizer creates a synthesizer. maxQueries above MaxQueriesPerTurn is clamped.
func NewSynthesizer(caller *Caller, tmpl *templates.Registry, maxQueries int) *Synthesizer {
	if maxQueries < 0 || maxQueries > MaxQueriesPerTurn {
		maxQueries = MaxQueriesPerTurn
	}
	return &Synthesizer{
		caller:     caller,
		templates:  tmpl,
		maxQueries: maxQueries,
		log:        logger.Get().With("component", "synthesizer"),
	}
}

// Synthesize runs one synthesis call and, with a non-nil query, up to
// maxQueries rounds of clarification followed by a fresh synthesis each.
// A failed clarification ends the loop and keeps the last synthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput, query QueryFunc) (*counsel.Synthesis, error) {
	synth, err := s.once(ctx, in)
	if err != nil {
		return nil, err
	}
	if query == nil {
		return synth, nil
	}

	issued := 0
	for issued < s.maxQueries {
		outcome, err := query(ctx, synth, in.Summaries, s.maxQueries-issued)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.log.Warnw("Clarification failed, keeping current synthesis", "error", err)
			break
		}
		if outcome == nil {
			break
		}
		issued++

		if sum, ok := in.Summaries[outcome.Specialist]; ok && sum != nil {
			c := outcome.Clarification
			sum.Clarification = &c
		}

		next, err := s.once(ctx, in)
		if err != nil {
			return nil, err
		}
		synth = next
	}

	synth.QueriesIssued = issued
	return synth, nil
}

func (s *Synthesizer) once(ctx context.Context, in SynthesisInput) (*counsel.Synthesis, error) {
	if in.Brief == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "synthesis needs a brief")
	}

	system, err := s.templates.Render("agents/chief_of_staff", identityData{Identity: IdentityChiefOfStaff})
	if err != nil {
		return nil, errors.Wrap(err, "render synthesis system prompt")
	}

	dims := make([]map[string]any, 0, len(in.Summaries))
	for _, key := range counsel.AllSpecialists() {
		sum, ok := in.Summaries[key]
		if !ok || sum == nil {
			continue
		}
		risks := sum.TopRisks
		if len(risks) > 2 {
			risks = risks[:2]
		}
		dims = append(dims, map[string]any{
			"Key":           key,
			"Score":         sum.Score,
			"Decision":      sum.Decision,
			"Summary":       sum.Summary,
			"Risks":         risks,
			"Excerpts":      excerpts(sum, in.Details[key]),
			"Clarification": sum.Clarification,
		})
	}

	user, err := s.templates.Render("prompts/synthesize", map[string]any{
		"IdeaName":        in.Brief.IdeaName,
		"Description":     in.Brief.Description,
		"OverallScore":    in.Aggregate.Score,
		"OverallDecision": in.Aggregate.Decision,
		"Dimensions":      dims,
	})
	if err != nil {
		return nil, errors.Wrap(err, "render synthesis prompt")
	}

	payload, err := s.caller.Structured(ctx, Call{
		Agent:       "chief_of_staff",
		Mode:        ModeNormal,
		Schema:      schemas.Synthesis,
		System:      system,
		User:        user,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	return counsel.DecodeSynthesis(payload, IdentityChiefOfStaff, in.Aggregate.Score), nil
}

type excerpt struct {
	Key   string
	Value string
}

// excerpts picks at most two short detail excerpts, preferring summary extras.
func excerpts(sum *counsel.Summary, details map[string]any) []excerpt {
	source := sum.Extras
	if len(source) == 0 {
		source = details
	}

	keys := make([]string, 0, len(source))
	for k := range source {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]excerpt, 0, 2)
	for _, k := range keys {
		if len(out) == 2 {
			break
		}
		v := compact(source[k])
		if v == "" {
			continue
		}
		out = append(out, excerpt{Key: k, Value: v})
	}
	return out
}

func compact(v any) string {
	if s, ok := v.(string); ok {
		return truncate(s)
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" || string(data) == "{}" || string(data) == "[]" {
		return ""
	}
	return truncate(string(data))
}

func truncate(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
