package agents

import (
	"context"
	"encoding/json"
	"strings"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/templates"
)

// Specialist evaluates a brief along one dimension.
type Specialist struct {
	profile   Profile
	caller    *Caller
	templates *templates.Registry
	log       *logger.Logger
}

// NewSpecialist creates a specialist from its profile
func NewSpecialist(profile Profile, caller *Caller, tmpl *templates.Registry) *Specialist {
	return &Specialist{
		profile:   profile,
		caller:    caller,
		templates: tmpl,
		log:       logger.Get().With("component", "specialist", "specialist", profile.Key),
	}
}

// NewSpecialists builds all five built-in specialists
func NewSpecialists(caller *Caller, tmpl *templates.Registry) map[counsel.SpecialistKey]*Specialist {
	out := make(map[counsel.SpecialistKey]*Specialist, len(profiles))
	for _, p := range Profiles() {
		out[p.Key] = NewSpecialist(p, caller, tmpl)
	}
	return out
}

func (s *Specialist) Key() counsel.SpecialistKey { return s.profile.Key }

func (s *Specialist) Profile() Profile { return s.profile }

// Evaluate makes one logical external call and decodes the reply. Missing
// score and agent fields fall back to 0.0 and the profile identity.
func (s *Specialist) Evaluate(ctx context.Context, brief *counsel.Brief, req Request) (*counsel.SpecialistResult, error) {
	system, err := s.templates.Render(s.profile.SystemTemplate, identityData{Identity: s.profile.Identity})
	if err != nil {
		return nil, errors.Wrapf(err, "render %s system prompt", s.profile.Key)
	}

	user, err := s.prompt(brief, req)
	if err != nil {
		return nil, err
	}

	s.log.Debugw("Evaluating", "mode", req.Mode())

	payload, err := s.caller.Structured(ctx, Call{
		Agent:       s.profile.Key.String(),
		Mode:        req.Mode(),
		Schema:      s.profile.Schema,
		System:      system,
		User:        user,
		Temperature: s.profile.Temperature,
	})
	if err != nil {
		return nil, err
	}

	return counsel.DecodeSpecialistResult(payload, s.profile.Identity), nil
}

func (s *Specialist) prompt(brief *counsel.Brief, req Request) (string, error) {
	briefJSON, err := indentJSON(brief)
	if err != nil {
		return "", errors.Wrap(err, "encode brief")
	}

	switch r := req.(type) {
	case NormalRequest:
		var ctxJSON string
		if len(r.Prior) > 0 {
			if ctxJSON, err = indentJSON(r.Prior); err != nil {
				return "", errors.Wrap(err, "encode prior context")
			}
		}
		return s.templates.Render("prompts/evaluate", map[string]any{
			"Brief":    briefJSON,
			"Context":  ctxJSON,
			"Identity": s.profile.Identity,
		})

	case ClarificationRequest:
		if strings.TrimSpace(r.Question) == "" {
			return "", errors.Wrap(errors.ErrInvalidInput, "clarification question is empty")
		}
		prior, err := priorJSON(r.Prior)
		if err != nil {
			return "", err
		}
		return s.templates.Render("prompts/clarify", map[string]any{
			"Brief":    briefJSON,
			"Prior":    prior,
			"Question": r.Question,
		})

	case ReAnalysisRequest:
		prior, err := priorJSON(r.Prior)
		if err != nil {
			return "", err
		}
		return s.templates.Render("prompts/reanalyze", map[string]any{
			"Brief":    briefJSON,
			"Prior":    prior,
			"Guidance": r.Guidance,
		})

	default:
		return "", errors.Wrapf(errors.ErrInvalidInput, "unsupported request type %T", req)
	}
}

// Summarize reduces a result to the summary shared with later stages.
// Deterministic: same result, same summary.
func (s *Specialist) Summarize(r *counsel.SpecialistResult) *counsel.Summary {
	risks := append([]string(nil), r.Risks...)
	if len(risks) > 3 {
		risks = risks[:3]
	}

	sum := &counsel.Summary{
		Specialist: s.profile.Key,
		Score:      r.Score,
		Decision:   s.profile.Decision(r.Score),
		Summary:    r.Summary,
		TopRisks:   risks,
		Interface:  interfaceClaim(r),
	}
	if s.profile.Extras != nil {
		sum.Extras = s.profile.Extras(r)
	}
	return sum
}

func interfaceClaim(r *counsel.SpecialistResult) string {
	return strings.ToLower(counsel.Payload(r.Details).String("recommended_interface"))
}

type identityData struct {
	Identity string
}

func priorJSON(r *counsel.SpecialistResult) (string, error) {
	if r == nil {
		return "{}", nil
	}
	out, err := indentJSON(r)
	if err != nil {
		return "", errors.Wrap(err, "encode prior result")
	}
	return out, nil
}

func indentJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
