package agents

import (
	"context"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/schemas"
	"prodigy/pkg/templates"
)

// ChallengeInput is the board state the devil's advocate reviews.
type ChallengeInput struct {
	Brief     *counsel.Brief
	Aggregate counsel.Aggregate
	Summaries counsel.Summaries
	Synthesis *counsel.Synthesis
}

// Challenger stress-tests the synthesized recommendation.
type Challenger struct {
	caller    *Caller
	templates *templates.Registry
	log       *logger.Logger
}

func NewChallenger(caller *Caller, tmpl *templates.Registry) *Challenger {
	return &Challenger{
		caller:    caller,
		templates: tmpl,
		log:       logger.Get().With("component", "challenger"),
	}
}

// Challenge makes one external call. Specialist names in the reply are
// normalized; names outside the canonical set are dropped with a warning.
func (c *Challenger) Challenge(ctx context.Context, in ChallengeInput) (*counsel.Challenge, error) {
	if in.Brief == nil || in.Synthesis == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "challenge needs a brief and a synthesis")
	}

	system, err := c.templates.Render("agents/devils_advocate", identityData{Identity: IdentityDevilsAdvocate})
	if err != nil {
		return nil, errors.Wrap(err, "render challenger system prompt")
	}

	dims := make([]map[string]any, 0, len(in.Summaries))
	for _, key := range counsel.AllSpecialists() {
		if s, ok := in.Summaries[key]; ok && s != nil {
			dims = append(dims, map[string]any{
				"Key":      key,
				"Score":    s.Score,
				"Decision": s.Decision,
				"Summary":  s.Summary,
			})
		}
	}

	user, err := c.templates.Render("prompts/challenge", map[string]any{
		"IdeaName":     in.Brief.IdeaName,
		"Dimensions":   dims,
		"OverallScore": in.Aggregate.Score,
		"Verdict":      in.Synthesis.Verdict,
		"KeyInsights":  in.Synthesis.KeyInsights,
		"NextSteps":    in.Synthesis.NextSteps,
		"MajorRisks":   in.Synthesis.MajorRisks,
	})
	if err != nil {
		return nil, errors.Wrap(err, "render challenge prompt")
	}

	payload, err := c.caller.Structured(ctx, Call{
		Agent:       "devils_advocate",
		Mode:        ModeNormal,
		Schema:      schemas.Challenge,
		System:      system,
		User:        user,
		Temperature: 0.4,
	})
	if err != nil {
		return nil, err
	}

	challenge := counsel.DecodeChallenge(payload, IdentityDevilsAdvocate)
	if len(challenge.Dropped) > 0 {
		c.log.Warnw("Dropped unknown specialist names from challenge",
			"names", challenge.Dropped, "error", errors.ErrUnknownSpecialist)
	}
	return challenge, nil
}
