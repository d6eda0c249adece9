package agents

import (
	"context"
	"strings"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/templates"
)

// ResearchAgent is the model selector key of the market researcher.
const ResearchAgent = "research"

// Researcher gathers plain-text market notes before the market stage.
type Researcher struct {
	caller    *Caller
	templates *templates.Registry
	log       *logger.Logger
}

func NewResearcher(caller *Caller, tmpl *templates.Registry) *Researcher {
	return &Researcher{
		caller:    caller,
		templates: tmpl,
		log:       logger.Get().With("component", "researcher"),
	}
}

// Research returns the researcher's notes for the brief.
func (r *Researcher) Research(ctx context.Context, brief *counsel.Brief) (string, error) {
	system, err := r.templates.Render("agents/research", identityData{Identity: IdentityResearcher})
	if err != nil {
		return "", errors.Wrap(err, "render research system prompt")
	}
	user, err := r.templates.Render("prompts/research", map[string]any{
		"IdeaName":    brief.IdeaName,
		"Description": brief.Description,
		"TargetUser":  brief.TargetUser,
	})
	if err != nil {
		return "", errors.Wrap(err, "render research prompt")
	}

	notes, err := r.caller.Text(ctx, Call{
		Agent:       ResearchAgent,
		Mode:        ModeNormal,
		System:      system,
		User:        user,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(notes), nil
}
