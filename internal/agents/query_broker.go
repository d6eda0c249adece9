package agents

import (
	"context"

	"prodigy/internal/domain/counsel"
	"prodigy/internal/metrics"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/schemas"
	"prodigy/pkg/templates"
)

// MaxQueriesPerTurn bounds clarification queries within one synthesizer turn.
const MaxQueriesPerTurn = 2

// QueryOutcome is one answered clarification.
type QueryOutcome struct {
	Specialist    counsel.SpecialistKey
	Clarification counsel.Clarification
	Result        *counsel.SpecialistResult
}

// QueryFunc decides whether to ask a specialist a follow-up and asks it.
// It returns (nil, nil) when no query is warranted and an error when the
// clarification call itself failed.
type QueryFunc func(ctx context.Context, synth *counsel.Synthesis, summaries counsel.Summaries, remaining int) (*QueryOutcome, error)

// QueryBroker mediates follow-up questions from the synthesizer to specialists
// for one run.
type QueryBroker struct {
	caller      *Caller
	templates   *templates.Registry
	specialists map[counsel.SpecialistKey]*Specialist
	brief       *counsel.Brief
	results     map[counsel.SpecialistKey]*counsel.SpecialistResult
	log         *logger.Logger
}

// NewQueryBroker creates a broker over the run's brief and current results.
// results is read only.
func NewQueryBroker(
	caller *Caller,
	tmpl *templates.Registry,
	specialists map[counsel.SpecialistKey]*Specialist,
	brief *counsel.Brief,
	results map[counsel.SpecialistKey]*counsel.SpecialistResult,
) *QueryBroker {
	return &QueryBroker{
		caller:      caller,
		templates:   tmpl,
		specialists: specialists,
		brief:       brief,
		results:     results,
		log:         logger.Get().With("component", "query_broker"),
	}
}

// MaybeQuery decides whether one specialist should be asked a follow-up.
// Without a conflict signal no external call is made. Any failure of the
// decision call abstains.
func (b *QueryBroker) MaybeQuery(ctx context.Context, synth *counsel.Synthesis, summaries counsel.Summaries, remaining int) counsel.QueryDecision {
	none := counsel.QueryDecision{ShouldQuery: false}

	signal := DetectConflict(summaries)
	if signal == nil {
		return none
	}
	metrics.ConflictsDetected.WithLabelValues(string(signal.Kind)).Inc()
	b.log.Infow("Conflict detected", "kind", signal.Kind, "description", signal.Description)

	system, err := b.templates.Render("agents/query_broker", identityData{Identity: IdentityQueryBroker})
	if err != nil {
		b.log.Warnw("Query decision skipped", "error", err)
		return none
	}

	verdict := ""
	if synth != nil {
		verdict = synth.Verdict
	}
	dims := make([]map[string]any, 0, len(summaries))
	for _, key := range counsel.AllSpecialists() {
		if s, ok := summaries[key]; ok && s != nil {
			dims = append(dims, map[string]any{"Key": key, "Score": s.Score, "Summary": s.Summary})
		}
	}
	user, err := b.templates.Render("prompts/query_decision", map[string]any{
		"Conflict":   signal.String(),
		"Verdict":    verdict,
		"Dimensions": dims,
		"Remaining":  remaining,
	})
	if err != nil {
		b.log.Warnw("Query decision skipped", "error", err)
		return none
	}

	payload, err := b.caller.Structured(ctx, Call{
		Agent:       "query_broker",
		Mode:        "decision",
		Schema:      schemas.QueryDecision,
		System:      system,
		User:        user,
		Temperature: 0.2,
	})
	if err != nil {
		b.log.Warnw("Query decision failed, abstaining", "error", err)
		return none
	}
	if !payload.Bool("should_query") {
		return none
	}

	name := payload.String("vp_name")
	key, ok := counsel.NormalizeSpecialist(name)
	if _, known := b.specialists[key]; !ok || !known {
		b.log.Warnw("Query decision names an unknown specialist, abstaining",
			"vp_name", name, "error", errors.ErrUnknownSpecialist)
		return none
	}
	question := payload.String("question")
	if question == "" {
		b.log.Warnw("Query decision has no question, abstaining", "vp_name", name)
		return none
	}

	return counsel.QueryDecision{
		ShouldQuery: true,
		Specialist:  key,
		Question:    question,
		Reason:      payload.String("reason"),
	}
}

// ExecuteQuery asks a specialist the question in clarification mode and
// returns its result verbatim.
func (b *QueryBroker) ExecuteQuery(ctx context.Context, key counsel.SpecialistKey, question string) (*counsel.SpecialistResult, error) {
	spec, ok := b.specialists[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownSpecialist, "%s", key)
	}
	return spec.Evaluate(ctx, b.brief, ClarificationRequest{
		Question: question,
		Prior:    b.results[key],
	})
}

// Query runs one decide-then-ask step. It satisfies QueryFunc.
func (b *QueryBroker) Query(ctx context.Context, synth *counsel.Synthesis, summaries counsel.Summaries, remaining int) (*QueryOutcome, error) {
	decision := b.MaybeQuery(ctx, synth, summaries, remaining)
	if !decision.ShouldQuery {
		return nil, nil
	}

	b.log.Infow("Asking specialist", "specialist", decision.Specialist, "question", decision.Question)
	result, err := b.ExecuteQuery(ctx, decision.Specialist, decision.Question)
	metrics.RecordQuery(decision.Specialist.String(), err)
	if err != nil {
		return nil, errors.Wrapf(err, "clarification from %s", decision.Specialist)
	}

	return &QueryOutcome{
		Specialist: decision.Specialist,
		Clarification: counsel.Clarification{
			Question: decision.Question,
			Answer:   result.Summary,
			Score:    result.Score,
		},
		Result: result,
	}, nil
}
