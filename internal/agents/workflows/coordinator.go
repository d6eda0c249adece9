package workflows

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"prodigy/internal/agents"
	"prodigy/internal/domain/counsel"
	"prodigy/internal/events"
	"prodigy/internal/metrics"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/templates"
)

// Config wires a Coordinator. Caller is required.
type Config struct {
	Caller    *agents.Caller
	Templates *templates.Registry

	// Researcher, when set, runs before the market stage. Its failure is not fatal.
	Researcher *agents.Researcher
	Publisher  events.Publisher

	// MaxQueries bounds clarification queries in the first synthesis turn; 0 disables them.
	MaxQueries int
	RunTimeout time.Duration
}

// Coordinator drives one brief through the counsel pipeline:
//
//	Market -> Product -> {Tech || Revenue} -> Ops -> Aggregate -> Synthesize (with queries)
//	  -> [Challenge -> [Re-run named specialists -> Re-aggregate -> Re-synthesize (no queries)]]
//
// Re-analysis happens at most once per run.
type Coordinator struct {
	caller      *agents.Caller
	templates   *templates.Registry
	specialists map[counsel.SpecialistKey]*agents.Specialist
	synthesizer *agents.Synthesizer
	challenger  *agents.Challenger
	researcher  *agents.Researcher
	publisher   events.Publisher
	runTimeout  time.Duration
	log         *logger.Logger
}

// New creates a coordinator
func New(cfg Config) (*Coordinator, error) {
	if cfg.Caller == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "coordinator needs a caller")
	}
	if cfg.Templates == nil {
		cfg.Templates = templates.Get()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}

	return &Coordinator{
		caller:      cfg.Caller,
		templates:   cfg.Templates,
		specialists: agents.NewSpecialists(cfg.Caller, cfg.Templates),
		synthesizer: agents.NewSynthesizer(cfg.Caller, cfg.Templates, cfg.MaxQueries),
		challenger:  agents.NewChallenger(cfg.Caller, cfg.Templates),
		researcher:  cfg.Researcher,
		publisher:   cfg.Publisher,
		runTimeout:  cfg.RunTimeout,
		log:         logger.Get().With("component", "coordinator"),
	}, nil
}

// Run evaluates the brief end to end. Any fatal stage error aborts the run
// and no partial run is returned.
func (c *Coordinator) Run(ctx context.Context, brief *counsel.Brief) (*counsel.Run, error) {
	if brief == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "brief is required")
	}
	if err := brief.Validate(); err != nil {
		return nil, err
	}

	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	run := counsel.NewRun(*brief)
	ctx = errors.WithRunID(ctx, run.ID.String())
	ctx, tracker := agents.WithCostTracker(ctx)
	log := c.log.With("run_id", run.ID, "idea", brief.IdeaName)

	log.Infow("Counsel run started")
	err := c.execute(ctx, run, log)

	run.Usage = tracker.Summary()
	run.CompletedAt = time.Now().UTC()
	metrics.RecordRun(run.Duration(), run.Aggregate.Score, err, errors.Is(err, errors.ErrQuotaExceeded))
	c.publishRun(ctx, run, err)

	if err != nil {
		log.ErrorWithContext(ctx, err, map[string]string{"component": "coordinator", "idea": brief.IdeaName})
		return nil, err
	}

	log.Infow("Counsel run completed",
		"score", run.Aggregate.Score,
		"decision", run.Aggregate.Decision,
		"challenged", run.Challenged(),
		"re_analyzed", run.ReAnalyzed,
		"cost_usd", run.Usage.CostUSD,
		"duration", run.Duration(),
	)
	return run, nil
}

func (c *Coordinator) execute(ctx context.Context, run *counsel.Run, log *logger.Logger) error {
	if err := c.research(ctx, run, log); err != nil {
		return err
	}
	if err := c.evaluateSpecialists(ctx, run); err != nil {
		return err
	}

	start := time.Now()
	run.Aggregate = agents.AggregateScores(run.Summaries)
	c.stage(ctx, run, events.StageAggregate, start, run.Aggregate.Decision)

	start = time.Now()
	broker := agents.NewQueryBroker(c.caller, c.templates, c.specialists, &run.Brief, run.Results)
	synth, err := c.synthesizer.Synthesize(ctx, c.synthesisInput(run), broker.Query)
	if err != nil {
		return errors.Wrap(err, "synthesis")
	}
	run.Synthesis = synth
	run.QueriesIssued = synth.QueriesIssued
	c.stage(ctx, run, events.StageSynthesis, start, synth.Verdict)

	if !agents.ShouldChallenge(run.Aggregate, synth) {
		metrics.ChallengerTriggers.WithLabelValues("skipped").Inc()
		return nil
	}

	start = time.Now()
	challenge, err := c.challenger.Challenge(ctx, agents.ChallengeInput{
		Brief:     &run.Brief,
		Aggregate: run.Aggregate,
		Summaries: run.Summaries,
		Synthesis: synth,
	})
	if err != nil {
		return errors.Wrap(err, "challenge")
	}
	run.Challenge = challenge
	c.stage(ctx, run, events.StageChallenge, start, challenge.WeakestAssumption)

	// An empty rerun list still re-synthesizes once with the challenger's guidance
	if !challenge.RequiresReAnalysis {
		metrics.ChallengerTriggers.WithLabelValues("accepted").Inc()
		return nil
	}
	metrics.ChallengerTriggers.WithLabelValues("re_analysis").Inc()

	return c.reanalyze(ctx, run, challenge)
}

func (c *Coordinator) research(ctx context.Context, run *counsel.Run, log *logger.Logger) error {
	if c.researcher == nil {
		return nil
	}

	start := time.Now()
	notes, err := c.researcher.Research(ctx, &run.Brief)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, errors.ErrQuotaExceeded) {
			return errors.Wrap(err, "market research")
		}
		log.Warnw("Market research failed, continuing without it", "error", err)
		return nil
	}
	run.Research = notes
	c.stage(ctx, run, events.StageResearch, start, "")
	return nil
}

func (c *Coordinator) evaluateSpecialists(ctx context.Context, run *counsel.Run) error {
	market := map[string]any{}
	if run.Research != "" {
		market["market_research"] = run.Research
	}
	if err := c.runStage(ctx, run, events.StageMarket, counsel.SpecialistMarket, market); err != nil {
		return err
	}

	product := c.priorContext(run, []counsel.SpecialistKey{counsel.SpecialistMarket}, counsel.SpecialistMarket)
	if err := c.runStage(ctx, run, events.StageProduct, counsel.SpecialistProduct, product); err != nil {
		return err
	}

	if err := c.runTechAndRevenue(ctx, run); err != nil {
		return err
	}

	ops := c.priorContext(run,
		[]counsel.SpecialistKey{counsel.SpecialistMarket, counsel.SpecialistProduct, counsel.SpecialistTech, counsel.SpecialistRevenue},
		counsel.SpecialistTech, counsel.SpecialistRevenue,
	)
	return c.runStage(ctx, run, events.StageOps, counsel.SpecialistOps, ops)
}

func (c *Coordinator) runStage(ctx context.Context, run *counsel.Run, stage string, key counsel.SpecialistKey, prior map[string]any) error {
	start := time.Now()
	res, err := c.specialists[key].Evaluate(ctx, &run.Brief, agents.NormalRequest{Prior: prior})
	if err != nil {
		return errors.Wrapf(err, "%s stage", key)
	}
	c.store(run, key, res)
	c.stage(ctx, run, stage, start, "")
	return nil
}

// runTechAndRevenue evaluates both concurrently; the first failure cancels the other.
func (c *Coordinator) runTechAndRevenue(ctx context.Context, run *counsel.Run) error {
	start := time.Now()
	prior := c.priorContext(run,
		[]counsel.SpecialistKey{counsel.SpecialistMarket, counsel.SpecialistProduct},
		counsel.SpecialistMarket, counsel.SpecialistProduct,
	)

	var tech, revenue *counsel.SpecialistResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := c.specialists[counsel.SpecialistTech].Evaluate(gctx, &run.Brief, agents.NormalRequest{Prior: prior})
		if err != nil {
			return errors.Wrap(err, "tech stage")
		}
		tech = res
		return nil
	})
	g.Go(func() error {
		res, err := c.specialists[counsel.SpecialistRevenue].Evaluate(gctx, &run.Brief, agents.NormalRequest{Prior: prior})
		if err != nil {
			return errors.Wrap(err, "revenue stage")
		}
		revenue = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.store(run, counsel.SpecialistTech, tech)
	c.store(run, counsel.SpecialistRevenue, revenue)
	c.stage(ctx, run, events.StageTechRevenue, start, "")
	return nil
}

// reanalyze re-runs only the named specialists, then re-aggregates and
// re-synthesizes without queries. Everyone else's result and summary is untouched.
func (c *Coordinator) reanalyze(ctx context.Context, run *counsel.Run, challenge *counsel.Challenge) error {
	guidance := challenge.Guidance
	if guidance == "" {
		guidance = challenge.WeakestAssumption
	}

	start := time.Now()
	rerun := make([]counsel.SpecialistKey, 0, len(challenge.SpecialistsToRerun))
	for _, key := range counsel.AllSpecialists() {
		if !slices.Contains(challenge.SpecialistsToRerun, key) {
			continue
		}
		spec, ok := c.specialists[key]
		if !ok {
			continue
		}

		res, err := spec.Evaluate(ctx, &run.Brief, agents.ReAnalysisRequest{
			Guidance: guidance,
			Prior:    run.Results[key],
		})
		if err != nil {
			return errors.Wrapf(err, "%s re-analysis", key)
		}
		c.store(run, key, res)
		rerun = append(rerun, key)
		metrics.ReAnalyses.WithLabelValues(key.String()).Inc()
	}
	run.ReAnalyzed = rerun
	c.stage(ctx, run, events.StageReAnalysis, start, guidance)

	start = time.Now()
	run.Aggregate = agents.AggregateScores(run.Summaries)
	synth, err := c.synthesizer.Synthesize(ctx, c.synthesisInput(run), nil)
	if err != nil {
		return errors.Wrap(err, "re-synthesis")
	}
	run.Synthesis = synth
	c.stage(ctx, run, events.StageResynthesis, start, synth.Verdict)
	return nil
}

func (c *Coordinator) store(run *counsel.Run, key counsel.SpecialistKey, res *counsel.SpecialistResult) {
	run.Results[key] = res
	run.Summaries[key] = c.specialists[key].Summarize(res)
}

// priorContext builds the grounding passed to a later stage: the summaries
// of withSummary plus the full details of withDetails.
func (c *Coordinator) priorContext(run *counsel.Run, withSummary []counsel.SpecialistKey, withDetails ...counsel.SpecialistKey) map[string]any {
	prior := make(map[string]any, len(withSummary))
	for _, key := range withSummary {
		entry := map[string]any{"summary": run.Summaries[key].Clone()}
		if slices.Contains(withDetails, key) {
			if res := run.Results[key]; res != nil {
				entry["details"] = res.Details
			}
		}
		prior[key.String()] = entry
	}
	return prior
}

func (c *Coordinator) synthesisInput(run *counsel.Run) agents.SynthesisInput {
	details := make(map[counsel.SpecialistKey]map[string]any, len(run.Results))
	for key, res := range run.Results {
		details[key] = res.Details
	}
	return agents.SynthesisInput{
		Brief:     &run.Brief,
		Aggregate: run.Aggregate,
		Summaries: run.Summaries,
		Details:   details,
	}
}

func (c *Coordinator) stage(ctx context.Context, run *counsel.Run, stage string, start time.Time, note string) {
	elapsed := time.Since(start)
	metrics.RecordStage(stage, elapsed)

	scores := make(map[string]float64, len(run.Summaries))
	for key, s := range run.Summaries {
		scores[key.String()] = s.Score
	}
	if stage == events.StageAggregate || stage == events.StageResynthesis {
		scores["overall"] = run.Aggregate.Score
	}

	event := events.StageEvent{
		BaseEvent:  events.NewBaseEvent(events.TypeStageCompleted, "coordinator", run.ID),
		Stage:      stage,
		DurationMS: elapsed.Milliseconds(),
		Scores:     scores,
		Note:       note,
	}
	if err := c.publisher.PublishStage(ctx, event); err != nil {
		c.log.Warnw("Failed to publish stage event", "stage", stage, "run_id", run.ID, "error", err)
	}
	c.log.Debugw("Stage completed", "run_id", run.ID, "stage", stage, "duration", elapsed)
}

func (c *Coordinator) publishRun(ctx context.Context, run *counsel.Run, runErr error) {
	eventType := events.TypeRunCompleted
	errText := ""
	if runErr != nil {
		eventType = events.TypeRunFailed
		errText = runErr.Error()
	}

	reanalyzed := make([]string, 0, len(run.ReAnalyzed))
	for _, key := range run.ReAnalyzed {
		reanalyzed = append(reanalyzed, key.String())
	}

	event := events.RunEvent{
		BaseEvent:       events.NewBaseEvent(eventType, "coordinator", run.ID),
		IdeaName:        run.Brief.IdeaName,
		OverallScore:    run.Aggregate.Score,
		OverallDecision: run.Aggregate.Decision,
		Challenged:      run.Challenged(),
		ReAnalyzed:      reanalyzed,
		QueriesIssued:   run.QueriesIssued,
		CostUSD:         run.Usage.CostUSD,
		DurationMS:      run.Duration().Milliseconds(),
		Error:           errText,
	}

	// The run context may already be cancelled or expired
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishRun(pubCtx, event); err != nil {
		c.log.Warnw("Failed to publish run event", "run_id", run.ID, "error", err)
	}
}
