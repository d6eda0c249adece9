package counsel

import (
	"context"

	"github.com/google/uuid"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
)

// Runner evaluates one brief end to end
type Runner interface {
	Run(ctx context.Context, brief *counsel.Brief) (*counsel.Run, error)
}

// Store is a named run repository. Reads try stores in the order given.
type Store struct {
	Name string
	Repo counsel.Repository
}

// reportWriter is implemented by stores that can tell where a report landed
type reportWriter interface {
	Write(run *counsel.Run) (string, error)
}

// Outcome is a finished run plus where it was persisted
type Outcome struct {
	Run        *counsel.Run
	ReportPath string
	Saved      []string
	// SaveErr collects per-store failures; the run itself still succeeded
	SaveErr error
}

// Service runs briefs through the pipeline and persists every finished run
type Service struct {
	runner Runner
	stores []Store
	log    *logger.Logger
}

func NewService(runner Runner, stores ...Store) *Service {
	return &Service{
		runner: runner,
		stores: stores,
		log:    logger.Get().With("component", "counsel_service"),
	}
}

// Evaluate runs the brief and saves the result to every store. A store
// failure is logged and reported in Outcome.SaveErr without failing the run.
func (s *Service) Evaluate(ctx context.Context, brief *counsel.Brief) (*Outcome, error) {
	run, err := s.runner.Run(ctx, brief)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Run: run}
	saveErrs := &errors.MultiError{}

	// The run is done; persisting it should survive a client that went away
	saveCtx := context.WithoutCancel(ctx)
	for _, st := range s.stores {
		var err error
		if w, ok := st.Repo.(reportWriter); ok {
			out.ReportPath, err = w.Write(run)
		} else {
			err = st.Repo.Save(saveCtx, run)
		}
		if err != nil {
			s.log.Warnw("Failed to persist run", "store", st.Name, "run_id", run.ID, "error", err)
			saveErrs.Add(errors.Wrapf(err, "%s store", st.Name))
			continue
		}
		out.Saved = append(out.Saved, st.Name)
	}
	out.SaveErr = saveErrs.ToError()

	return out, nil
}

// Get returns the first stored copy of a run
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*counsel.Record, error) {
	var lastErr error
	for _, st := range s.stores {
		rec, err := st.Repo.Get(ctx, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			s.log.Warnw("Run lookup failed", "store", st.Name, "run_id", id, "error", err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
}

// List returns recent runs from the first store that answers
func (s *Service) List(ctx context.Context, limit int) ([]*counsel.Record, error) {
	var lastErr error
	for _, st := range s.stores {
		records, err := st.Repo.List(ctx, limit)
		if err == nil {
			return records, nil
		}
		s.log.Warnw("Run listing failed", "store", st.Name, "error", err)
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return []*counsel.Record{}, nil
}
