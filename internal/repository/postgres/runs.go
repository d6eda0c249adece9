package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"prodigy/internal/domain/counsel"
	"prodigy/internal/metrics"
	"prodigy/pkg/errors"
)

// Compile-time check
var _ counsel.Repository = (*RunRepository)(nil)

// RunRepository stores finished runs in counsel_runs, the full report as JSONB
type RunRepository struct {
	db DBTX
}

func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

// Save upserts the run by id
func (r *RunRepository) Save(ctx context.Context, run *counsel.Run) error {
	rec, err := counsel.NewRecord(run)
	if err != nil {
		return errors.Wrapf(err, "encode run %s", run.ID)
	}

	query := `
		INSERT INTO counsel_runs (
			id, idea_name, overall_score, overall_decision,
			challenged, cost_usd, report, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			overall_decision = EXCLUDED.overall_decision,
			challenged = EXCLUDED.challenged,
			cost_usd = EXCLUDED.cost_usd,
			report = EXCLUDED.report`

	start := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.IdeaName, rec.OverallScore, rec.OverallDecision,
		rec.Challenged, rec.CostUSD, []byte(rec.Report), rec.CreatedAt,
	)
	metrics.RecordDBQuery("postgres", "save_run", time.Since(start), err)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", run.ID)
	}
	return nil
}

// Get returns one stored run or ErrNotFound
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*counsel.Record, error) {
	var rec counsel.Record

	query := `SELECT id, idea_name, overall_score, overall_decision, challenged, cost_usd, report, created_at
		FROM counsel_runs WHERE id = $1`

	start := time.Now()
	err := r.db.GetContext(ctx, &rec, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("postgres", "get_run", time.Since(start), nil)
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
	}
	metrics.RecordDBQuery("postgres", "get_run", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrapf(err, "get run %s", id)
	}
	return &rec, nil
}

// List returns the most recent runs, newest first
func (r *RunRepository) List(ctx context.Context, limit int) ([]*counsel.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []*counsel.Record
	query := `
		SELECT id, idea_name, overall_score, overall_decision, challenged, cost_usd, report, created_at
		FROM counsel_runs
		ORDER BY created_at DESC
		LIMIT $1`

	start := time.Now()
	err := r.db.SelectContext(ctx, &records, query, limit)
	metrics.RecordDBQuery("postgres", "list_runs", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	return records, nil
}
