package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/internal/domain/counsel"
	"prodigy/internal/testsupport"
	"prodigy/pkg/errors"
)

func finishedRun(name string, score float64, completed time.Time) *counsel.Run {
	run := counsel.NewRun(counsel.Brief{IdeaName: name, Description: "test idea"})
	run.Results[counsel.SpecialistMarket] = &counsel.SpecialistResult{
		Agent:   counsel.SpecialistMarket,
		Score:   score,
		Summary: "market looks fine",
	}
	run.Aggregate = counsel.Aggregate{Score: score, Decision: "Proceed with caution", Spread: 0}
	run.Synthesis = &counsel.Synthesis{Verdict: "Validate first"}
	run.Usage = counsel.UsageSummary{Calls: 6, CostUSD: 0.12}
	run.CompletedAt = completed
	return run
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	pg := testsupport.NewTestPostgres(t)
	repo := NewRunRepository(pg.Tx())
	ctx := context.Background()

	run := finishedRun("Invoice Nudger", 6.4, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, repo.Save(ctx, run))

	rec, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Invoice Nudger", rec.IdeaName)
	assert.Equal(t, 6.4, rec.OverallScore)
	assert.False(t, rec.Challenged)
	assert.InDelta(t, 0.12, rec.CostUSD, 1e-9)

	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Report, &report))
	assert.Equal(t, run.ID.String(), report["run_id"])
	verdict, ok := counsel.Lookup(report, "counsel_summary", "chief_of_staff", "overall_verdict")
	require.True(t, ok)
	assert.Equal(t, "Validate first", verdict)

	// Saving again updates in place
	run.Aggregate.Score = 7.1
	run.Challenge = &counsel.Challenge{WeakestAssumption: "pricing"}
	require.NoError(t, repo.Save(ctx, run))

	rec, err = repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.1, rec.OverallScore)
	assert.True(t, rec.Challenged)
}

func TestRunRepository_GetMissing(t *testing.T) {
	pg := testsupport.NewTestPostgres(t)
	repo := NewRunRepository(pg.Tx())

	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	pg := testsupport.NewTestPostgres(t)
	repo := NewRunRepository(pg.Tx())
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Save(ctx, finishedRun(name, 5, base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].IdeaName)
	assert.Equal(t, "second", records[1].IdeaName)
}
