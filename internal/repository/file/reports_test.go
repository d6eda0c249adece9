package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Invoice Nudger", "Invoice_Nudger"},
		{"ai/ml: v2.0", "ai_ml__v2_0"},
		{"keep-this_one", "keep-this_one"},
		{"Café Finder", "Café_Finder"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func sampleRun(name string) *counsel.Run {
	run := counsel.NewRun(counsel.Brief{IdeaName: name, Description: "desc"})
	run.Results[counsel.SpecialistTech] = &counsel.SpecialistResult{Agent: "Tech VP", Score: 7, Summary: "fine <ok>"}
	run.Aggregate = counsel.Aggregate{Score: 7, Decision: "Proceed with focused execution"}
	run.Usage = counsel.UsageSummary{CostUSD: 0.3}
	run.CompletedAt = time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)
	return run
}

func TestReportStore_Write(t *testing.T) {
	store := NewReportStore(filepath.Join(t.TempDir(), "reports"))

	path, err := store.Write(sampleRun("Invoice Nudger"))
	require.NoError(t, err)
	assert.Equal(t, "Invoice_Nudger_2024-01-15T14-30-45.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fine <ok>")

	var report map[string]any
	require.NoError(t, json.Unmarshal(data, &report))
	for _, key := range []string{"run_id", "project", "reports", "counsel_summary", "usage"} {
		assert.Contains(t, report, key)
	}
	assert.NotContains(t, report, "devils_advocate")
}

func TestReportStore_GetAndList(t *testing.T) {
	store := NewReportStore(t.TempDir())
	ctx := context.Background()

	first := sampleRun("first")
	second := sampleRun("second")
	second.Challenge = &counsel.Challenge{WeakestAssumption: "demand"}
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	// Make the write order visible regardless of filesystem timestamp resolution
	past := time.Now().Add(-time.Hour)
	firstPath := filepath.Join(store.Dir(), "first_2024-01-15T14-30-45.json")
	require.NoError(t, os.Chtimes(firstPath, past, past))

	rec, err := store.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", rec.IdeaName)
	assert.True(t, rec.Challenged)
	assert.InDelta(t, 0.3, rec.CostUSD, 1e-9)

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].IdeaName)
	assert.False(t, list[1].Challenged)

	_, err = store.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReportStore_MissingDir(t *testing.T) {
	store := NewReportStore(filepath.Join(t.TempDir(), "absent"))

	list, err := store.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReportStore_SameSecondRunsKeepSeparateFiles(t *testing.T) {
	store := NewReportStore(t.TempDir())
	ctx := context.Background()

	first := sampleRun("Invoice Nudger")
	second := sampleRun("Invoice Nudger")
	require.Equal(t, first.CompletedAt, second.CompletedAt)

	firstPath, err := store.Write(first)
	require.NoError(t, err)
	secondPath, err := store.Write(second)
	require.NoError(t, err)

	assert.Equal(t, "Invoice_Nudger_2024-01-15T14-30-45.json", filepath.Base(firstPath))
	assert.Equal(t, "Invoice_Nudger_2024-01-15T14-30-45_"+second.ID.String()+".json", filepath.Base(secondPath))

	for _, run := range []*counsel.Run{first, second} {
		rec, err := store.Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, rec.ID)
	}

	// Saving the first run again rewrites its own file
	first.Aggregate.Score = 8
	again, err := store.Write(first)
	require.NoError(t, err)
	assert.Equal(t, firstPath, again)

	list, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
