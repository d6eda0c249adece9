package counsel

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/internal/domain/counsel"
	"prodigy/internal/repository/file"
	"prodigy/pkg/errors"
)

type fakeRunner struct {
	err error
}

func (f fakeRunner) Run(_ context.Context, brief *counsel.Brief) (*counsel.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	run := counsel.NewRun(*brief)
	run.Aggregate = counsel.Aggregate{Score: 7, Decision: "Proceed with focused execution"}
	return run, nil
}

type memoryRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*counsel.Record
	order   []uuid.UUID
	failAll error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[uuid.UUID]*counsel.Record)}
}

func (m *memoryRepo) Save(_ context.Context, run *counsel.Run) error {
	if m.failAll != nil {
		return m.failAll
	}
	rec, err := counsel.NewRecord(run)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[run.ID] = rec
	m.order = append(m.order, run.ID)
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id uuid.UUID) (*counsel.Record, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return rec, nil
}

func (m *memoryRepo) List(_ context.Context, limit int) ([]*counsel.Record, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*counsel.Record, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[m.order[i]])
	}
	return out, nil
}

func brief() *counsel.Brief {
	return &counsel.Brief{IdeaName: "Invoice Nudger"}
}

func TestEvaluateSavesToEveryStore(t *testing.T) {
	cache, db := newMemoryRepo(), newMemoryRepo()
	reports := file.NewReportStore(t.TempDir())
	svc := NewService(fakeRunner{},
		Store{Name: "redis", Repo: cache},
		Store{Name: "postgres", Repo: db},
		Store{Name: "file", Repo: reports},
	)

	out, err := svc.Evaluate(context.Background(), brief())

	require.NoError(t, err)
	require.NoError(t, out.SaveErr)
	assert.Equal(t, []string{"redis", "postgres", "file"}, out.Saved)
	assert.Contains(t, out.ReportPath, "Invoice_Nudger_")
	assert.Contains(t, cache.records, out.Run.ID)
	assert.Contains(t, db.records, out.Run.ID)
}

func TestEvaluateSurvivesStoreFailure(t *testing.T) {
	broken := newMemoryRepo()
	broken.failAll = errors.Wrap(errors.ErrUnavailable, "connection refused")
	ok := newMemoryRepo()
	svc := NewService(fakeRunner{}, Store{Name: "postgres", Repo: broken}, Store{Name: "redis", Repo: ok})

	out, err := svc.Evaluate(context.Background(), brief())

	require.NoError(t, err)
	assert.Equal(t, []string{"redis"}, out.Saved)
	require.Error(t, out.SaveErr)
	assert.True(t, errors.Is(out.SaveErr, errors.ErrUnavailable))
	assert.Contains(t, out.SaveErr.Error(), "postgres store")
}

func TestEvaluateReturnsRunError(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(fakeRunner{err: errors.ErrRetriesExhausted}, Store{Name: "redis", Repo: repo})

	out, err := svc.Evaluate(context.Background(), brief())

	assert.Nil(t, out)
	assert.True(t, errors.Is(err, errors.ErrRetriesExhausted))
	assert.Empty(t, repo.records)
}

func TestGetFallsThroughStores(t *testing.T) {
	cache, db := newMemoryRepo(), newMemoryRepo()
	svc := NewService(fakeRunner{}, Store{Name: "redis", Repo: cache}, Store{Name: "postgres", Repo: db})

	run := counsel.NewRun(*brief())
	require.NoError(t, db.Save(context.Background(), run))

	rec, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, rec.ID)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestGetReportsBackendFailure(t *testing.T) {
	broken := newMemoryRepo()
	broken.failAll = errors.ErrUnavailable
	svc := NewService(fakeRunner{}, Store{Name: "postgres", Repo: broken})

	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestListUsesFirstHealthyStore(t *testing.T) {
	broken, db := newMemoryRepo(), newMemoryRepo()
	broken.failAll = errors.ErrUnavailable
	svc := NewService(fakeRunner{}, Store{Name: "redis", Repo: broken}, Store{Name: "postgres", Repo: db})

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Save(context.Background(), counsel.NewRun(*brief())))
	}

	records, err := svc.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	empty := NewService(fakeRunner{})
	records, err = empty.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, records)
}
