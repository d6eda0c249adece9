package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/pkg/errors"
)

type sink struct {
	mu      sync.Mutex
	batches [][]string
}

func (s *sink) flush(_ context.Context, batch []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *sink) rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	s := &sink{}
	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    s.flush,
		TableName:    "counsel_ai_usage",
		MaxBatchSize: 3,
		MaxAge:       time.Minute,
	})
	ctx := context.Background()

	require.NoError(t, bw.Add(ctx, "market"))
	require.NoError(t, bw.Add(ctx, "tech"))
	assert.Equal(t, 0, s.count())

	require.NoError(t, bw.Add(ctx, "revenue"))
	assert.Equal(t, 1, s.count())
	assert.Equal(t, []string{"market", "tech", "revenue"}, s.batches[0])
	assert.Equal(t, 0, bw.BufferSize())
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	s := &sink{}
	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    s.flush,
		MaxBatchSize: 100,
		MaxAge:       20 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bw.Start(ctx)

	require.NoError(t, bw.Add(ctx, "ops"))

	assert.Eventually(t, func() bool { return s.rows() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bw.Stop(context.Background()))
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	s := &sink{}
	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    s.flush,
		MaxBatchSize: 100,
		MaxAge:       time.Hour,
	})
	bw.Start(context.Background())

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, bw.Add(context.Background(), v))
	}
	require.NoError(t, bw.Stop(context.Background()))

	assert.Equal(t, 4, s.rows())
	assert.Equal(t, 0, bw.BufferSize())
}

func TestBatchWriter_StopWithoutStart(t *testing.T) {
	s := &sink{}
	bw := NewBatchWriter(BatchWriterConfig[string]{FlushFunc: s.flush})

	require.NoError(t, bw.Add(context.Background(), "x"))
	require.NoError(t, bw.Stop(context.Background()))
	assert.Equal(t, 1, s.rows())
}

func TestBatchWriter_FlushError(t *testing.T) {
	boom := errors.New("clickhouse down")
	bw := NewBatchWriter(BatchWriterConfig[int]{
		FlushFunc:    func(context.Context, []int) error { return boom },
		MaxBatchSize: 1,
	})

	err := bw.Add(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestBatchWriter_ConcurrentAdds(t *testing.T) {
	s := &sink{}
	bw := NewBatchWriter(BatchWriterConfig[string]{
		FlushFunc:    s.flush,
		MaxBatchSize: 7,
		MaxAge:       time.Hour,
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = bw.Add(ctx, "row")
			}
		}()
	}
	wg.Wait()
	require.NoError(t, bw.Flush(ctx))

	assert.Equal(t, 100, s.rows())
}
