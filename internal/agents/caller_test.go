package agents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/internal/adapters/ai"
	"prodigy/internal/domain/usage"
	"prodigy/pkg/errors"
)

type recordingUsage struct {
	mu      sync.Mutex
	records []usage.Record
}

func (r *recordingUsage) RecordUsage(_ context.Context, rec usage.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func techCall() Call {
	return Call{Agent: "tech", Mode: ModeNormal, System: "sys", User: "user", Temperature: 0.3}
}

func TestCallerRetriesUnparseableOutputThenFails(t *testing.T) {
	stub := newStubProvider().Reply("tech", "this is not json")
	caller := newTestCaller(t, stub)

	payload, err := caller.Structured(context.Background(), techCall())

	require.Error(t, err)
	assert.Nil(t, payload)
	assert.Equal(t, 3, stub.Count("tech"))
	assert.True(t, errors.Is(err, errors.ErrRetriesExhausted))
	assert.True(t, errors.Is(err, errors.ErrMalformedPayload))

	var retryErr *RetryError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, "tech", retryErr.Agent)
	assert.Equal(t, 3, retryErr.Attempts)
}

func TestCallerRecoversOnSecondAttempt(t *testing.T) {
	stub := newStubProvider().On("tech", func(_ ai.ChatRequest, n int) (string, error) {
		if n == 1 {
			return "", errors.Wrap(errors.ErrTimeout, "slow upstream")
		}
		return "```json\n" + specialistReply(7, "fine", nil) + "\n```", nil
	})
	rec := &recordingUsage{}
	caller := NewCaller(CallerConfig{Models: newTestSelector(t, stub), Usage: rec, Retry: fastRetry()})

	ctx, tracker := WithCostTracker(context.Background())
	ctx = errors.WithRunID(ctx, "run-1")
	payload, err := caller.Structured(ctx, techCall())

	require.NoError(t, err)
	score, _ := payload.Float("score")
	assert.Equal(t, 7.0, score)
	assert.Equal(t, 2, stub.Count("tech"))

	req := stub.LastRequest("tech")
	assert.True(t, req.JSONMode)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.3, *req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, ai.RoleSystem, req.Messages[0].Role)

	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "tech", r.Agent)
	assert.Equal(t, uint8(2), r.Attempts)
	assert.True(t, r.Success)
	assert.Equal(t, uint32(1000), r.PromptTokens)
	assert.InDelta(t, 0.002, r.CostUSD, 1e-9)

	sum := tracker.Summary()
	assert.Equal(t, 1, sum.Calls)
	assert.Equal(t, 1, sum.Attempts)
	assert.InDelta(t, 0.002, sum.CostUSD, 1e-9)
}

func TestCallerDoesNotRetryPermanentErrors(t *testing.T) {
	stub := newStubProvider().On("tech", func(ai.ChatRequest, int) (string, error) {
		return "", &ai.PermanentError{Provider: ai.ProviderNameOpenAI, Err: errors.New("401 unauthorized")}
	})
	caller := newTestCaller(t, stub)

	_, err := caller.Structured(context.Background(), techCall())

	require.Error(t, err)
	assert.Equal(t, 1, stub.Count("tech"))
	assert.False(t, errors.Is(err, errors.ErrRetriesExhausted))
}

func TestCallerReturnsImmediatelyOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := newStubProvider().On("tech", func(ai.ChatRequest, int) (string, error) {
		cancel()
		return "", errors.Wrap(context.Canceled, "transport closed")
	})
	caller := NewCaller(CallerConfig{
		Models: newTestSelector(t, stub),
		Retry:  RetryConfig{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: time.Second},
	})

	start := time.Now()
	_, err := caller.Structured(ctx, techCall())

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, stub.Count("tech"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCallerStopsWhenRunBudgetIsSpent(t *testing.T) {
	stub := newStubProvider().Reply("tech", specialistReply(6, "ok", nil))
	guard := NewCostGuard(decimal.NewFromFloat(0.001), decimal.Zero, nil)
	caller := NewCaller(CallerConfig{Models: newTestSelector(t, stub), Guard: guard, Retry: fastRetry()})

	ctx, _ := WithCostTracker(context.Background())

	_, err := caller.Structured(ctx, techCall())
	require.NoError(t, err)

	_, err = caller.Structured(ctx, techCall())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQuotaExceeded))
	assert.Equal(t, 1, stub.Count("tech"))
}

func TestCallerTextMode(t *testing.T) {
	stub := newStubProvider().Reply(ResearchAgent, "  competitors: none  ")
	caller := newTestCaller(t, stub)

	text, err := caller.Text(context.Background(), Call{Agent: ResearchAgent, System: "s", User: "u"})

	require.NoError(t, err)
	assert.Equal(t, "  competitors: none  ", text)
	assert.False(t, stub.LastRequest(ResearchAgent).JSONMode)
}

func TestCallerSchemaMismatchIsOnlyAWarning(t *testing.T) {
	stub := newStubProvider().Reply("tech", `{"score": 42}`)
	caller := newTestCaller(t, stub)

	call := techCall()
	call.Schema = "specialist"
	payload, err := caller.Structured(context.Background(), call)

	require.NoError(t, err)
	score, _ := payload.Float("score")
	assert.Equal(t, 42.0, score)
	assert.Equal(t, 1, stub.Count("tech"))
}
