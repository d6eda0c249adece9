package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAgentCall(t *testing.T) {
	before := testutil.ToFloat64(AgentCalls.WithLabelValues("VP of Engineering", "gpt-4o", "success"))
	RecordAgentCall("VP of Engineering", "gpt-4o", time.Second, 0.01, 100, 50, nil)
	RecordAgentCall("VP of Engineering", "gpt-4o", time.Second, 0, 0, 0, errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(AgentCalls.WithLabelValues("VP of Engineering", "gpt-4o", "success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(AgentCalls.WithLabelValues("VP of Engineering", "gpt-4o", "error")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(AgentTokens.WithLabelValues("VP of Engineering", "gpt-4o", "prompt")), 100.0)
}

func TestRecordRunStatus(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("budget_exceeded"))
	RecordRun(time.Minute, 0, errors.New("over budget"), true)
	assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues("budget_exceeded")))
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}
