package agents

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
)

func TestSynthesizeWithoutQueryMakesOneCall(t *testing.T) {
	stub := newStubProvider().Reply("chief_of_staff", synthesisReply(8.1, "Proceed"))
	caller := newTestCaller(t, stub)
	s := NewSynthesizer(caller, testTemplates(), MaxQueriesPerTurn)

	sums := fiveScores([5]float64{9, 3, 8, 7, 6})
	sums[counsel.SpecialistRevenue].Extras = map[string]any{
		"monetization_summary": "Subscription",
		"suggested_pricing":    map[string]any{"model": "tiered"},
		"key_growth_channels":  map[string]any{"primary": []string{"SEO"}},
	}
	in := SynthesisInput{
		Brief:     testBrief(),
		Aggregate: AggregateScores(sums),
		Summaries: sums,
		Details: map[counsel.SpecialistKey]map[string]any{
			counsel.SpecialistMarket: {"tam": "narrow", "competition": "low", "trend": "up"},
		},
	}

	synth, err := s.Synthesize(context.Background(), in, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, stub.Count("chief_of_staff"))
	assert.Equal(t, "Chief of Staff (Prodigy Counsel)", synth.Agent)
	assert.Equal(t, "Proceed", synth.Verdict)
	assert.Equal(t, 8.1, synth.OverallScore)

	prompt := stub.LastRequest("chief_of_staff").Messages[1].Content
	assert.Contains(t, prompt, "PROJECT: Invoice Nudger")
	assert.Contains(t, prompt, "BOARD AGGREGATE: 6.60/10")
	assert.Contains(t, prompt, "competition: low")
	assert.NotContains(t, prompt, "trend: up")
	assert.Contains(t, prompt, "monetization_summary: Subscription")
	assert.NotContains(t, prompt, "suggested_pricing")
}

func TestSynthesizeFallsBackToAggregateScore(t *testing.T) {
	stub := newStubProvider().Reply("chief_of_staff", `{"overall_verdict": "ok"}`)
	s := NewSynthesizer(newTestCaller(t, stub), testTemplates(), MaxQueriesPerTurn)

	synth, err := s.Synthesize(context.Background(), SynthesisInput{
		Brief:     testBrief(),
		Aggregate: counsel.Aggregate{Score: 6.25},
		Summaries: fiveScores([5]float64{6, 6, 6, 6, 7.25}),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 6.25, synth.OverallScore)
}

func TestSynthesizeFailsAfterRetries(t *testing.T) {
	stub := newStubProvider().Reply("chief_of_staff", "")
	s := NewSynthesizer(newTestCaller(t, stub), testTemplates(), MaxQueriesPerTurn)

	_, err := s.Synthesize(context.Background(), SynthesisInput{Brief: testBrief(), Summaries: fiveScores([5]float64{5, 5, 5, 5, 5})}, nil)

	assert.True(t, errors.Is(err, errors.ErrRetriesExhausted))
	assert.Equal(t, 3, stub.Count("chief_of_staff"))
}

func TestNewSynthesizerClampsQueryBudget(t *testing.T) {
	assert.Equal(t, MaxQueriesPerTurn, NewSynthesizer(nil, nil, 10).maxQueries)
	assert.Equal(t, 1, NewSynthesizer(nil, nil, 1).maxQueries)
	assert.Equal(t, 0, NewSynthesizer(nil, nil, 0).maxQueries)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	short := strings.Repeat("é", 10)
	assert.Equal(t, short, truncate(short))

	// "a" shifts every two-byte rune so excerptLimit lands mid-rune
	long := "a" + strings.Repeat("é", excerptLimit)
	out := truncate(long)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), excerptLimit+len("..."))
	assert.Equal(t, long[:excerptLimit-1]+"...", out)
}
