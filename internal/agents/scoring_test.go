package agents

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/internal/domain/counsel"
)

func fiveScores(s [5]float64) counsel.Summaries {
	return summaries(map[counsel.SpecialistKey]float64{
		counsel.SpecialistMarket:  s[0],
		counsel.SpecialistTech:    s[1],
		counsel.SpecialistRevenue: s[2],
		counsel.SpecialistOps:     s[3],
		counsel.SpecialistProduct: s[4],
	})
}

func TestAggregateScoresIsRoundedMeanWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		var s [5]float64
		for j := range s {
			s[j] = math.Round(rng.Float64()*1000) / 100
		}
		// Summed in stage order: market, product, tech, revenue, ops
		sum := s[0] + s[4] + s[1] + s[2] + s[3]

		agg := AggregateScores(fiveScores(s))

		assert.InDelta(t, math.Round(sum/5*100)/100, agg.Score, 1e-9, "scores %v", s)
		assert.GreaterOrEqual(t, agg.Score, 0.0)
		assert.LessOrEqual(t, agg.Score, 10.0)
	}
}

func TestAggregateScoresBoundaries(t *testing.T) {
	assert.Equal(t, 0.0, AggregateScores(fiveScores([5]float64{0, 0, 0, 0, 0})).Score)
	assert.Equal(t, 10.0, AggregateScores(fiveScores([5]float64{10, 10, 10, 10, 10})).Score)
	assert.Equal(t, 6.67, AggregateScores(fiveScores([5]float64{6.67, 6.67, 6.67, 6.67, 6.67})).Score)

	empty := AggregateScores(counsel.Summaries{})
	assert.Equal(t, 0.0, empty.Score)
	assert.Equal(t, OverallDecision(0), empty.Decision)
}

func TestOverallDecisionIsMonotonic(t *testing.T) {
	tier := func(label string) int {
		for i, l := range overallDecisions {
			if l == label {
				return 3 - i
			}
		}
		t.Fatalf("unknown label %q", label)
		return -1
	}

	prev := tier(OverallDecision(0))
	for step := 1; step <= 1000; step++ {
		cur := tier(OverallDecision(float64(step) / 100))
		require.GreaterOrEqual(t, cur, prev, "score %.2f", float64(step)/100)
		prev = cur
	}

	tests := []struct {
		score float64
		want  string
	}{
		{8.0, "Proceed with MVP (strong across all dimensions)"},
		{7.99, "Proceed with focused execution (solid opportunity with manageable risks)"},
		{6.0, "Proceed with focused execution (solid opportunity with manageable risks)"},
		{5.99, "Proceed with caution (significant challenges, consider pivots)"},
		{4.0, "Proceed with caution (significant challenges, consider pivots)"},
		{3.99, "Do not proceed in current form (major risks across multiple dimensions)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OverallDecision(tt.score), "score %.2f", tt.score)
	}
}

func TestSpecialistDecisionTiers(t *testing.T) {
	tech, ok := ProfileFor(counsel.SpecialistTech)
	require.True(t, ok)

	assert.Equal(t, "Ship this fast - MVP achievable in timeline", tech.Decision(8))
	assert.Equal(t, "Shippable with focus - Ruthless scope cuts needed", tech.Decision(7.99))
	assert.Equal(t, "Challenging but possible - Significant scope reduction required", tech.Decision(4))
	assert.Equal(t, "Difficult to ship quickly - Consider simpler MVP or longer timeline", tech.Decision(3.9))
}

func TestShouldChallenge(t *testing.T) {
	calm := &counsel.Synthesis{Verdict: "Build it."}

	t.Run("strong consensus is not challenged", func(t *testing.T) {
		agg := AggregateScores(fiveScores([5]float64{9, 8, 8.5, 9, 8}))
		assert.Equal(t, 8.5, agg.Score)
		assert.Equal(t, 1.0, agg.Spread)
		assert.Equal(t, OverallDecision(8.5), agg.Decision)
		assert.False(t, ShouldChallenge(agg, calm))
	})

	t.Run("wide spread triggers", func(t *testing.T) {
		agg := AggregateScores(fiveScores([5]float64{9, 3, 8, 7, 6}))
		assert.Equal(t, 6.6, agg.Score)
		assert.Equal(t, 6.0, agg.Spread)
		assert.True(t, ShouldChallenge(agg, calm))
	})

	t.Run("spread alone triggers above the score threshold", func(t *testing.T) {
		agg := counsel.Aggregate{Score: 7.8, Spread: 3.1}
		assert.True(t, ShouldChallenge(agg, calm))
	})

	t.Run("low score triggers", func(t *testing.T) {
		agg := counsel.Aggregate{Score: 7.49, Spread: 0.5}
		assert.True(t, ShouldChallenge(agg, calm))
	})

	t.Run("uncertain verdict triggers", func(t *testing.T) {
		agg := counsel.Aggregate{Score: 8.5, Spread: 1}
		for _, verdict := range []string{
			"Demand is UNCERTAIN",
			"Pricing is unclear",
			"Validation needed before building",
			"The onboarding needs testing",
		} {
			assert.True(t, ShouldChallenge(agg, &counsel.Synthesis{Verdict: verdict}), verdict)
		}
	})

	t.Run("spread exactly at threshold does not trigger", func(t *testing.T) {
		agg := counsel.Aggregate{Score: 8, Spread: 3.0}
		assert.False(t, ShouldChallenge(agg, nil))
	})
}
