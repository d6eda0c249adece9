package agents

import (
	"math"
	"strings"

	"prodigy/internal/domain/counsel"
)

// Thresholds shared by the aggregate and the challenger trigger.
const (
	ChallengeScoreThreshold = 7.5
	SpreadThreshold         = 3.0
)

var overallDecisions = [4]string{
	"Proceed with MVP (strong across all dimensions)",
	"Proceed with focused execution (solid opportunity with manageable risks)",
	"Proceed with caution (significant challenges, consider pivots)",
	"Do not proceed in current form (major risks across multiple dimensions)",
}

var uncertaintyMarkers = []string{"uncertain", "unclear", "validation needed", "needs testing"}

func tierLabel(score float64, labels [4]string) string {
	switch {
	case score >= 8:
		return labels[0]
	case score >= 6:
		return labels[1]
	case score >= 4:
		return labels[2]
	default:
		return labels[3]
	}
}

// OverallDecision maps an aggregate score onto the board decision label
func OverallDecision(score float64) string {
	return tierLabel(score, overallDecisions)
}

// AggregateScores returns the mean of the present scores rounded to 2
// decimals, its decision label and the max-min spread.
func AggregateScores(summaries counsel.Summaries) counsel.Aggregate {
	scores := summaries.Scores()
	if len(scores) == 0 {
		return counsel.Aggregate{Decision: OverallDecision(0)}
	}

	sum, lo, hi := 0.0, scores[0], scores[0]
	for _, s := range scores {
		sum += s
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	mean := round2(sum / float64(len(scores)))

	return counsel.Aggregate{
		Score:    mean,
		Decision: OverallDecision(mean),
		Spread:   round2(hi - lo),
	}
}

// ShouldChallenge reports whether the devil's advocate must review the synthesis
func ShouldChallenge(agg counsel.Aggregate, synth *counsel.Synthesis) bool {
	if agg.Score < ChallengeScoreThreshold || agg.Spread > SpreadThreshold {
		return true
	}
	if synth == nil {
		return false
	}
	verdict := strings.ToLower(synth.Verdict)
	for _, marker := range uncertaintyMarkers {
		if strings.Contains(verdict, marker) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
