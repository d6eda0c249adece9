package agents

import (
	"encoding/json"
	"testing"
	"time"

	"prodigy/internal/adapters/ai"
	"prodigy/internal/domain/counsel"
	"prodigy/internal/testsupport/stubai"
	"prodigy/pkg/schemas"
	"prodigy/pkg/templates"
)

type (
	stubProvider = stubai.Provider
	replyFunc    = stubai.ReplyFunc
)

func newStubProvider() *stubProvider { return stubai.NewProvider() }

func newTestSelector(t *testing.T, stub *stubProvider) *ai.ModelSelector {
	return stubai.NewSelector(t, stub)
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, Multiplier: 2}
}

func newTestCaller(t *testing.T, stub *stubProvider) *Caller {
	t.Helper()
	return NewCaller(CallerConfig{
		Models:    newTestSelector(t, stub),
		Validator: schemas.Default(),
		Retry:     fastRetry(),
	})
}

func testBrief() *counsel.Brief {
	return &counsel.Brief{
		IdeaName:    "Invoice Nudger",
		Description: "Chases late invoices for freelancers over email",
		TargetUser:  "freelance designers",
		Constraints: counsel.Constraints{BuildBudgetUSD: 500, BuildTimeWeeks: 4},
		Goals:       counsel.Goals{Objective: "side income", TimeHorizonMonths: 6},
	}
}

func testTemplates() *templates.Registry {
	return templates.Get()
}

// specialistReply renders a minimal specialist payload; details may be nil.
func specialistReply(score float64, summary string, details map[string]any) string {
	if details == nil {
		details = map[string]any{}
	}
	data, _ := json.Marshal(map[string]any{
		"score":       score,
		"summary":     summary,
		"details":     details,
		"risks":       []string{"risk one", "risk two", "risk three", "risk four"},
		"assumptions": []string{"assumption"},
	})
	return string(data)
}

func synthesisReply(score float64, verdict string) string {
	data, _ := json.Marshal(map[string]any{
		"overall_headline":       "Headline",
		"overall_verdict":        verdict,
		"overall_score":          score,
		"dimension_summary":      map[string]string{"market": "fine"},
		"key_insights":           []string{"insight"},
		"recommended_next_steps": []string{"step"},
		"validation_tasks":       []string{"task"},
		"major_risks_to_watch":   []string{"risk"},
	})
	return string(data)
}

func summaries(scores map[counsel.SpecialistKey]float64) counsel.Summaries {
	out := make(counsel.Summaries, len(scores))
	for key, score := range scores {
		p, _ := ProfileFor(key)
		out[key] = &counsel.Summary{
			Specialist: key,
			Score:      score,
			Decision:   p.Decision(score),
			Summary:    key.String() + " looks reasonable",
		}
	}
	return out
}
