package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/internal/domain/counsel"
	"prodigy/pkg/errors"
)

func TestChallengeNormalizesSpecialistNames(t *testing.T) {
	stub := newStubProvider().Reply("devils_advocate", `{
		"weakest_assumption": "Freelancers will pay to chase invoices",
		"affected_vps": ["Tech VP", "tech", "Technology", "Sales"],
		"why_weak": "They already use accounting tools",
		"alternative_approach": "Integrate with existing tools",
		"requires_re_analysis": true,
		"vps_to_rerun": ["Revenue VP", "Sales"],
		"guidance": "Assume an integration-first product",
		"confidence_in_current_recommendation": 0.4
	}`)
	c := NewChallenger(newTestCaller(t, stub), testTemplates())

	sums := fiveScores([5]float64{9, 3, 8, 7, 6})
	challenge, err := c.Challenge(context.Background(), ChallengeInput{
		Brief:     testBrief(),
		Aggregate: AggregateScores(sums),
		Summaries: sums,
		Synthesis: &counsel.Synthesis{
			Verdict:     "Proceed carefully",
			KeyInsights: []string{"insight A"},
			NextSteps:   []string{"step B"},
			MajorRisks:  []string{"risk C"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Devil's Advocate", challenge.Agent)
	assert.Equal(t, []counsel.SpecialistKey{counsel.SpecialistTech}, challenge.AffectedSpecialists)
	assert.Equal(t, []counsel.SpecialistKey{counsel.SpecialistRevenue}, challenge.SpecialistsToRerun)
	assert.Equal(t, []string{"Sales", "Sales"}, challenge.Dropped)
	assert.True(t, challenge.RequiresReAnalysis)
	assert.Equal(t, 0.4, challenge.Confidence)

	req := stub.LastRequest("devils_advocate")
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.4, *req.Temperature)
	prompt := req.Messages[1].Content
	assert.Contains(t, prompt, "Proceed carefully")
	assert.Contains(t, prompt, "- insight A")
	assert.Contains(t, prompt, "- step B")
	assert.Contains(t, prompt, "- risk C")
	assert.Contains(t, prompt, "tech 3.0/10")
}

func TestChallengeRequiresSynthesis(t *testing.T) {
	c := NewChallenger(newTestCaller(t, newStubProvider()), testTemplates())

	_, err := c.Challenge(context.Background(), ChallengeInput{Brief: testBrief()})

	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
