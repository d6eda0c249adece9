package counsel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/pkg/errors"
)

func TestParsePayloadRejectsNonObjects(t *testing.T) {
	for _, in := range []string{"", "not json", "[1,2]", "null", `{"score": 7`} {
		_, err := ParsePayload(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, errors.ErrMalformedPayload), in)
	}
}

func TestParsePayloadStripsCodeFence(t *testing.T) {
	p, err := ParsePayload("```json\n{\"score\": 7.5}\n```")
	require.NoError(t, err)
	score, ok := p.Float("score")
	assert.True(t, ok)
	assert.Equal(t, 7.5, score)
}

func TestDecodeSpecialistResultDefaults(t *testing.T) {
	p, err := ParsePayload(`{"summary": "ok"}`)
	require.NoError(t, err)

	r := DecodeSpecialistResult(p, "VP of Engineering")
	assert.Equal(t, DefaultScore, r.Score)
	assert.Equal(t, "VP of Engineering", r.Agent)
	assert.Equal(t, "ok", r.Summary)
	assert.Empty(t, r.Risks)
	assert.NotNil(t, r.Risks)
	assert.NotNil(t, r.Details)
	assert.Equal(t, "VP of Engineering", r.Raw["agent"])
	assert.Equal(t, 0.0, r.Raw["score"])
}

func TestDecodeSpecialistResultCoercion(t *testing.T) {
	p, err := ParsePayload(`{
		"agent": "custom",
		"score": "8.25",
		"top_risks": ["a", {"risk": "b"}, "", "c"],
		"assumptions": "single",
		"details": {"architecture": {"high_level_components": ["api"]}, "n": 3}
	}`)
	require.NoError(t, err)

	r := DecodeSpecialistResult(p, "fallback")
	assert.Equal(t, "custom", r.Agent)
	assert.Equal(t, 8.25, r.Score)
	assert.Equal(t, []string{"a", "b", "c"}, r.Risks)
	assert.Equal(t, []string{"single"}, r.Assumptions)
	assert.Equal(t, 3.0, r.Details["n"])

	comps, ok := Lookup(r.Details, "architecture", "high_level_components")
	require.True(t, ok)
	assert.Equal(t, []any{"api"}, comps)

	_, ok = Lookup(r.Details, "architecture", "missing")
	assert.False(t, ok)
}

func TestDecodeSpecialistResultNonFiniteScore(t *testing.T) {
	for _, in := range []string{"NaN", "Inf", "-Infinity", "+inf"} {
		p, err := ParsePayload(`{"score": "` + in + `", "summary": "market view", "details": {}}`)
		require.NoError(t, err)

		r := DecodeSpecialistResult(p, "VP of Market & Strategy")
		assert.Equal(t, DefaultScore, r.Score, in)

		_, err = json.Marshal(r)
		assert.NoError(t, err, in)
	}
}

func TestDecodeSpecialistResultClampsScore(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`{"score": 85}`, MaxScore},
		{`{"score": "12.5"}`, MaxScore},
		{`{"score": -3}`, 0},
		{`{"score": 6.5}`, 6.5},
	}
	for _, tt := range tests {
		p, err := ParsePayload(tt.in)
		require.NoError(t, err)
		r := DecodeSpecialistResult(p, "VP of Engineering")
		assert.Equal(t, tt.want, r.Score, tt.in)
		assert.Equal(t, tt.want, r.Raw["score"], tt.in)
	}
}

func TestDecodeSynthesisNonFiniteScoreFallsBack(t *testing.T) {
	p, err := ParsePayload(`{"overall_score": "NaN", "overall_verdict": "wait"}`)
	require.NoError(t, err)
	s := DecodeSynthesis(p, "Chief of Staff", 6.2)
	assert.Equal(t, 6.2, s.OverallScore)

	p, err = ParsePayload(`{"overall_score": 40}`)
	require.NoError(t, err)
	assert.Equal(t, MaxScore, DecodeSynthesis(p, "Chief of Staff", 6.2).OverallScore)
}

func TestSpecialistResultMarshalUsesRaw(t *testing.T) {
	p, err := ParsePayload(`{"score": 6, "custom_field": true}`)
	require.NoError(t, err)
	r := DecodeSpecialistResult(p, "VP of Market & Strategy")

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, true, back["custom_field"])
	assert.Equal(t, "VP of Market & Strategy", back["agent"])
}

func TestDecodeChallengeNormalizesNames(t *testing.T) {
	p, err := ParsePayload(`{
		"weakest_assumption": "users pay",
		"affected_vps": ["Revenue VP", "Sales"],
		"requires_re_analysis": "true",
		"vps_to_rerun": ["Tech VP", "product", "tech", "Legal"],
		"guidance": "recheck pricing",
		"confidence_in_current_recommendation": 4
	}`)
	require.NoError(t, err)

	c := DecodeChallenge(p, "Devil's Advocate")
	assert.Equal(t, "Devil's Advocate", c.Agent)
	assert.True(t, c.RequiresReAnalysis)
	assert.Equal(t, []SpecialistKey{SpecialistRevenue}, c.AffectedSpecialists)
	assert.Equal(t, []SpecialistKey{SpecialistTech, SpecialistProduct}, c.SpecialistsToRerun)
	assert.Equal(t, []string{"Sales", "Legal"}, c.Dropped)
	assert.Equal(t, 4.0, c.Confidence)
}

func TestDecodeSynthesisFallbackScore(t *testing.T) {
	p, err := ParsePayload(`{"overall_verdict": "Proceed", "dimension_summary": {"market": "big", "tech": 5}}`)
	require.NoError(t, err)

	s := DecodeSynthesis(p, "Chief of Staff (Prodigy Counsel)", 6.6)
	assert.Equal(t, 6.6, s.OverallScore)
	assert.Equal(t, "Chief of Staff (Prodigy Counsel)", s.Agent)
	assert.Equal(t, map[string]string{"market": "big"}, s.DimensionSummary)
	assert.Empty(t, s.KeyInsights)
}
