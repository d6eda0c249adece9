package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/internal/domain/counsel"
)

func TestDetectConflict(t *testing.T) {
	t.Run("no signal on agreement", func(t *testing.T) {
		assert.Nil(t, DetectConflict(fiveScores([5]float64{7, 7, 7, 7, 7})))
	})

	t.Run("score spread", func(t *testing.T) {
		sig := DetectConflict(fiveScores([5]float64{9, 3, 8, 7, 6}))
		require.NotNil(t, sig)
		assert.Equal(t, counsel.ConflictScoreSpread, sig.Kind)
		assert.Equal(t, []counsel.SpecialistKey{counsel.SpecialistMarket, counsel.SpecialistTech}, sig.Specialists)
	})

	t.Run("spread of exactly three is tolerated", func(t *testing.T) {
		assert.Nil(t, DetectConflict(fiveScores([5]float64{8, 5, 7, 7, 7})))
	})

	t.Run("cli versus web in both directions", func(t *testing.T) {
		s := fiveScores([5]float64{7, 7, 7, 7, 7})
		s[counsel.SpecialistTech].Summary = "Ship a CLI in a week."
		s[counsel.SpecialistProduct].Summary = "Users expect a web app with a dashboard."
		sig := DetectConflict(s)
		require.NotNil(t, sig)
		assert.Equal(t, counsel.ConflictKeyword, sig.Kind)
		assert.Equal(t, []counsel.SpecialistKey{counsel.SpecialistTech, counsel.SpecialistProduct}, sig.Specialists)

		s = fiveScores([5]float64{7, 7, 7, 7, 7})
		s[counsel.SpecialistProduct].Summary = "A command-line tool suits developers."
		s[counsel.SpecialistTech].Summary = "Plan a graphical frontend."
		sig = DetectConflict(s)
		require.NotNil(t, sig)
		assert.Equal(t, []counsel.SpecialistKey{counsel.SpecialistProduct, counsel.SpecialistTech}, sig.Specialists)
	})

	t.Run("keywords match whole words only", func(t *testing.T) {
		s := fiveScores([5]float64{7, 7, 7, 7, 7})
		s[counsel.SpecialistTech].Summary = "Partner with a clinic for pilots."
		s[counsel.SpecialistProduct].Summary = "Users expect a web app."
		assert.Nil(t, DetectConflict(s))
	})

	t.Run("structured interface claims", func(t *testing.T) {
		s := fiveScores([5]float64{7, 7, 7, 7, 7})
		s[counsel.SpecialistTech].Interface = "cli"
		s[counsel.SpecialistProduct].Interface = "web"
		sig := DetectConflict(s)
		require.NotNil(t, sig)
		assert.Equal(t, counsel.ConflictInterfaceClaim, sig.Kind)
		assert.ElementsMatch(t, []counsel.SpecialistKey{counsel.SpecialistTech, counsel.SpecialistProduct}, sig.Specialists)
	})

	t.Run("none and matching claims are not conflicts", func(t *testing.T) {
		s := fiveScores([5]float64{7, 7, 7, 7, 7})
		s[counsel.SpecialistTech].Interface = "web"
		s[counsel.SpecialistProduct].Interface = "web"
		s[counsel.SpecialistOps].Interface = "none"
		assert.Nil(t, DetectConflict(s))
	})
}
