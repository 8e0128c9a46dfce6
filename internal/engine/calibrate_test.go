package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vsh-labs/chancery/internal/model"
	"github.com/vsh-labs/chancery/internal/score"
)

func candidateWith(id string, total float64, hits map[string][]model.Hit) model.Candidate {
	if hits == nil {
		hits = map[string][]model.Hit{}
	}
	return model.Candidate{
		DepartmentID: id,
		Hits:         hits,
		Score:        total,
		Breakdown:    map[string]float64{model.TierHighPrecision: total},
	}
}

func fullHigh() map[string][]model.Hit {
	return map[string][]model.Hit{
		model.TierHighPrecision: {{Text: "бюджетное финансирование", Coverage: 1.0}},
	}
}

func TestCalibrate(t *testing.T) {
	weights := score.DefaultWeights()
	rc := model.NewRulesContext()

	t.Run("empty candidate list", func(t *testing.T) {
		cal := Calibrate(model.Candidates{}, rc, weights)
		assert.Zero(t, cal.Confidence)
		assert.True(t, cal.MandatoryReview)
	})

	t.Run("non-positive top score", func(t *testing.T) {
		cal := Calibrate(model.Candidates{candidateWith("A", -1.0, nil)}, rc, weights)
		assert.Zero(t, cal.Confidence)
		assert.True(t, cal.MandatoryReview)
	})

	t.Run("dominant candidate with full high hit", func(t *testing.T) {
		candidates := model.Candidates{
			candidateWith("A", 6.0, fullHigh()),
			candidateWith("B", 1.0, nil),
		}
		cal := Calibrate(candidates, rc, weights)

		gap := (6.0 - 1.0) / 6.0
		absolute := 1.0 / (1.0 + math.Exp(-(6.0 - 3.0)))
		assert.InDelta(t, 0.6*gap+0.4*absolute, cal.Confidence, 1e-9)
		assert.False(t, cal.MandatoryReview)
	})

	t.Run("no full high hit caps at 0.6", func(t *testing.T) {
		candidates := model.Candidates{
			candidateWith("A", 10.0, map[string][]model.Hit{
				model.TierHighPrecision: {{Text: "бюджетное финансирование", Coverage: 0.7}},
			}),
		}
		cal := Calibrate(candidates, rc, weights)
		assert.InDelta(t, 0.6, cal.Confidence, 1e-9)
	})

	t.Run("rule-only candidate caps at 0.55", func(t *testing.T) {
		ruleRC := model.NewRulesContext()
		ruleRC.Triggered["A"] = []string{"высокий приоритет"}

		top := model.Candidate{
			DepartmentID: "A",
			Hits:         map[string][]model.Hit{},
			Score:        10.0,
			Breakdown:    map[string]float64{model.BreakdownRuleBoost: 10.0},
		}
		cal := Calibrate(model.Candidates{top}, ruleRC, weights)
		assert.InDelta(t, 0.55, cal.Confidence, 1e-9)
	})

	t.Run("medium-heavy signal is discounted", func(t *testing.T) {
		top := model.Candidate{
			DepartmentID: "A",
			Hits: map[string][]model.Hit{
				model.TierHighPrecision:   {{Text: "служебная проверка", Coverage: 1.0}},
				model.TierMediumPrecision: {{Text: "нарушение", Coverage: 1.0}},
			},
			Score: 8.0,
			Breakdown: map[string]float64{
				model.TierHighPrecision:   3.0,
				model.TierMediumPrecision: 5.0,
			},
		}
		without := top
		without.Breakdown = map[string]float64{
			model.TierHighPrecision:   7.0,
			model.TierMediumPrecision: 1.0,
		}

		discounted := Calibrate(model.Candidates{top}, rc, weights)
		baseline := Calibrate(model.Candidates{without}, rc, weights)
		assert.InDelta(t, baseline.Confidence*0.7, discounted.Confidence, 1e-9)
	})

	t.Run("score below floor caps at 0.2 and mandates review", func(t *testing.T) {
		candidates := model.Candidates{candidateWith("A", 0.5, fullHigh())}
		cal := Calibrate(candidates, rc, weights)
		assert.LessOrEqual(t, cal.Confidence, 0.2)
		assert.True(t, cal.MandatoryReview)
	})

	t.Run("confidence stays within bounds", func(t *testing.T) {
		for _, total := range []float64{0.1, 1.0, 3.0, 50.0} {
			cal := Calibrate(model.Candidates{candidateWith("A", total, fullHigh())}, rc, weights)
			assert.GreaterOrEqual(t, cal.Confidence, 0.0)
			assert.LessOrEqual(t, cal.Confidence, 1.0)
		}
	})
}
