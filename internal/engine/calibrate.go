// Package engine orchestrates the routing pipeline: scoring, triage rules,
// confidence calibration, escalation, and decision assembly.
package engine

import (
	"math"

	"github.com/vsh-labs/chancery/internal/model"
	"github.com/vsh-labs/chancery/internal/score"
)

// Calibration thresholds. The blend favors the score gap over the absolute
// signal; the caps keep weak or non-specific matches out of auto-routing.
const (
	gapBlendWeight       = 0.6
	absoluteBlendWeight  = 0.4
	noHighHitCap         = 0.6
	ruleOnlyCap          = 0.55
	mediumShareThreshold = 0.6
	mediumShareDiscount  = 0.7
	lowScoreCap          = 0.2
	escalateBelow        = 0.35
	logisticMidpoint     = 3.0
	scoreEpsilon         = 1e-9
)

// Calibration is the calibrated trust in the heuristic top candidate.
type Calibration struct {
	Confidence      float64
	MandatoryReview bool
}

// Calibrate derives a bounded confidence for the sorted candidate list from
// the score gap, the absolute signal strength, and the quality of the hits
// behind the top candidate.
func Calibrate(candidates model.Candidates, rc *model.RulesContext, weights score.Weights) Calibration {
	top := candidates.Top()
	if top == nil || top.Score <= 0 {
		return Calibration{Confidence: 0, MandatoryReview: true}
	}

	gap := clip01((top.Score - candidates.Second()) / math.Max(top.Score, scoreEpsilon))
	absolute := 1.0 / (1.0 + math.Exp(-(top.Score - logisticMidpoint)))
	confidence := gapBlendWeight*gap + absoluteBlendWeight*absolute

	if !top.HasFullHit(model.TierHighPrecision) {
		limit := noHighHitCap
		if ruleOnly(top, rc) {
			limit = ruleOnlyCap
		}
		confidence = math.Min(confidence, limit)
	}

	if positive := top.PositiveSignal(); positive > 0 {
		if top.Breakdown[model.TierMediumPrecision] >= mediumShareThreshold*positive {
			confidence *= mediumShareDiscount
		}
	}

	mandatory := false
	if top.Score < weights.ScoreFloor {
		confidence = math.Min(confidence, lowScoreCap)
		mandatory = true
	}

	return Calibration{Confidence: clip01(confidence), MandatoryReview: mandatory}
}

// ruleOnly reports whether the candidate qualifies solely through a
// triggered triage rule: no keyword hits in the precision tiers.
func ruleOnly(candidate *model.Candidate, rc *model.RulesContext) bool {
	return rc.HasTriggered(candidate.DepartmentID) &&
		!candidate.HasHit(model.TierHighPrecision) &&
		!candidate.HasHit(model.TierMediumPrecision)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
