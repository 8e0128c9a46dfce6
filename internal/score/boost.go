package score

import (
	"github.com/vsh-labs/chancery/internal/model"
)

// MergeBoosts folds triage-rule outcomes into the candidate scores: a fixed
// boost for any triggered rule, a further fixed boost for a positive
// priority count. Returns a new re-sorted list; idempotent for the same
// inputs.
func MergeBoosts(candidates model.Candidates, rc *model.RulesContext, weights Weights) model.Candidates {
	merged := make(model.Candidates, len(candidates))

	for i, candidate := range candidates {
		boost := 0.0
		if rc.HasTriggered(candidate.DepartmentID) {
			boost += weights.RuleBoost
		}
		if rc.HasPriorityBoost(candidate.DepartmentID) {
			boost += weights.PriorityBoost
		}

		if boost > 0 {
			breakdown := make(map[string]float64, len(candidate.Breakdown)+1)
			for tier, value := range candidate.Breakdown {
				breakdown[tier] = value
			}
			breakdown[model.BreakdownRuleBoost] = boost
			candidate.Breakdown = breakdown
			candidate.Score += boost
		}
		merged[i] = candidate
	}

	merged.Sort()
	return merged
}
