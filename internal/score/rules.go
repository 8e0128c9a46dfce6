package score

import (
	"strings"

	"github.com/vsh-labs/chancery/internal/lemma"
	"github.com/vsh-labs/chancery/internal/model"
)

// coExecutorMarker flags actions that delegate to a co-executing department;
// such actions become document-level review reasons.
const coExecutorMarker = "соисполнител"

// RuleEvaluator runs the departments' triage rules over a document profile.
// Evaluation is purely additive and order-independent across departments.
type RuleEvaluator struct {
	weights Weights
}

// NewRuleEvaluator creates a rule evaluator.
func NewRuleEvaluator(weights Weights) *RuleEvaluator {
	return &RuleEvaluator{weights: weights}
}

// Evaluate collects triggered rules, priority boosts, and review reasons for
// every department in the catalog.
func (e *RuleEvaluator) Evaluate(profile lemma.Profile, catalog *model.Catalog) *model.RulesContext {
	rc := model.NewRulesContext()

	for i := range catalog.Departments {
		department := &catalog.Departments[i]
		for _, rule := range department.TriageRules {
			if !e.fires(rule, profile) {
				continue
			}
			rc.Triggered[department.ID] = append(rc.Triggered[department.ID], rule.Action)
			if rule.HighPriority {
				rc.PriorityBoosts[department.ID] += e.weights.PriorityIncrement
			}
			if strings.Contains(strings.ToLower(rule.Action), coExecutorMarker) {
				rc.AddReviewReason(rule.Action)
			}
		}
	}

	return rc
}

// fires evaluates the rule predicate: any "any" trigger at its minimum
// coverage, or every "all" trigger at its minimum coverage.
func (e *RuleEvaluator) fires(rule model.TriageRule, profile lemma.Profile) bool {
	for _, trigger := range rule.Any {
		if e.triggerMatches(trigger, profile) {
			return true
		}
	}

	if len(rule.All) == 0 {
		return false
	}
	for _, trigger := range rule.All {
		if !e.triggerMatches(trigger, profile) {
			return false
		}
	}
	return true
}

// triggerMatches applies the tier-appropriate minimum: single-stem triggers
// need full coverage, multi-stem triggers need at least half.
func (e *RuleEvaluator) triggerMatches(trigger model.KeywordSpec, profile lemma.Profile) bool {
	cov := Coverage(trigger, profile, e.weights.AnchorWindow)
	if len(trigger.Lemmas) == 1 {
		return cov >= 1.0
	}
	return cov >= 0.5
}
