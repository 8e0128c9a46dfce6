// Package score implements the coverage-based candidate scorer, the triage
// rule evaluator, and the boost merger.
package score

// Weights gathers every tunable constant of the scoring algorithm in one
// place: tier weights, coverage thresholds, rule boosts, and the low-score
// floor.
type Weights struct {
	HighPrecision   float64
	MediumPrecision float64
	Structural      float64
	OutOfScope      float64
	NegativeContext float64

	HighMinCoverage       float64
	MediumMinCoverage     float64
	StructuralMinCoverage float64
	OutOfScopeMinCoverage float64
	NegativeMinCoverage   float64

	// NegativeHitThreshold is how many negative-context keywords must match
	// before the penalty applies (and only when high-precision is empty).
	NegativeHitThreshold int

	// AnchorWindow is the token distance within which anchors must appear
	// around single-stem keyword occurrences.
	AnchorWindow int

	// RuleBoost is added when any triage rule fired for the department;
	// PriorityBoost is added on top when a high-priority rule fired.
	RuleBoost     float64
	PriorityBoost float64

	// PriorityIncrement is added to a department's priority counter for
	// each high-priority rule that fires.
	PriorityIncrement int

	// ScoreFloor is the absolute score below which a decision is never
	// trusted without review.
	ScoreFloor float64
}

// DefaultWeights returns the tuned production constants.
func DefaultWeights() Weights {
	return Weights{
		HighPrecision:   3.0,
		MediumPrecision: 1.0,
		Structural:      0.5,
		OutOfScope:      2.0,
		NegativeContext: 1.5,

		HighMinCoverage:       0.66,
		MediumMinCoverage:     0.66,
		StructuralMinCoverage: 1.0,
		OutOfScopeMinCoverage: 0.5,
		NegativeMinCoverage:   0.66,

		NegativeHitThreshold: 2,
		AnchorWindow:         7,

		RuleBoost:     2.0,
		PriorityBoost: 2.0,

		PriorityIncrement: 2,

		ScoreFloor: 1.0,
	}
}
