package model

// RulesContext collects the outcome of triage-rule evaluation for one
// document: which rules fired per department, accumulated priority boosts,
// and the deduplicated review reasons. Built during rule evaluation; later
// pipeline stages may append further review reasons before the record is
// assembled, but never rewrite what evaluation produced.
type RulesContext struct {
	Triggered      map[string][]string
	PriorityBoosts map[string]int
	ReviewReasons  []string
}

// NewRulesContext returns an empty context with initialized maps.
func NewRulesContext() *RulesContext {
	return &RulesContext{
		Triggered:      make(map[string][]string),
		PriorityBoosts: make(map[string]int),
		ReviewReasons:  []string{},
	}
}

// HasTriggered reports whether any rule fired for the department.
func (rc *RulesContext) HasTriggered(departmentID string) bool {
	return len(rc.Triggered[departmentID]) > 0
}

// HasPriorityBoost reports whether the department accumulated any
// high-priority boost.
func (rc *RulesContext) HasPriorityBoost(departmentID string) bool {
	return rc.PriorityBoosts[departmentID] > 0
}

// AddReviewReason appends a reason unless it is already present.
func (rc *RulesContext) AddReviewReason(reason string) {
	for _, existing := range rc.ReviewReasons {
		if existing == reason {
			return
		}
	}
	rc.ReviewReasons = append(rc.ReviewReasons, reason)
}
