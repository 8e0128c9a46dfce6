package model

// Keyword precision tiers. Each tier carries its own weight and minimum
// coverage threshold (see score.Weights).
const (
	TierHighPrecision   = "high_precision"
	TierMediumPrecision = "medium_precision"
	TierStructural      = "structural"
	TierOutOfScope      = "out_of_scope"
	TierNegativeContext = "negative_context"
)

// KeywordSpec is a single routing keyword compiled at catalog-load time:
// the display text, its deduplicated stem sequence, and optional anchor
// stems that must co-occur for the keyword to count at all.
type KeywordSpec struct {
	Text    string
	Lemmas  []string
	Anchors []string
}

// TriageRule is a boolean predicate over document stems. It fires when any
// "any" trigger reaches its minimum coverage, or when every "all" trigger
// does. The action text is what lands in the triggered-rule list.
type TriageRule struct {
	Any          []KeywordSpec
	All          []KeywordSpec
	Action       string
	HighPriority bool
}

// Department is one routing target. Immutable after catalog load and safe
// for concurrent reads.
type Department struct {
	ID            string
	Name          string
	Mission       string
	Keywords      map[string][]KeywordSpec
	TriageRules   []TriageRule
	BudgetControl bool
}

// Sensitive reports whether the department opted into negative-context
// scoring by declaring negative_context keywords in the catalog.
func (d *Department) Sensitive() bool {
	return len(d.Keywords[TierNegativeContext]) > 0
}

// Catalog is the ordered department list plus a version tag. Built once,
// never mutated, shared read-only across concurrent evaluations.
type Catalog struct {
	Departments []Department
	Version     string
}

// Department returns the department with the given id, or nil.
func (c *Catalog) Department(id string) *Department {
	for i := range c.Departments {
		if c.Departments[i].ID == id {
			return &c.Departments[i]
		}
	}
	return nil
}

// IDs returns all department ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.Departments))
	for i := range c.Departments {
		ids[i] = c.Departments[i].ID
	}
	return ids
}
