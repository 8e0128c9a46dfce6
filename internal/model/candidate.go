package model

import (
	"fmt"
	"math"
	"sort"
)

// Hit records one matched keyword with the coverage fraction it matched at.
type Hit struct {
	Text     string
	Coverage float64
}

// Label renders the hit for humans, annotating partial matches with their
// coverage fraction.
func (h Hit) Label() string {
	if h.Coverage >= 1.0 {
		return h.Text
	}
	return fmt.Sprintf("%s (~%.0f%%)", h.Text, h.Coverage*100)
}

// Full reports whether every stem of the keyword was present.
func (h Hit) Full() bool {
	return h.Coverage >= 1.0
}

// BreakdownRuleBoost is the breakdown key for triage-rule boosts merged into
// a candidate's score after initial scoring.
const BreakdownRuleBoost = "rule_boost"

// Candidate is one department scored against one document.
type Candidate struct {
	DepartmentID   string
	DepartmentName string
	Hits           map[string][]Hit
	Score          float64
	Breakdown      map[string]float64
	CatalogOrder   int
}

// penaltyTiers lists breakdown keys whose values subtract from the score.
// All values in Breakdown are stored as positive magnitudes.
var penaltyTiers = map[string]bool{
	TierOutOfScope:      true,
	TierNegativeContext: true,
}

// BreakdownTotal recomputes the score from the breakdown: positive terms
// minus penalty terms. Candidate.Score must equal this within tolerance.
func (c *Candidate) BreakdownTotal() float64 {
	total := 0.0
	for tier, value := range c.Breakdown {
		if penaltyTiers[tier] {
			total -= value
		} else {
			total += value
		}
	}
	return total
}

// CheckInvariant verifies score == breakdown positives - breakdown penalties.
func (c *Candidate) CheckInvariant(tolerance float64) error {
	if diff := math.Abs(c.Score - c.BreakdownTotal()); diff > tolerance {
		return fmt.Errorf("candidate %s: score %.6f does not match breakdown total %.6f",
			c.DepartmentID, c.Score, c.BreakdownTotal())
	}
	return nil
}

// HasHit reports whether the candidate has at least one hit in the tier.
func (c *Candidate) HasHit(tier string) bool {
	return len(c.Hits[tier]) > 0
}

// HasFullHit reports whether the candidate has a full-coverage hit in the tier.
func (c *Candidate) HasFullHit(tier string) bool {
	for _, hit := range c.Hits[tier] {
		if hit.Full() {
			return true
		}
	}
	return false
}

// PositiveSignal sums the positive breakdown terms.
func (c *Candidate) PositiveSignal() float64 {
	total := 0.0
	for tier, value := range c.Breakdown {
		if !penaltyTiers[tier] {
			total += value
		}
	}
	return total
}

// MatchedKeywords returns the hit labels from the high- and medium-precision
// tiers, in tier order.
func (c *Candidate) MatchedKeywords() []string {
	keywords := make([]string, 0, len(c.Hits[TierHighPrecision])+len(c.Hits[TierMediumPrecision]))
	for _, tier := range []string{TierHighPrecision, TierMediumPrecision} {
		for _, hit := range c.Hits[tier] {
			keywords = append(keywords, hit.Label())
		}
	}
	return keywords
}

// Candidates is a scored department list kept sorted non-increasing by score.
type Candidates []Candidate

// Sort orders candidates by score descending; ties keep catalog order.
func (c Candidates) Sort() {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].CatalogOrder < c[j].CatalogOrder
	})
}

// Top returns the highest-scoring candidate, or nil if empty. The list is
// assumed sorted.
func (c Candidates) Top() *Candidate {
	if len(c) == 0 {
		return nil
	}
	return &c[0]
}

// Second returns the runner-up score, or 0 when absent.
func (c Candidates) Second() float64 {
	if len(c) < 2 {
		return 0
	}
	return c[1].Score
}

// TopN returns the first n candidates of the sorted list.
func (c Candidates) TopN(n int) Candidates {
	if n <= 0 || n > len(c) {
		n = len(c)
	}
	out := make(Candidates, n)
	copy(out, c[:n])
	return out
}

// MaxScore returns the top score, or 0 when the list is empty.
func (c Candidates) MaxScore() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[0].Score
}
