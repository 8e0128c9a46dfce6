package score

import (
	"github.com/vsh-labs/chancery/internal/lemma"
	"github.com/vsh-labs/chancery/internal/model"
)

// Scorer ranks catalog departments against one document's lemma profile.
// It is stateless; one instance serves concurrent evaluations.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Weights returns the scorer's weight configuration.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score produces one candidate per department, sorted by score descending
// with catalog order breaking ties.
func (s *Scorer) Score(profile lemma.Profile, catalog *model.Catalog) model.Candidates {
	candidates := make(model.Candidates, 0, len(catalog.Departments))
	for i := range catalog.Departments {
		candidates = append(candidates, s.scoreDepartment(profile, &catalog.Departments[i], i))
	}
	candidates.Sort()
	return candidates
}

func (s *Scorer) scoreDepartment(profile lemma.Profile, department *model.Department, order int) model.Candidate {
	hits := make(map[string][]model.Hit, 4)
	breakdown := make(map[string]float64, 4)

	high := s.tierSignal(profile, department.Keywords[model.TierHighPrecision], s.weights.HighMinCoverage, s.weights.HighPrecision)
	medium := s.tierSignal(profile, department.Keywords[model.TierMediumPrecision], s.weights.MediumMinCoverage, s.weights.MediumPrecision)
	structural := s.tierSignal(profile, department.Keywords[model.TierStructural], s.weights.StructuralMinCoverage, s.weights.Structural)
	outOfScope := s.tierSignal(profile, department.Keywords[model.TierOutOfScope], s.weights.OutOfScopeMinCoverage, s.weights.OutOfScope)

	hits[model.TierHighPrecision] = high.hits
	hits[model.TierMediumPrecision] = medium.hits
	hits[model.TierStructural] = structural.hits
	hits[model.TierOutOfScope] = outOfScope.hits

	breakdown[model.TierHighPrecision] = high.signal
	breakdown[model.TierMediumPrecision] = medium.signal
	breakdown[model.TierStructural] = structural.signal
	breakdown[model.TierOutOfScope] = outOfScope.signal

	penalty := 0.0
	if department.Sensitive() && len(high.hits) == 0 {
		negative := s.tierSignal(profile, department.Keywords[model.TierNegativeContext], s.weights.NegativeMinCoverage, s.weights.NegativeContext)
		if len(negative.hits) >= s.weights.NegativeHitThreshold {
			hits[model.TierNegativeContext] = negative.hits
			breakdown[model.TierNegativeContext] = negative.signal
			penalty = negative.signal
		}
	}

	score := high.signal + medium.signal + structural.signal - outOfScope.signal - penalty

	return model.Candidate{
		DepartmentID:   department.ID,
		DepartmentName: department.Name,
		Hits:           hits,
		Score:          score,
		Breakdown:      breakdown,
		CatalogOrder:   order,
	}
}

type tierResult struct {
	hits   []model.Hit
	signal float64
}

// tierSignal evaluates every keyword of one tier: each keyword whose
// coverage reaches the minimum contributes weight × coverage.
func (s *Scorer) tierSignal(profile lemma.Profile, specs []model.KeywordSpec, minCoverage, weight float64) tierResult {
	var result tierResult
	for _, spec := range specs {
		cov := Coverage(spec, profile, s.weights.AnchorWindow)
		if cov < minCoverage || cov == 0 {
			continue
		}
		result.hits = append(result.hits, model.Hit{Text: spec.Text, Coverage: cov})
		result.signal += weight * cov
	}
	return result
}

// Coverage computes the fraction of a keyword's stems present in the
// document. Anchored keywords are gated first: a single-stem keyword needs
// its anchors within the token window around every occurrence of that stem,
// a multi-stem keyword needs its anchors present anywhere in the document.
// A failed gate means coverage 0 regardless of stem presence.
func Coverage(spec model.KeywordSpec, profile lemma.Profile, anchorWindow int) float64 {
	if len(spec.Lemmas) == 0 {
		return 0
	}

	if len(spec.Anchors) > 0 {
		if len(spec.Lemmas) == 1 {
			if !anchoredNear(spec.Lemmas[0], spec.Anchors, profile, anchorWindow) {
				return 0
			}
		} else {
			for _, anchor := range spec.Anchors {
				if !profile.Has(anchor) {
					return 0
				}
			}
		}
	}

	present := 0
	for _, stem := range spec.Lemmas {
		if profile.Has(stem) {
			present++
		}
	}
	return float64(present) / float64(len(spec.Lemmas))
}

// anchoredNear checks that every occurrence of stem in the sequence has all
// anchors within ±window tokens. No occurrence at all fails the gate.
func anchoredNear(stem string, anchors []string, profile lemma.Profile, window int) bool {
	found := false
	for i, token := range profile.Sequence {
		if token != stem {
			continue
		}
		found = true

		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(profile.Sequence) {
			hi = len(profile.Sequence)
		}

		for _, anchor := range anchors {
			if !contains(profile.Sequence[lo:hi], anchor) {
				return false
			}
		}
	}
	return found
}

func contains(window []string, stem string) bool {
	for _, token := range window {
		if token == stem {
			return true
		}
	}
	return false
}
