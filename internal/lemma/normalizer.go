// Package lemma normalizes raw text into word stems for keyword matching.
package lemma

// Profile is the normalized form of one document: the ordered stem sequence
// (duplicates preserved) and its deduplicated set. Built fresh per document
// and immutable afterwards.
type Profile struct {
	Sequence []string
	Set      map[string]struct{}
}

// NewProfile builds a Profile from an ordered stem sequence.
func NewProfile(sequence []string) Profile {
	set := make(map[string]struct{}, len(sequence))
	for _, stem := range sequence {
		set[stem] = struct{}{}
	}
	return Profile{Sequence: sequence, Set: set}
}

// Has reports whether the stem occurs anywhere in the document.
func (p Profile) Has(stem string) bool {
	_, ok := p.Set[stem]
	return ok
}

// Empty reports whether no stems survived normalization.
func (p Profile) Empty() bool {
	return len(p.Sequence) == 0
}

// Normalizer converts raw text into a stem profile. Implementations must be
// stateless and safe for concurrent use; the engine holds a single instance
// and reuses it across documents.
type Normalizer interface {
	Normalize(text string) Profile
}
