package lemma

import (
	"github.com/kljensen/snowball"
)

// Snowball is the default Normalizer, backed by the Snowball stemmer.
// Correspondence is predominantly Russian; tokens the stemmer cannot handle
// (mixed alphabets, loanwords) pass through unchanged so they still match
// catalog keywords stemmed the same way.
type Snowball struct {
	language string
}

// NewSnowball creates a stemming normalizer for the given Snowball language
// name ("russian", "english", ...). An empty language defaults to russian.
func NewSnowball(language string) *Snowball {
	if language == "" {
		language = "russian"
	}
	return &Snowball{language: language}
}

// Normalize tokenizes the text and stems each token.
func (s *Snowball) Normalize(text string) Profile {
	tokens := Tokenize(text)
	stems := make([]string, 0, len(tokens))
	for _, token := range tokens {
		stem, err := snowball.Stem(token, s.language, false)
		if err != nil || stem == "" {
			stem = token
		}
		stems = append(stems, stem)
	}
	return NewProfile(stems)
}
