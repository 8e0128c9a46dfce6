package lemma

import (
	"regexp"
	"strings"
	"unicode"
)

var tokenSplitRe = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Tokenize lowercases the text, splits it on non-word characters, and drops
// tokens that carry no matchable signal: shorter than three runes, without a
// letter, a single repeated rune, or made of digits and underscores only.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	parts := tokenSplitRe.Split(lowered, -1)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		runes := []rune(part)
		if len(runes) <= 2 {
			continue
		}
		if !hasLetter(runes) {
			continue
		}
		if singleRune(runes) {
			continue
		}
		if digitsAndUnderscores(runes) {
			continue
		}
		tokens = append(tokens, part)
	}
	return tokens
}

func hasLetter(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func singleRune(runes []rune) bool {
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}

func digitsAndUnderscores(runes []rune) bool {
	for _, r := range runes {
		if r != '_' && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
