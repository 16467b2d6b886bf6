package textproc

import (
	"sort"
	"strings"
)

// stopWords are dropped from token sets. Packaging and quantity words carry
// no product identity.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "for": {}, "of": {},
	"to": {}, "in": {}, "on": {}, "by": {}, "with": {}, "is": {}, "at": {},
	"from": {}, "as": {}, "per": {}, "ea": {}, "each": {}, "set": {}, "pkg": {},
	"package": {}, "box": {}, "case": {}, "unit": {}, "lot": {}, "item": {},
	"no": {}, "number": {},
}

// Normalize lowercases text, replaces every character outside [a-z0-9] with
// a space and collapses whitespace runs.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	mapped := strings.Map(func(r rune) rune {
		if isASCIIAlnum(r) {
			return r
		}
		return ' '
	}, lower)
	return strings.Join(strings.Fields(mapped), " ")
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// IsStopWord reports whether token is filtered by Tokenize.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// TokenSet is an unordered set of tokens.
type TokenSet map[string]struct{}

// NewTokenSet builds a set from tokens.
func NewTokenSet(tokens ...string) TokenSet {
	s := make(TokenSet, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether token is in the set.
func (s TokenSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Sorted returns the tokens in lexical order.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Tokenize splits the normalized text on whitespace and drops stop words,
// single-character tokens and digit-only tokens shorter than three digits.
func Tokenize(text string) TokenSet {
	fields := strings.Fields(Normalize(text))
	set := make(TokenSet, len(fields))
	for _, tok := range fields {
		if len(tok) <= 1 || IsStopWord(tok) {
			continue
		}
		if isDigits(tok) && len(tok) < 3 {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// Overlap returns the Jaccard index |a∩b| / |a∪b|. Either set being empty
// yields 0.
func Overlap(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if large.Has(t) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
