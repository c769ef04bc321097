// Package tokenizer provides text normalisation for indexing and query
// parsing. It lower-cases input, splits on non-alphanumeric boundaries,
// removes stop-words, and applies the Snowball English stemmer.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token represents a single normalised term and its 1-based position in the
// original text. Removed stop-words still consume a position.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into stemmed, lowercased Tokens with stop-words
// removed.
func Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words))
	for i, word := range words {
		term := normalizeWord(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: i + 1})
	}
	return tokens
}

// IsStopWord reports whether the lower-cased word is on the stop list.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

// Analyzer adapts the tokenizer to the query parser's normalisation hook.
type Analyzer struct{}

// Normalize returns the index terms for a raw query surface string; a
// stop-word yields no terms.
func (Analyzer) Normalize(raw string) []string {
	tokens := Tokenize(raw)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

func split(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizeWord(word string) string {
	if _, isStop := stopWords[word]; isStop {
		return ""
	}
	return english.Stem(word, false)
}
