// Package textvec turns free text into term-frequency vectors and compares
// them with cosine similarity. Everything here is pure and deterministic.
package textvec

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// MinTokenLength is the shortest token kept by the tokenizer
const MinTokenLength = 3

// DefaultStopwords are common English function words dropped before vectorizing
var DefaultStopwords = []string{
	"the", "a", "an", "and", "or", "but", "if", "then", "else", "to", "of", "in", "on", "for", "with", "at", "by",
	"from", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
	"you", "your", "we", "our", "they", "their", "i", "me", "my", "he", "she", "his", "her", "them", "us",
	"not", "no", "yes", "can", "could", "should", "would", "will", "just", "about", "into", "over", "under",
	"more", "most", "less", "very", "new", "now",
}

// Tokenizer splits normalized text into content tokens
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer builds a tokenizer with the given stopword list
func NewTokenizer(stopwords []string) *Tokenizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Tokenizer{stopwords: set}
}

var defaultTokenizer = NewTokenizer(DefaultStopwords)

// Default returns the tokenizer configured with DefaultStopwords
func Default() *Tokenizer { return defaultTokenizer }

// Normalize lower-cases text, turns every character outside [a-z0-9] into a
// separator and collapses the result to single-space separated words.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, lower)
	return strings.Join(strings.Fields(mapped), " ")
}

// Tokenize returns the content tokens of text in order of appearance
func (t *Tokenizer) Tokenize(text string) []string {
	words := strings.Fields(Normalize(text))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < MinTokenLength {
			continue
		}
		if _, stop := t.stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Vectorize is TermFrequency(t.Tokenize(text))
func (t *Tokenizer) Vectorize(text string) Vector {
	return TermFrequency(t.Tokenize(text))
}

// TopKeywords returns up to k most frequent tokens of text. Ties keep the
// order in which the tokens first appear.
func (t *Tokenizer) TopKeywords(text string, k int) []string {
	if k <= 0 {
		return nil
	}

	tokens := t.Tokenize(text)
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > k {
		order = order[:k]
	}
	return order
}

// Tokenize uses the default tokenizer
func Tokenize(text string) []string { return defaultTokenizer.Tokenize(text) }

// Vectorize uses the default tokenizer
func Vectorize(text string) Vector { return defaultTokenizer.Vectorize(text) }

// TopKeywords uses the default tokenizer
func TopKeywords(text string, k int) []string { return defaultTokenizer.TopKeywords(text, k) }

// Ellipsis terminates a truncated summary
const Ellipsis = "…"

// Summarize collapses whitespace and truncates text to at most maxLen
// characters, the last of which is an ellipsis when truncation happened.
func Summarize(text string, maxLen int) string {
	clean := strings.Join(strings.Fields(text), " ")
	if maxLen <= 0 || utf8.RuneCountInString(clean) <= maxLen {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:maxLen-1]) + Ellipsis
}
