package utils

import "strings"

// ContainsAny checks if the text contains any of the given keywords
func ContainsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// NormalizeSpace lower-cases text and collapses whitespace runs into single spaces
func NormalizeSpace(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// MatchesAnyKeyword reports whether text mentions any of the normalized keywords
func MatchesAnyKeyword(text string, normalizedKeywords []string) bool {
	return ContainsAny(NormalizeSpace(text), normalizedKeywords)
}

// Clamp bounds n to [lo, hi]
func Clamp[T int | float64](n, lo, hi T) T {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
