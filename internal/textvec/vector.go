package textvec

import "math"

// Vector maps a token to the number of times it occurs
type Vector map[string]int

// TermFrequency counts tokens
func TermFrequency(tokens []string) Vector {
	v := make(Vector, len(tokens))
	for _, tok := range tokens {
		v[tok]++
	}
	return v
}

// sumSquares is exact for any realistic token count
func (v Vector) sumSquares() float64 {
	var sum float64
	for _, c := range v {
		sum += float64(c) * float64(c)
	}
	return sum
}

// Cosine returns the cosine similarity of a and b in [0,1]. It is 0 when
// either vector is empty.
func Cosine(a, b Vector) float64 {
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}

	var dot float64
	for tok, sv := range small {
		if lv, ok := large[tok]; ok {
			dot += float64(sv) * float64(lv)
		}
	}

	// sqrt of the product keeps Cosine(a, a) exactly 1
	denom := math.Sqrt(a.sumSquares() * b.sumSquares())
	if denom == 0 {
		return 0
	}
	return dot / denom
}
