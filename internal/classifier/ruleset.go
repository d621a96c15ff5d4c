package classifier

import (
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/rajasatyajit/IssueRadar/pkg/utils"
)

// Rule labels a set of terms. Rules are kept in priority order.
type Rule[T comparable] struct {
	Label T
	Terms []string
}

// Ruleset finds which rules have a term occurring as a substring of a text in
// a single Aho-Corasick pass.
type Ruleset[T comparable] struct {
	// the matcher keeps per-call state, so Match must not run concurrently
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	termRule []int // dictionary index -> rule index
	labels   []T
}

// NewRuleset compiles rules. Terms are normalized like the texts they are
// matched against; duplicate and empty terms are dropped.
func NewRuleset[T comparable](rules []Rule[T]) *Ruleset[T] {
	rs := &Ruleset[T]{labels: make([]T, len(rules))}

	var dict []string
	seen := make(map[string]bool)
	for i, r := range rules {
		rs.labels[i] = r.Label
		for _, term := range r.Terms {
			term = utils.NormalizeSpace(term)
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			dict = append(dict, term)
			rs.termRule = append(rs.termRule, i)
		}
	}

	if len(dict) > 0 {
		rs.matcher = ahocorasick.NewStringMatcher(dict)
	}
	return rs
}

// hitRules returns, per rule index, whether it matched and how many distinct terms hit
func (rs *Ruleset[T]) hitRules(text string) map[int]int {
	if rs.matcher == nil {
		return nil
	}
	normalized := utils.NormalizeSpace(text)
	if normalized == "" {
		return nil
	}

	rs.mu.Lock()
	hits := rs.matcher.Match([]byte(normalized))
	rs.mu.Unlock()

	out := make(map[int]int, len(hits))
	for _, idx := range hits {
		if idx < 0 || idx >= len(rs.termRule) {
			continue
		}
		out[rs.termRule[idx]]++
	}
	return out
}

// First returns the label of the highest-priority rule with a hit
func (rs *Ruleset[T]) First(text string) (T, bool) {
	var zero T
	hits := rs.hitRules(text)
	best := -1
	for ruleIdx := range hits {
		if best == -1 || ruleIdx < best {
			best = ruleIdx
		}
	}
	if best == -1 {
		return zero, false
	}
	return rs.labels[best], true
}

// CountTerms returns how many distinct terms of any rule occur in text
func (rs *Ruleset[T]) CountTerms(text string) int {
	total := 0
	for _, n := range rs.hitRules(text) {
		total += n
	}
	return total
}
