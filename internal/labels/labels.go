// Package labels implements set operations over essence labels.
// An essence label is a "domain:aspect" semantic tag attached to events,
// manifests, and goals. The processor is pure: no state, no side effects.
package labels

import (
	"fmt"
	"strings"
)

// Resonates reports whether any label in query appears in have.
func Resonates(have, query []string) bool {
	if len(have) == 0 || len(query) == 0 {
		return false
	}
	set := toSet(have)
	for _, l := range query {
		if _, ok := set[l]; ok {
			return true
		}
	}
	return false
}

// ResonanceScore returns the cardinality of the intersection of have and query.
// Duplicate labels count once.
func ResonanceScore(have, query []string) int {
	set := toSet(have)
	seen := make(map[string]struct{})
	score := 0
	for _, l := range query {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		if _, ok := set[l]; ok {
			score++
		}
	}
	return score
}

// SatisfiesAll reports whether every label in query appears in have.
// An empty query is vacuously satisfied.
func SatisfiesAll(have, query []string) bool {
	set := toSet(have)
	for _, l := range query {
		if _, ok := set[l]; !ok {
			return false
		}
	}
	return true
}

// dissonantPairs lists mutually exclusive label pairs. Declaring both members
// of a pair is a semantic contradiction. Extend by appending rows.
var dissonantPairs = [][2]string{
	{"security:secure", "security:vulnerable"},
	{"state:active", "state:inactive"},
	{"access:public", "access:private"},
	{"performance:fast", "performance:slow"},
	{"consciousness:awake", "consciousness:dormant"},
	{"alignment:resonant", "alignment:dissonant"},
}

// DetectDissonance scans labelSet for mutually exclusive pairs and returns
// one message per conflict found. An empty result means the set is coherent.
func DetectDissonance(labelSet []string) []string {
	set := toSet(labelSet)
	var conflicts []string
	for _, pair := range dissonantPairs {
		_, hasA := set[pair[0]]
		_, hasB := set[pair[1]]
		if hasA && hasB {
			conflicts = append(conflicts, fmt.Sprintf("dissonant labels: %q conflicts with %q", pair[0], pair[1]))
		}
	}
	return conflicts
}

// Domain returns the domain segment of a "domain:aspect" label.
// A label without a colon is its own domain.
func Domain(label string) string {
	if i := strings.IndexByte(label, ':'); i >= 0 {
		return label[:i]
	}
	return label
}

// Split returns the domain and aspect segments of a label.
// The aspect is empty when the label carries no colon.
func Split(label string) (domain, aspect string) {
	if i := strings.IndexByte(label, ':'); i >= 0 {
		return label[:i], label[i+1:]
	}
	return label, ""
}

func toSet(ls []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ls))
	for _, l := range ls {
		set[l] = struct{}{}
	}
	return set
}
