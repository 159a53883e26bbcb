// Package peptide loads, validates and derives the peptide key set that an
// enrichment run operates on.
package peptide

import (
	"regexp"
	"strings"

	"github.com/epiworks/episeek/internal/model"
)

// alphabetRe accepts the twenty proteinogenic one-letter codes and nothing
// else. Ambiguity codes (B, J, X, Z) are rejected rather than guessed at.
var alphabetRe = regexp.MustCompile(`^[ACDEFGHIKLMNPQRSTVWY]+$`)

// Filter is the length window applied to candidate peptides.
type Filter struct {
	Min int
	Max int
}

// DefaultFilter matches the class I binding groove.
var DefaultFilter = Filter{Min: 8, Max: 14}

func (f Filter) Valid(p string) bool {
	return len(p) >= f.Min && len(p) <= f.Max && alphabetRe.MatchString(p)
}

// Normalize uppercases and trims a raw token. It does not validate.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Windows cuts every substring of length min..max out of seq, in order of
// length then position. The caller validates the results; a window over a
// dirty sequence yields dirty peptides.
func Windows(seq string, min, max int) []string {
	var out []string
	for length := min; length <= max; length++ {
		for i := 0; i+length <= len(seq); i++ {
			out = append(out, seq[i:i+length])
		}
	}
	return out
}

// Keys validates candidates against f and returns the unique survivors in
// first-seen order.
func Keys(candidates []string, f Filter) []model.Key {
	seen := make(map[model.Key]struct{}, len(candidates))
	keys := make([]model.Key, 0, len(candidates))
	for _, c := range candidates {
		p := Normalize(c)
		if !f.Valid(p) {
			continue
		}
		key := model.Key(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
