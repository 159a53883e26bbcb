// Package conserve scores how conserved each alignment position is across
// the candidate peptide set. Peptides are left-aligned; entropy at a
// position only counts peptides long enough to reach it.
package conserve

import (
	"math"

	"github.com/epiworks/episeek/internal/model"
)

// maxEntropy is the Shannon entropy of a uniform draw over the twenty
// amino acids, the ceiling used to normalize conservation into [0,1].
var maxEntropy = math.Log2(20)

// Position is the conservation profile of one alignment column.
type Position struct {
	Index        int
	Entropy      float64
	Conservation float64
	MostCommon   byte
}

// Profile computes the per-position profile for a left-aligned peptide
// set. Conservation is 1 - H/log2(20): a column where every peptide
// agrees scores 1, a uniformly scrambled one approaches 0.
func Profile(keys []model.Key) []Position {
	if len(keys) == 0 {
		return nil
	}
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	profile := make([]Position, 0, width)
	for pos := range width {
		counts := make(map[byte]int)
		total := 0
		for _, k := range keys {
			if pos < len(k) {
				counts[k[pos]]++
				total++
			}
		}
		if total == 0 {
			continue
		}

		entropy := 0.0
		common := byte(0)
		commonCount := 0
		for aa, count := range counts {
			p := float64(count) / float64(total)
			entropy -= p * math.Log2(p)
			if count > commonCount || (count == commonCount && aa < common) {
				common, commonCount = aa, count
			}
		}

		profile = append(profile, Position{
			Index:        pos + 1,
			Entropy:      entropy,
			Conservation: 1 - entropy/maxEntropy,
			MostCommon:   common,
		})
	}
	return profile
}

// Outcomes scores every key with the mean conservation of the positions it
// spans, shaped for a table merge. A key set of one is perfectly conserved
// by construction.
func Outcomes(keys []model.Key) map[model.Key]model.Outcome {
	profile := Profile(keys)
	out := make(map[model.Key]model.Outcome, len(keys))
	for _, k := range keys {
		sum := 0.0
		n := 0
		for _, p := range profile {
			if p.Index <= len(k) {
				sum += p.Conservation
				n++
			}
		}
		score := 0.0
		if n > 0 {
			score = sum / float64(n)
		}
		out[k] = model.Success(model.Conservation{Score: score})
	}
	return out
}
