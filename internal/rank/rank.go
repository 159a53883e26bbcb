// Package rank combines the enriched prediction columns into one ordering
// score per peptide.
package rank

import (
	"slices"

	"github.com/epiworks/episeek/internal/model"
)

// Weights blend the normalized components. They are read from config and
// not required to sum to one, though the defaults do.
type Weights struct {
	Affinity float64
	Immuno   float64
}

// DefaultWeights favor binding affinity over predicted immunogenicity.
var DefaultWeights = Weights{Affinity: 0.7, Immuno: 0.3}

// ServiceName is the column family the combined score merges under.
const ServiceName = "rank"

// Outcomes computes a combined score for every key whose enrichment
// produced at least one usable component. IC50 is inverted before
// normalization so that stronger binders score higher. Keys where both
// components failed are left out; their rank cells render as failures.
func Outcomes(t *model.Table, w Weights) map[model.Key]model.Outcome {
	affinity := normalized(t, "affinity", func(v model.Value) (float64, bool) {
		a, ok := v.(model.Affinity)
		return a.IC50, ok
	})
	// invert: normalized IC50 of 0 is the strongest binder in the set
	for k, v := range affinity {
		affinity[k] = 1 - v
	}
	immuno := normalized(t, "immunogenicity", func(v model.Value) (float64, bool) {
		i, ok := v.(model.Immunogenicity)
		return i.Score, ok
	})

	out := make(map[model.Key]model.Outcome)
	for _, key := range t.Keys() {
		a, haveA := affinity[key]
		i, haveI := immuno[key]
		if !haveA && !haveI {
			continue
		}
		out[key] = model.Success(model.RankScore{Score: w.Affinity*a + w.Immuno*i})
	}
	return out
}

// normalized extracts one numeric component per key and min-max scales the
// successful values into [0,1]. A degenerate set where every value agrees
// scales to zero, matching the usual min-max convention.
func normalized(t *model.Table, service string, extract func(model.Value) (float64, bool)) map[model.Key]float64 {
	raw := make(map[model.Key]float64)
	for _, key := range t.Keys() {
		out, ok := t.Outcome(key, service)
		if !ok || !out.OK() {
			continue
		}
		if v, ok := extract(out.Value); ok {
			raw[key] = v
		}
	}
	if len(raw) == 0 {
		return raw
	}

	lo, hi := 0.0, 0.0
	first := true
	for _, v := range raw {
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	for k, v := range raw {
		raw[k] = (v - lo) / span
	}
	return raw
}

// Order returns the table's keys sorted by descending rank score. Keys
// without a rank outcome keep their relative input order at the tail.
func Order(t *model.Table) []model.Key {
	keys := t.Keys()
	score := func(k model.Key) (float64, bool) {
		out, ok := t.Outcome(k, ServiceName)
		if !ok || !out.OK() {
			return 0, false
		}
		r, ok := out.Value.(model.RankScore)
		return r.Score, ok
	}

	slices.SortStableFunc(keys, func(a, b model.Key) int {
		sa, oka := score(a)
		sb, okb := score(b)
		switch {
		case oka && okb:
			switch {
			case sa > sb:
				return -1
			case sa < sb:
				return 1
			}
			return 0
		case oka:
			return -1
		case okb:
			return 1
		}
		return 0
	})
	return keys
}
