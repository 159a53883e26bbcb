package peptide

import (
	"math"
	"strconv"
	"strings"

	"github.com/epiworks/episeek/internal/model"
)

// kdScale is the Kyte-Doolittle hydropathy scale (1982). GRAVY is its
// arithmetic mean over the peptide.
var kdScale = map[byte]float64{
	'A': 1.8, 'C': 2.5, 'D': -3.5, 'E': -3.5,
	'F': 2.8, 'G': -0.4, 'H': -3.2, 'I': 4.5,
	'K': -3.9, 'L': 3.8, 'M': 1.9, 'N': -3.5,
	'P': -1.6, 'Q': -3.5, 'R': -4.5, 'S': -0.8,
	'T': -0.7, 'V': 4.2, 'W': -0.9, 'Y': -1.3,
}

// residueMass holds average residue masses; a peptide's mass is their sum
// plus one water.
var residueMass = map[byte]float64{
	'A': 71.0788, 'R': 156.1875, 'N': 114.1038, 'D': 115.0886,
	'C': 103.1388, 'E': 129.1155, 'Q': 128.1307, 'G': 57.0519,
	'H': 137.1411, 'I': 113.1594, 'L': 113.1594, 'K': 128.1741,
	'M': 131.1926, 'F': 147.1766, 'P': 97.1167, 'S': 87.0782,
	'T': 101.1051, 'W': 186.2132, 'Y': 163.1760, 'V': 99.1326,
}

const waterMass = 18.0153

// Dissociation constants after Bjellqvist. Side chains absent from the
// maps do not ionize.
var (
	pkaAcidic = map[byte]float64{'D': 4.05, 'E': 4.45, 'C': 9.0, 'Y': 10.0}
	pkaBasic  = map[byte]float64{'H': 5.98, 'K': 10.0, 'R': 12.0}

	pkaNTerm = 7.5
	pkaCTerm = 3.55
)

// Props computes the deterministic properties of one peptide. It assumes
// the key already passed validation; unknown residues contribute nothing.
func Props(key model.Key) model.PhysChem {
	seq := string(key)
	n := len(seq)
	if n == 0 {
		return model.PhysChem{}
	}

	var mw, gravy float64
	var aromatic int
	counts := make(map[byte]int, 20)
	for i := 0; i < n; i++ {
		c := seq[i]
		counts[c]++
		mw += residueMass[c]
		gravy += kdScale[c]
		if c == 'F' || c == 'W' || c == 'Y' {
			aromatic++
		}
	}

	fn := float64(n)
	return model.PhysChem{
		Length:      n,
		MW:          mw + waterMass,
		PI:          isoelectricPoint(counts),
		Gravy:       gravy / fn,
		Instability: instabilityIndex(seq),
		AliphaticIndex: 100 * (float64(counts['A'])/fn +
			2.9*float64(counts['V'])/fn +
			3.9*(float64(counts['I'])+float64(counts['L']))/fn),
		Aromaticity: float64(aromatic) / fn,
	}
}

// Outcomes computes properties for every key, shaped for a table merge.
// Properties are local and deterministic, so every outcome succeeds.
func Outcomes(keys []model.Key) map[model.Key]model.Outcome {
	out := make(map[model.Key]model.Outcome, len(keys))
	for _, key := range keys {
		out[key] = model.Success(Props(key))
	}
	return out
}

// netCharge is the peptide's charge at the given pH, with one free amino
// and one free carboxyl terminus.
func netCharge(counts map[byte]int, ph float64) float64 {
	positive := func(pka float64) float64 {
		return 1 / (1 + math.Pow(10, ph-pka))
	}
	negative := func(pka float64) float64 {
		return -1 / (1 + math.Pow(10, pka-ph))
	}

	charge := positive(pkaNTerm) + negative(pkaCTerm)
	for aa, pka := range pkaBasic {
		charge += float64(counts[aa]) * positive(pka)
	}
	for aa, pka := range pkaAcidic {
		charge += float64(counts[aa]) * negative(pka)
	}
	return charge
}

// isoelectricPoint finds the pH of zero net charge by bisection. Charge is
// strictly decreasing in pH, so 50 halvings of [0,14] pin it well past the
// reported precision.
func isoelectricPoint(counts map[byte]int) float64 {
	lo, hi := 0.0, 14.0
	for range 50 {
		mid := (lo + hi) / 2
		if netCharge(counts, mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// instabilityIndex is the Guruprasad dipeptide instability weight sum,
// scaled to length 10. Values above 40 flag an unstable peptide.
func instabilityIndex(seq string) float64 {
	if len(seq) < 2 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(seq); i++ {
		sum += diwv(seq[i], seq[i+1])
	}
	return 10 / float64(len(seq)) * sum
}

// diwv looks up the dipeptide instability weight. Pairs without a
// published weight carry the neutral 1.0.
func diwv(a, b byte) float64 {
	if w, ok := diwvExceptions[[2]byte{a, b}]; ok {
		return w
	}
	return 1.0
}

// diwvExceptions lists the non-neutral dipeptide weights of Guruprasad,
// Reddy and Pandit (1990), keyed by the first then second residue.
var diwvExceptions = map[[2]byte]float64{}

func init() {
	// Per-row exception lists, "XY weight" per entry.
	rows := map[byte]string{
		'A': "C 44.94, D -7.49, H -7.49, P 20.26",
		'C': "D 20.26, H 33.60, L 20.26, M 33.60, Q -6.54, T 33.60, V -6.54, W 24.68",
		'D': "F -6.54, K -7.49, R -6.54, S 20.26, T -14.03",
		'E': "C 44.94, D 20.26, E 33.60, H -6.54, I 20.26, P 20.26, Q 20.26, S 20.26, W -14.03",
		'F': "D 13.34, K -14.03, P 20.26, Y 33.60",
		'G': "A -7.49, E -6.54, G 13.34, I -7.49, K -7.49, N -7.49, T -7.49, W 13.34, Y -7.49",
		'H': "F -9.37, G -9.37, I 44.94, K 24.68, N 24.68, P -1.88, T -6.54, W -1.88, Y 44.94",
		'I': "E 44.94, H 13.34, K -7.49, L 20.26, P -1.88, V -7.49",
		'K': "G -7.49, I -7.49, L -7.49, M 33.60, P -6.54, Q 24.64, R 33.60, V -7.49",
		'L': "K -7.49, P 20.26, Q 33.60, R 20.26, W 24.68",
		'M': "A 13.34, H 58.28, M -1.88, P 44.94, Q -6.54, R -6.54, S 44.94, T -1.88, Y 24.68",
		'N': "C -1.88, F -14.03, G -14.03, I 44.94, K 24.68, P -1.88, Q -6.54, T -7.49, W -9.37",
		'P': "A 20.26, C -6.54, D -6.54, E 18.38, F 20.26, M -6.54, P 20.26, Q 20.26, R -6.54, S 20.26, V 20.26, W -1.88",
		'Q': "C -6.54, D 20.26, E 20.26, F -6.54, P 20.26, Q 20.26, S 44.94, V -6.54, Y -6.54",
		'R': "G -7.49, H 20.26, N 13.34, P 20.26, Q 20.26, R 58.28, S 44.94, W 58.28, Y -6.54",
		'S': "C 33.60, E 20.26, P 44.94, Q 20.26, R 20.26, S 20.26",
		'T': "E 20.26, F 13.34, G -7.49, N -14.03, Q -6.54, W -14.03",
		'V': "D -14.03, G -7.49, K -1.88, P 20.26, T -7.49, Y -6.54",
		'W': "A -14.03, G -9.37, H 24.68, L 13.34, M 24.68, N 13.34, T -14.03, V -7.49",
		'Y': "A 24.68, D 24.68, E -6.54, G -7.49, H 13.34, M 44.94, P 13.34, R -15.91, T -7.49, W -9.37, Y 13.34",
	}
	for first, list := range rows {
		for _, entry := range strings.Split(list, ",") {
			fields := strings.Fields(entry)
			w, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				panic("malformed instability weight: " + entry)
			}
			diwvExceptions[[2]byte{first, fields[0][0]}] = w
		}
	}
}
