package model

import "strconv"

// Column is one rendered cell of a service column group.
type Column struct {
	Name  string
	Value string
}

// Value is a typed per-service result. Columns returns the column group the
// value contributes to the result table, in a fixed order.
type Value interface {
	Columns() []Column
}

// Affinity is a binding-affinity prediction for one peptide and allele.
type Affinity struct {
	IC50       float64 // nM, lower binds stronger
	Percentile float64
	Allele     string
	Method     string
}

func (a Affinity) Columns() []Column {
	return []Column{
		{"ic50_nm", ftoa(a.IC50)},
		{"percentile", ftoa(a.Percentile)},
		{"allele", a.Allele},
		{"method", a.Method},
	}
}

// Immunogenicity is a predicted immunogenicity score, higher is better.
type Immunogenicity struct {
	Score float64
}

func (i Immunogenicity) Columns() []Column {
	return []Column{{"immunogenicity", ftoa(i.Score)}}
}

// Annotation is a sequence annotation lookup result.
type Annotation struct {
	Protein  string
	Gene     string
	Organism string
}

func (a Annotation) Columns() []Column {
	return []Column{
		{"protein", a.Protein},
		{"gene", a.Gene},
		{"organism", a.Organism},
	}
}

// PhysChem are deterministic physico-chemical properties of a peptide.
type PhysChem struct {
	Length         int
	MW             float64
	PI             float64
	Gravy          float64
	Instability    float64
	AliphaticIndex float64
	Aromaticity    float64
}

func (p PhysChem) Columns() []Column {
	return []Column{
		{"length", strconv.Itoa(p.Length)},
		{"mw", ftoa(p.MW)},
		{"pi", ftoa(p.PI)},
		{"gravy", ftoa(p.Gravy)},
		{"instability", ftoa(p.Instability)},
		{"aliphatic_index", ftoa(p.AliphaticIndex)},
		{"aromaticity", ftoa(p.Aromaticity)},
	}
}

// Conservation is the positional conservation of a peptide within the
// candidate set.
type Conservation struct {
	Score float64
}

func (c Conservation) Columns() []Column {
	return []Column{{"conservation", ftoa(c.Score)}}
}

// RankScore is the combined normalized score used for final ordering.
type RankScore struct {
	Score float64
}

func (r RankScore) Columns() []Column {
	return []Column{{"rank_score", ftoa(r.Score)}}
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
