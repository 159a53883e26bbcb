package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/epiworks/episeek/internal/model"
)

// Annot talks to a protein annotation lookup. The key is appended to the
// base URL as a path segment and the service answers with a JSON record.
// The protein name lives either in the flat "protein_name" field or, with
// UniProt-shaped records, nested under proteinDescription. Free-text
// scanning makes no sense for names, so the fallback chain stops there.
type Annot struct {
	c    client
	base string
}

func NewAnnot(base string, timeout time.Duration, hc *http.Client) *Annot {
	return &Annot{c: newClient(hc, timeout), base: strings.TrimRight(base, "/")}
}

func (a *Annot) Name() string { return "annotation" }

func (a *Annot) Ping(ctx context.Context) error {
	return a.c.ping(ctx, a.base)
}

func (a *Annot) Call(ctx context.Context, key model.Key, _ model.Params) model.Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+"/"+string(key), nil)
	if err != nil {
		return model.Failure(model.ReasonTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	body, fail := a.c.do(ctx, req)
	if fail != nil {
		return *fail
	}
	return parseAnnotation(body)
}

// uniprotRecord is the subset of a UniProt entry the lookup cares about.
type uniprotRecord struct {
	ProteinDescription struct {
		RecommendedName struct {
			FullName struct {
				Value string `json:"value"`
			} `json:"fullName"`
		} `json:"recommendedName"`
	} `json:"proteinDescription"`
	Genes []struct {
		GeneName struct {
			Value string `json:"value"`
		} `json:"geneName"`
	} `json:"genes"`
	Organism struct {
		ScientificName string `json:"scientificName"`
	} `json:"organism"`
}

func parseAnnotation(body []byte) model.Outcome {
	out := model.Annotation{}

	if protein, ok := JSONStringField("protein_name")(body); ok {
		out.Protein = protein
		out.Gene, _ = JSONStringField("gene")(body)
		out.Organism, _ = JSONStringField("organism")(body)
		return model.Success(out)
	}

	var rec uniprotRecord
	if err := json.Unmarshal(body, &rec); err == nil {
		out.Protein = rec.ProteinDescription.RecommendedName.FullName.Value
		if len(rec.Genes) > 0 {
			out.Gene = rec.Genes[0].GeneName.Value
		}
		out.Organism = rec.Organism.ScientificName
		if out.Protein != "" {
			return model.Success(out)
		}
	}

	return model.Failure(model.ReasonUnparsable,
		fmt.Errorf("annotation: %w", model.ErrNoValue))
}
