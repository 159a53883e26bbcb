package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/epiworks/episeek/internal/model"
)

// Affinity talks to a binding affinity predictor. The service accepts a
// form-encoded POST and answers with a tab-separated table whose header
// names the columns; the predicted IC50 appears either as "ic50" or, with
// some method backends, as "affinity". Peptides the backend cannot score
// come back with the sentinel "NA" instead of a number.
type Affinity struct {
	c        client
	endpoint string
}

// NewAffinity returns an affinity adapter against endpoint. A nil hc uses
// a default client with DefaultTimeout.
func NewAffinity(endpoint string, timeout time.Duration, hc *http.Client) *Affinity {
	return &Affinity{c: newClient(hc, timeout), endpoint: endpoint}
}

func (a *Affinity) Name() string { return "affinity" }

// Ping checks the endpoint is reachable before a batch is dispatched.
func (a *Affinity) Ping(ctx context.Context) error {
	return a.c.ping(ctx, a.endpoint)
}

func (a *Affinity) Call(ctx context.Context, key model.Key, p model.Params) model.Outcome {
	form := url.Values{
		"method":        {p.Method},
		"sequence_text": {string(key)},
		"allele":        {p.Allele},
		"length":        {strconv.Itoa(len(key))},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return model.Failure(model.ReasonTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, fail := a.c.do(ctx, req)
	if fail != nil {
		return *fail
	}
	return parseAffinity(body, p)
}

func parseAffinity(body []byte, p model.Params) model.Outcome {
	tab, ok := parseTSV(body)
	if !ok {
		// Some backends answer with a bare number instead of a table.
		if v, ok := ExtractNumber(body, FreeTextNumber(4096)); ok {
			return model.Success(model.Affinity{IC50: v, Allele: p.Allele, Method: p.Method})
		}
		return model.Failure(model.ReasonUnparsable,
			fmt.Errorf("affinity: response is neither a table nor a number"))
	}

	ic50, found := tab.float("ic50")
	if !found {
		ic50, found = tab.float("affinity")
	}
	if !found {
		if tab.sentinel("ic50") || tab.sentinel("affinity") {
			return model.Failure(model.ReasonRejected,
				fmt.Errorf("affinity: peptide not scorable by backend"))
		}
		return model.Failure(model.ReasonUnparsable,
			fmt.Errorf("affinity: no ic50 column in response"))
	}

	out := model.Affinity{IC50: ic50, Allele: p.Allele, Method: p.Method}
	if rank, ok := tab.float("percentile_rank"); ok {
		out.Percentile = rank
	} else if rank, ok := tab.float("rank"); ok {
		out.Percentile = rank
	}
	if allele, ok := tab.str("allele"); ok {
		out.Allele = allele
	}
	if method, ok := tab.str("method"); ok {
		out.Method = method
	}
	return model.Success(out)
}

// tsvRow is the first data row of a tab-separated response, indexed by the
// header line.
type tsvRow struct {
	cols map[string]string
}

func parseTSV(body []byte) (tsvRow, bool) {
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) < 2 {
		return tsvRow{}, false
	}
	header := strings.Split(strings.TrimRight(lines[0], "\r"), "\t")
	data := strings.Split(strings.TrimRight(lines[1], "\r"), "\t")
	if len(header) < 2 || len(data) != len(header) {
		return tsvRow{}, false
	}
	cols := make(map[string]string, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = strings.TrimSpace(data[i])
	}
	return tsvRow{cols: cols}, true
}

func (t tsvRow) str(name string) (string, bool) {
	v, ok := t.cols[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (t tsvRow) float(name string) (float64, bool) {
	v, ok := t.str(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// sentinel reports whether the column exists but holds the not-scorable
// marker.
func (t tsvRow) sentinel(name string) bool {
	v, ok := t.str(name)
	return ok && (v == "NA" || v == "-")
}
