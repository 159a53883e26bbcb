package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/epiworks/episeek/internal/model"
)

// Immuno talks to an immunogenicity predictor. Newer deployments answer
// with a JSON object carrying "score"; older ones use "immunogenicity";
// the oldest print the number in plain text. The fallback order is fixed
// and covered by tests.
type Immuno struct {
	c        client
	endpoint string
}

func NewImmuno(endpoint string, timeout time.Duration, hc *http.Client) *Immuno {
	return &Immuno{c: newClient(hc, timeout), endpoint: endpoint}
}

func (m *Immuno) Name() string { return "immunogenicity" }

func (m *Immuno) Ping(ctx context.Context) error {
	return m.c.ping(ctx, m.endpoint)
}

func (m *Immuno) Call(ctx context.Context, key model.Key, _ model.Params) model.Outcome {
	form := url.Values{"sequence_text": {string(key)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return model.Failure(model.ReasonTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, fail := m.c.do(ctx, req)
	if fail != nil {
		return *fail
	}

	score, ok := ExtractNumber(body,
		JSONNumberField("score"),
		JSONNumberField("immunogenicity"),
		FreeTextNumber(4096),
	)
	if !ok {
		return model.Failure(model.ReasonUnparsable,
			fmt.Errorf("immunogenicity: %w", model.ErrNoValue))
	}
	return model.Success(model.Immunogenicity{Score: score})
}
