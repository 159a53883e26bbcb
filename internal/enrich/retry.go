package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/epiworks/episeek/internal/model"
)

// retrying wraps an adapter with a bounded retry for transient failures.
// Rejections and unparsable responses are final: asking the same question
// again gets the same answer.
type retrying struct {
	Adapter
	attempts int
	backoff  time.Duration
}

// WithRetry gives a transient failure up to attempts tries, waiting backoff
// between them. attempts counts total calls, not extra ones; attempts <= 1
// returns the adapter unchanged.
func WithRetry(a Adapter, attempts int, backoff time.Duration) Adapter {
	if attempts <= 1 {
		return a
	}
	return &retrying{Adapter: a, attempts: attempts, backoff: backoff}
}

func (r *retrying) Call(ctx context.Context, key model.Key, p model.Params) model.Outcome {
	var out model.Outcome
	for attempt := 1; ; attempt++ {
		out = r.Adapter.Call(ctx, key, p)
		if out.OK() || !transient(out.Reason) || attempt == r.attempts {
			return out
		}
		slog.DebugContext(ctx, "retrying transient failure",
			"service", r.Name(), "key", string(key),
			"reason", string(out.Reason), "attempt", attempt)
		select {
		case <-time.After(r.backoff):
		case <-ctx.Done():
			return out
		}
	}
}

// Ping forwards to the wrapped adapter, so a retrying adapter still skips
// its whole batch when the backend is down.
func (r *retrying) Ping(ctx context.Context) error {
	if p, ok := r.Adapter.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func transient(r model.Reason) bool {
	return r == model.ReasonTimeout || r == model.ReasonTransport
}
