// Package dispatch runs one batch of per-key remote calls through a bounded
// pool of worker slots.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/epiworks/episeek/internal/model"
	"github.com/epiworks/episeek/internal/pace"

	"golang.org/x/sync/errgroup"
)

// DefaultPoolSize bounds concurrent in-flight calls per batch.
const DefaultPoolSize = 5

// CallFunc executes one remote call. It must classify its own failures and
// never panic on remote misbehavior; a panic that still escapes is recorded
// against the key, not the batch.
type CallFunc func(ctx context.Context, key model.Key) model.Outcome

// Pool is a fixed-size set of worker slots sharing one pacing gate. A Pool
// is cheap and stateless between batches; the slot accounting lives inside
// RunBatch.
type Pool struct {
	size int
	gate pace.Gate
}

func New(size int, gate pace.Gate) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if gate == nil {
		gate = pace.None{}
	}
	return &Pool{size: size, gate: gate}
}

func (p *Pool) Size() int {
	return p.size
}

type keyed struct {
	key model.Key
	out model.Outcome
}

// RunBatch calls fn once per key, at most pool-size calls in flight, each
// call preceded by a pacing wait on its worker slot. Results are collected
// in completion order; one key's failure never cancels its siblings. The
// returned map has exactly one outcome per key: when ctx expires mid-batch,
// keys that never resolved are recorded as Failure(Timeout) and the call
// returns early, still complete.
//
// Keys are expected to be unique; duplicates only waste duplicate calls.
// RunBatch never retries, retry policy belongs to the caller.
func (p *Pool) RunBatch(ctx context.Context, keys []model.Key, fn CallFunc) map[model.Key]model.Outcome {
	outcomes := make(map[model.Key]model.Outcome, len(keys))
	if len(keys) == 0 {
		return outcomes
	}

	jobs := make(chan model.Key)
	// buffered so workers never block on a collector that already returned
	results := make(chan keyed, len(keys))

	var g errgroup.Group
	for range p.size {
		slot := p.gate.Slot()
		g.Go(func() error {
			for key := range jobs {
				if err := slot.Wait(ctx); err != nil {
					results <- keyed{key, model.Failure(model.ReasonTimeout, err)}
					continue
				}
				results <- keyed{key, safeCall(ctx, fn, key)}
			}
			return nil
		})
	}

	go func() {
		defer close(jobs)
		for _, key := range keys {
			select {
			case jobs <- key:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	// single writer of the outcome map
	pending := len(keys)
collect:
	for pending > 0 {
		select {
		case r := <-results:
			outcomes[r.key] = r.out
			pending--
		case <-done:
			break collect
		}
	}

	// drain what finished between the last receive and worker shutdown
	for {
		select {
		case r := <-results:
			if _, ok := outcomes[r.key]; !ok {
				outcomes[r.key] = r.out
			}
			continue
		default:
		}
		break
	}

	// deadline expiry: unresolved keys resolve as timeouts so the batch
	// contract (one outcome per key) still holds
	for _, key := range keys {
		if _, ok := outcomes[key]; !ok {
			outcomes[key] = model.Failure(model.ReasonTimeout, ctx.Err())
		}
	}
	return outcomes
}

func safeCall(ctx context.Context, fn CallFunc, key model.Key) (out model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "call panicked", "key", string(key), "panic", r)
			out = model.Failure(model.ReasonTransport, fmt.Errorf("call panicked: %v", r))
		}
	}()
	return fn(ctx, key)
}
