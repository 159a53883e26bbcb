// Package enrich drives one enrichment run: every configured service is
// dispatched over the key set in turn and its outcomes are merged into the
// shared result table. Services run sequentially relative to each other;
// the parallelism lives inside each service's batch.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/epiworks/episeek/internal/dispatch"
	"github.com/epiworks/episeek/internal/model"
)

// Adapter is one enrichment service. Call resolves a single key and must
// classify its own failures; it never returns an error out of band.
type Adapter interface {
	Name() string
	Call(ctx context.Context, key model.Key, p model.Params) model.Outcome
}

// Pinger is optionally implemented by adapters that can probe their
// backend. When the probe fails the whole batch is skipped and every key
// gets a uniform transport failure, instead of burning pool slots and
// pacing delays on a dead service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// phase tracks where a service is in its run. Transitions only move
// forward; a service that reached merged is never dispatched again within
// the same run.
type phase int

const (
	phasePending phase = iota
	phaseDispatching
	phaseDrained
	phaseMerged
)

func (p phase) String() string {
	switch p {
	case phasePending:
		return "pending"
	case phaseDispatching:
		return "dispatching"
	case phaseDrained:
		return "drained"
	case phaseMerged:
		return "merged"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Orchestrator runs adapters over a table using one shared dispatch pool.
type Orchestrator struct {
	pool   *dispatch.Pool
	params model.Params
	phases map[string]phase
}

func New(pool *dispatch.Pool, params model.Params) *Orchestrator {
	return &Orchestrator{
		pool:   pool,
		params: params,
		phases: make(map[string]phase),
	}
}

// Run enriches table with every adapter in order. A service whose column
// family is already present in the table is skipped, so a run can resume
// from a partially enriched table without duplicate remote work. Run only
// returns an error when ctx is done; per-key and whole-service failures
// land in the table.
func (o *Orchestrator) Run(ctx context.Context, table *model.Table, adapters ...Adapter) error {
	for _, a := range adapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.runService(ctx, table, a)
	}
	return nil
}

func (o *Orchestrator) runService(ctx context.Context, table *model.Table, a Adapter) {
	name := a.Name()
	log := slog.With("service", name)

	if got := o.phases[name]; got != phasePending {
		log.Warn("service already ran, skipping", "phase", got.String())
		return
	}
	if slices.Contains(table.Services(), name) {
		log.Info("table already carries service, skipping")
		o.phases[name] = phaseMerged
		return
	}

	if p, ok := a.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			log.Warn("service unreachable, failing batch without dispatch", "err", err)
			table.Merge(name, uniformFailure(table.Keys(), err))
			o.phases[name] = phaseMerged
			return
		}
	}

	o.phases[name] = phaseDispatching
	log.Info("dispatching", "keys", table.Len(), "pool", o.pool.Size())

	outcomes := o.pool.RunBatch(ctx, table.Keys(), func(ctx context.Context, key model.Key) model.Outcome {
		return a.Call(ctx, key, o.params)
	})

	o.phases[name] = phaseDrained
	table.Merge(name, outcomes)
	o.phases[name] = phaseMerged
	log.Info("merged", "keys", len(outcomes), "failed", table.FailureCount(name))
}

func uniformFailure(keys []model.Key, err error) map[model.Key]model.Outcome {
	out := make(map[model.Key]model.Outcome, len(keys))
	for _, key := range keys {
		out[key] = model.Failure(model.ReasonTransport, err)
	}
	return out
}
