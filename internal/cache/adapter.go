package cache

import (
	"context"
	"log/slog"

	"github.com/epiworks/episeek/internal/enrich"
	"github.com/epiworks/episeek/internal/model"
)

// cached decorates an adapter with a read-through cache. Cache errors
// degrade to a miss; the remote call is the fallback, never the cache.
type cached struct {
	enrich.Adapter
	cache Cache
}

// Wrap returns a read-through caching version of a. Only successful
// outcomes are stored.
func Wrap(a enrich.Adapter, c Cache) enrich.Adapter {
	if c == nil {
		return a
	}
	return &cached{Adapter: a, cache: c}
}

// Ping forwards to the wrapped adapter; the cache itself has no backend
// to probe.
func (c *cached) Ping(ctx context.Context) error {
	if p, ok := c.Adapter.(enrich.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *cached) Call(ctx context.Context, key model.Key, p model.Params) model.Outcome {
	if out, hit, err := c.cache.Get(ctx, c.Name(), key); err == nil && hit {
		return out
	} else if err != nil {
		slog.WarnContext(ctx, "cache read failed, calling remote",
			"service", c.Name(), "key", string(key), "err", err)
	}

	out := c.Adapter.Call(ctx, key, p)
	if out.OK() {
		if err := c.cache.Put(ctx, c.Name(), key, out); err != nil {
			slog.WarnContext(ctx, "cache write failed",
				"service", c.Name(), "key", string(key), "err", err)
		}
	}
	return out
}
