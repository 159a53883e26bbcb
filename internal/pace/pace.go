// Package pace throttles dispatches against shared remote endpoints.
//
// The baseline gate is per-worker-slot: every slot waits at least the
// configured delay since its own previous dispatch, so aggregate throughput
// is roughly pool_size / delay. Callers that need a true aggregate-rate
// guarantee use the token-bucket gate instead.
package pace

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate hands out one Waiter per worker slot.
type Gate interface {
	Slot() Waiter
}

// Waiter blocks a worker slot until its next dispatch is allowed. It is used
// by a single goroutine at a time.
type Waiter interface {
	Wait(ctx context.Context) error
}

// SlotGate enforces a minimum interval between consecutive dispatches of the
// same worker slot. Slots do not coordinate with each other.
type SlotGate struct {
	delay time.Duration
}

func NewSlotGate(delay time.Duration) *SlotGate {
	return &SlotGate{delay: delay}
}

func (g *SlotGate) Slot() Waiter {
	return &slotWaiter{delay: g.delay}
}

type slotWaiter struct {
	delay time.Duration
	last  time.Time
}

func (w *slotWaiter) Wait(ctx context.Context) error {
	if w.delay > 0 && !w.last.IsZero() {
		if d := w.delay - time.Since(w.last); d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	w.last = time.Now()
	return nil
}

// RateGate bounds the aggregate request rate across all slots with one
// shared token bucket.
type RateGate struct {
	limiter *rate.Limiter
}

func NewRateGate(rps float64, burst int) *RateGate {
	if burst < 1 {
		burst = 1
	}
	return &RateGate{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (g *RateGate) Slot() Waiter {
	return rateWaiter{limiter: g.limiter}
}

type rateWaiter struct {
	limiter *rate.Limiter
}

func (w rateWaiter) Wait(ctx context.Context) error {
	return w.limiter.Wait(ctx)
}

// None is a gate without any pacing, for tests and local stubs.
type None struct{}

func (None) Slot() Waiter {
	return noWait{}
}

type noWait struct{}

func (noWait) Wait(ctx context.Context) error {
	return ctx.Err()
}
