// Package cache memoizes successful enrichment outcomes per service and
// key, either in process memory or in a shared redis, so repeated runs over
// overlapping key sets skip remote calls they already paid for. Failures
// are never cached: a timeout today says nothing about tomorrow.
package cache

import (
	"context"
	"sync"

	"github.com/epiworks/episeek/internal/model"
)

type Cache interface {
	// Get returns the cached outcome for (service, key), if any.
	Get(ctx context.Context, service string, key model.Key) (model.Outcome, bool, error)
	// Put stores a successful outcome. Callers must not pass failures.
	Put(ctx context.Context, service string, key model.Key, out model.Outcome) error
}

// Memory is a process-local cache. The zero value is not usable, construct
// with NewMemory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]model.Outcome
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]model.Outcome)}
}

func memoryKey(service string, key model.Key) string {
	return service + "\x00" + string(key)
}

func (m *Memory) Get(_ context.Context, service string, key model.Key) (model.Outcome, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, ok := m.entries[memoryKey(service, key)]
	return out, ok, nil
}

func (m *Memory) Put(_ context.Context, service string, key model.Key, out model.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey(service, key)] = out
	return nil
}
