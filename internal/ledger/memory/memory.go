// Package memory provides an in-memory ledger for tests and dry runs.
package memory

import (
	"context"
	"sync"
)

// Ledger stores processed keys in a set.
type Ledger struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// New returns an empty Ledger, optionally pre-seeded with keys.
func New(keys ...string) *Ledger {
	l := &Ledger{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		l.keys[k] = struct{}{}
	}
	return l
}

// Seen reports whether key was marked.
func (l *Ledger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok, nil
}

// Mark records key.
func (l *Ledger) Mark(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = struct{}{}
	return nil
}

// Keys returns the number of recorded keys.
func (l *Ledger) Keys() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keys)
}
