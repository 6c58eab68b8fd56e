// Package store provides DocumentStore implementations that need no external service.
package store

import (
	"context"
	"sync"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// Load returns a copy of the stored body.
func (m *Memory) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.docs[name]), nil
}

// Update serializes writers and applies staged bodies only if fn succeeds.
func (m *Memory) Update(ctx context.Context, fn func(tx generic.DocumentTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{parent: m, staged: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for name, body := range tx.staged {
		m.docs[name] = body
	}
	return nil
}

// Reset drops every document.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string][]byte)
}

type memoryTx struct {
	parent *Memory
	staged map[string][]byte
}

func (t *memoryTx) Get(name string) ([]byte, error) {
	if body, ok := t.staged[name]; ok {
		return clone(body), nil
	}
	return clone(t.parent.docs[name]), nil
}

func (t *memoryTx) Put(name string, body []byte) {
	t.staged[name] = clone(body)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
