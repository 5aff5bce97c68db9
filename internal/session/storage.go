// Package session holds the per-browser-session state containers: the auth,
// user and onboarding stores, each persisted to its own slot.
package session

import (
	"context"
	"encoding/json"
	"sync"
)

// Slot names. Each store owns exactly one.
const (
	SlotAuth       = "auth-store"
	SlotUser       = "user-store"
	SlotOnboarding = "onboarding-store"
)

// Storage is session-scoped slot storage. Values are opaque serialized records.
type Storage interface {
	Load(ctx context.Context, slot string) ([]byte, bool, error)
	Save(ctx context.Context, slot string, value []byte) error
	Remove(ctx context.Context, slot string) error
	// Update reads the current value of slot and writes fn's result back
	// atomically. fn may run more than once if the slot changes underneath it.
	Update(ctx context.Context, slot string, fn UpdateFunc) error
}

// UpdateFunc maps the persisted value (ok is false when the slot is empty) to the next one.
type UpdateFunc func(current []byte, ok bool) ([]byte, error)

// MemoryStorage keeps slots in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{slots: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, slot string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.slots[slot]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), val...), true, nil
}

func (m *MemoryStorage) Save(_ context.Context, slot string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Update(_ context.Context, slot string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.slots[slot]
	next, err := fn(append([]byte(nil), cur...), ok)
	if err != nil {
		return err
	}
	m.slots[slot] = append([]byte(nil), next...)
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, slot)
	return nil
}

// Has reports whether slot currently holds a value.
func (m *MemoryStorage) Has(slot string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.slots[slot]
	return ok
}

// cell is a persisted value guarded by its own lock.
type cell[T any] struct {
	mu      sync.Mutex
	slot    string
	storage Storage
	zero    func() T
	state   T
}

func newCell[T any](storage Storage, slot string, zero func() T) *cell[T] {
	return &cell[T]{slot: slot, storage: storage, zero: zero, state: zero()}
}

// hydrate replaces the in-memory state with the persisted one, if any.
func (c *cell[T]) hydrate(ctx context.Context) error {
	raw, ok, err := c.storage.Load(ctx, c.slot)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.decode(raw, ok)
	return nil
}

func (c *cell[T]) decode(raw []byte, ok bool) T {
	if !ok {
		return c.zero()
	}
	next := c.zero()
	if err := json.Unmarshal(raw, &next); err != nil {
		// A corrupt slot behaves like an empty one.
		return c.zero()
	}
	return next
}

func (c *cell[T]) get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// update applies fn to the persisted state, not to the snapshot taken at
// hydrate time, so a concurrent clear from another request is never undone.
func (c *cell[T]) update(ctx context.Context, fn func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next T
	err := c.storage.Update(ctx, c.slot, func(raw []byte, ok bool) ([]byte, error) {
		next = c.decode(raw, ok)
		fn(&next)
		return json.Marshal(next)
	})
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// clear drops the slot and resets the state. Clearing an empty cell is a no-op.
func (c *cell[T]) clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.zero()
	return c.storage.Remove(ctx, c.slot)
}
