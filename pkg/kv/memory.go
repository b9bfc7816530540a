package kv

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Store with TTL support, used for local runs and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time
}

type MemoryOption func(*Memory)

// WithClock подменяет часы, чтобы тесты могли «перематывать» TTL.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		data: make(map[string]memEntry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("kv.Memory.Get", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok || e.expired(m.now()) {
		return nil, ErrNotFound
	}
	return bytes.Clone(e.value), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return unavailable("kv.Memory.Set", err)
	}

	e := memEntry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = e
	return nil
}

func (m *Memory) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("kv.Memory.CompareAndSwap", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.data[key]
	if ok && cur.expired(m.now()) {
		ok = false
	}
	if prev == nil {
		if ok {
			return false, nil
		}
	} else if !ok || !bytes.Equal(cur.value, prev) {
		return false, nil
	}

	m.data[key] = memEntry{value: bytes.Clone(next)}
	return true, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable("kv.Memory.Ping", err)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
