package cache

import (
	"context"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process cache. Expired entries are evicted on read and by Sweep.
type Memory struct {
	entries *xsync.Map[string, memoryEntry]
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: xsync.NewMap[string, memoryEntry](),
		now:     time.Now,
	}
}

func (m *Memory) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if m.expired(e) {
		m.entries.Compute(key, func(old memoryEntry, loaded bool) (memoryEntry, xsync.ComputeOp) {
			if loaded && m.expired(old) {
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores a copy of value. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries.Store(key, e)
	return nil
}

func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) (int64, error) {
	var removed int64
	m.entries.Range(func(key string, _ memoryEntry) bool {
		if strings.HasPrefix(key, prefix) {
			if _, loaded := m.entries.LoadAndDelete(key); loaded {
				removed++
			}
		}
		return true
	})
	return removed, nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	removed := 0
	m.entries.Range(func(key string, e memoryEntry) bool {
		if m.expired(e) {
			m.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	return m.entries.Size()
}

func (m *Memory) Close() error {
	m.entries.Clear()
	return nil
}
