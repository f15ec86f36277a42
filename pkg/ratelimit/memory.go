package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter is a process-local sharded Counter. Expired buckets are
// discarded lazily on access and by a periodic sweep inside Incr.
type MemoryCounter struct {
	entries   *xsync.MapOf[string, memoryEntry]
	now       func() time.Time
	lastSweep atomic.Int64
}

var _ Counter = (*MemoryCounter)(nil)

func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		entries: xsync.NewMapOf[string, memoryEntry](),
		now:     now,
	}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := m.now()
	entry, _ := m.entries.Compute(key, func(old memoryEntry, loaded bool) (memoryEntry, bool) {
		if !loaded || !now.Before(old.expiresAt) {
			return memoryEntry{count: 1, expiresAt: now.Add(ttl)}, false
		}
		old.count++
		return old, false
	})
	m.sweep(now, ttl)
	return entry.count, nil
}

func (m *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	entry, ok := m.entries.Load(key)
	if !ok || !m.now().Before(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

func (m *MemoryCounter) Decr(_ context.Context, key string) error {
	m.entries.Compute(key, func(old memoryEntry, loaded bool) (memoryEntry, bool) {
		if !loaded {
			return old, true
		}
		if old.count <= 1 {
			return old, true
		}
		old.count--
		return old, false
	})
	return nil
}

func (m *MemoryCounter) Mark(_ context.Context, key string, value int64, ttl time.Duration) error {
	now := m.now()
	m.entries.Compute(key, func(old memoryEntry, loaded bool) (memoryEntry, bool) {
		if !loaded || !now.Before(old.expiresAt) || value > old.count {
			return memoryEntry{count: value, expiresAt: now.Add(ttl)}, false
		}
		return old, false
	})
	return nil
}

// Len returns the number of tracked buckets, expired or not.
func (m *MemoryCounter) Len() int {
	return m.entries.Size()
}

func (m *MemoryCounter) sweep(now time.Time, every time.Duration) {
	last := m.lastSweep.Load()
	if now.UnixNano()-last < int64(every) || !m.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	m.entries.Range(func(key string, entry memoryEntry) bool {
		if !now.Before(entry.expiresAt) {
			m.entries.Delete(key)
		}
		return true
	})
}
