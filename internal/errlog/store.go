package errlog

import (
	"context"
	"sync"
	"time"
)

const defaultCapacity = 100

// Store keeps the most recent records.
type Store interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first. limit <= 0 means all.
	Recent(ctx context.Context, limit int) ([]Record, error)
	// EvictBefore removes records older than cutoff.
	EvictBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// MemoryStore is a fixed-size ring buffer.
type MemoryStore struct {
	mu   sync.Mutex
	buf  []Record
	next int
	size int
}

// NewMemoryStore keeps at most capacity records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStore{buf: make([]Record, capacity)}
}

func (m *MemoryStore) Append(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf[m.next] = r
	m.next = (m.next + 1) % len(m.buf)
	if m.size < len(m.buf) {
		m.size++
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recentLocked(limit), nil
}

func (m *MemoryStore) recentLocked(limit int) []Record {
	n := m.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out
}

func (m *MemoryStore) EvictBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.recentLocked(0)
	kept := make([]Record, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].Time.Before(cutoff) {
			kept = append(kept, all[i])
		}
	}

	removed := len(all) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	m.buf = make([]Record, len(m.buf))
	copy(m.buf, kept)
	m.size = len(kept)
	m.next = len(kept) % len(m.buf)
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }
