package chunkstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sweepEvery bounds how often Append scans for expired entries.
const sweepEvery = time.Minute

type memEntry struct {
	buf     strings.Builder
	seen    map[string]struct{}
	expires time.Time
}

// Memory is a single-process Store used when no Redis is configured.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]*memEntry
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return NewMemoryWithClock(ttl, time.Now)
}

func NewMemoryWithClock(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]*memEntry), ttl: ttl, now: now}
}

func (m *Memory) Append(_ context.Context, messageID uuid.UUID, chunkID, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := key(messageID)
	e, ok := m.entries[k]
	if !ok || !now.Before(e.expires) {
		e = &memEntry{seen: make(map[string]struct{})}
		m.entries[k] = e
	}
	e.expires = now.Add(m.ttl)
	if !now.Before(m.nextSweep) {
		m.evictLocked(now)
		m.nextSweep = now.Add(sweepEvery)
	}
	if _, dup := e.seen[chunkID]; dup {
		return false, nil
	}
	e.seen[chunkID] = struct{}{}
	e.buf.WriteString(text)
	return true, nil
}

func (m *Memory) Read(_ context.Context, messageID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key(messageID)]
	if !ok || !m.now().Before(e.expires) {
		return "", nil
	}
	return e.buf.String(), nil
}

// Len reports the number of buffered messages, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) evictLocked(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
