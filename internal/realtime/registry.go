package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

// Key addresses every connection a viewer holds on one conversation.
type Key struct {
	ConversationID uuid.UUID
	ViewerID       uuid.UUID
}

func (k Key) String() string { return k.ConversationID.String() + ":" + k.ViewerID.String() }

type registration struct {
	conns        []Connection
	lastActivity time.Time
}

// Registry maps keys to their open connections. A connection is registered under at
// most one key and a key with no connections does not exist.
type Registry struct {
	mu      sync.RWMutex
	entries map[Key]*registration
	owner   map[string]Key
	now     func() time.Time
	log     *logger.Logger
}

func NewRegistry(log *logger.Logger, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entries: make(map[Key]*registration),
		owner:   make(map[string]Key),
		now:     now,
		log:     log.With("component", "ConnectionRegistry"),
	}
}

// Register adds c under key and refreshes the key's activity. It reports false when
// c was already registered under key.
func (r *Registry) Register(key Key, c Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owner[c.ID()]; ok {
		if prev == key {
			return false
		}
		r.removeLocked(prev, c.ID())
	}
	reg, ok := r.entries[key]
	if !ok {
		reg = &registration{}
		r.entries[key] = reg
	}
	reg.conns = append(reg.conns, c)
	reg.lastActivity = r.now()
	r.owner[c.ID()] = key
	r.log.Debug("connection registered", "key", key.String(), "conn_id", c.ID(), "count", len(reg.conns))
	return true
}

// Unregister removes c from key. It reports false when c was not registered there.
func (r *Registry) Unregister(key Key, c Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.owner[c.ID()]; !ok || owner != key {
		return false
	}
	r.removeLocked(key, c.ID())
	return true
}

func (r *Registry) removeLocked(key Key, connID string) {
	delete(r.owner, connID)
	reg, ok := r.entries[key]
	if !ok {
		return
	}
	for i, c := range reg.conns {
		if c.ID() == connID {
			reg.conns = append(reg.conns[:i:i], reg.conns[i+1:]...)
			break
		}
	}
	if len(reg.conns) == 0 {
		delete(r.entries, key)
	}
}

// Snapshot returns a copy of key's connections in registration order.
func (r *Registry) Snapshot(key Key) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[key]
	if !ok {
		return nil
	}
	out := make([]Connection, len(reg.conns))
	copy(out, reg.conns)
	return out
}

func (r *Registry) Touch(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.entries[key]; ok {
		reg.lastActivity = r.now()
	}
}

func (r *Registry) LastActivity(key Key) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return reg.lastActivity, true
}

// Len returns the number of keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// RemoveInactive detaches every key idle for longer than threshold at now and
// returns the detached connections by key. Closing them is the caller's job.
func (r *Registry) RemoveInactive(now time.Time, threshold time.Duration) map[Key][]Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out map[Key][]Connection
	for key, reg := range r.entries {
		if now.Sub(reg.lastActivity) <= threshold {
			continue
		}
		if out == nil {
			out = make(map[Key][]Connection)
		}
		out[key] = reg.conns
		for _, c := range reg.conns {
			delete(r.owner, c.ID())
		}
		delete(r.entries, key)
	}
	return out
}

// CloseAll detaches and closes every connection. Used on shutdown.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[Key]*registration)
	r.owner = make(map[string]Key)
	r.mu.Unlock()

	n := 0
	for _, reg := range entries {
		for _, c := range reg.conns {
			_ = c.Close(code, reason)
			n++
		}
	}
	return n
}
