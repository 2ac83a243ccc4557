package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Get for unknown or reclaimed sessions.
var ErrNotFound = errors.New("session not found")

// Store keeps session records between requests of one connection.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// Touch refreshes the idle timer of an unchanged session.
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	record   Record
	lastSeen time.Time
}

// MemoryStore is a process-local Store. Records idle for longer than the
// configured TTL are treated as abandoned connections and reclaimed.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	idleTTL time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore. A zero idleTTL keeps records until
// they are deleted.
func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Get loads a session by id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, ErrNotFound
	}
	return FromRecord(e.record)
}

// Save stores s and refreshes its idle timer.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	m.entries[s.ID()] = memoryEntry{record: s.Record(), lastSeen: m.now()}
	m.mu.Unlock()
	s.MarkClean()
	return nil
}

// Touch refreshes the idle timer without rewriting the record.
func (m *MemoryStore) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.lastSeen = m.now()
	m.entries[id] = e
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep removes idle records and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled. onSweep, if non-nil,
// receives the number of records removed by each sweep that removed any.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return m.idleTTL > 0 && m.now().Sub(e.lastSeen) > m.idleTTL
}
