package store

import (
	"container/list"
	"context"
	"time"
)

type entry struct {
	key        string
	value      []byte
	createdAt  time.Time
	expiresAt  time.Time
	lastAccess time.Time
	seq        uint64
}

// Memory is an in-process Store backed by a map and a recency list.
// The list front holds the most recently touched entry.
type Memory struct {
	items map[string]*list.Element
	order *list.List
	seq   uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Get returns the value for key, or ErrNotFound if the key is absent or
// expired. Expired entries are removed on observation.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	el, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	e := el.Value.(*entry)
	if !e.expiresAt.IsZero() && !time.Now().Before(e.expiresAt) {
		m.order.Remove(el)
		delete(m.items, key)
		return nil, ErrNotFound
	}
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, nil
}

// Put inserts or replaces the entry for key. A zero ttl means the entry
// never expires. Replacement counts as a fresh insertion: the creation
// time, expiry deadline and insertion sequence all reset.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl != 0 {
		expiresAt = now.Add(ttl)
	}

	m.seq++
	e := &entry{
		key:        key,
		value:      stored,
		createdAt:  now,
		expiresAt:  expiresAt,
		lastAccess: now,
		seq:        m.seq,
	}

	if el, ok := m.items[key]; ok {
		el.Value = e
		m.order.MoveToFront(el)
		return nil
	}
	m.items[key] = m.order.PushFront(e)
	return nil
}

// Has reports whether key occupies a slot, expired or not.
func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	_, ok := m.items[key]
	return ok, nil
}

// Remove deletes the entry for key and reports whether it was present.
func (m *Memory) Remove(_ context.Context, key string) (bool, error) {
	el, ok := m.items[key]
	if !ok {
		return false, nil
	}
	m.order.Remove(el)
	delete(m.items, key)
	return true, nil
}

// Touch bumps the entry's last-access time and moves it to the recency
// front. A positive ttl also slides the expiry deadline forward.
func (m *Memory) Touch(_ context.Context, key string, ttl time.Duration) error {
	el, ok := m.items[key]
	if !ok {
		return ErrNotFound
	}
	e := el.Value.(*entry)
	now := time.Now()
	e.lastAccess = now
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.order.MoveToFront(el)
	return nil
}

// Len returns the number of held entries, expired ones included.
func (m *Memory) Len(_ context.Context) (int, error) {
	return len(m.items), nil
}

// Snapshot returns metadata for every held entry, walking the recency list
// from least to most recently touched.
func (m *Memory) Snapshot(_ context.Context) ([]EntryInfo, error) {
	infos := make([]EntryInfo, 0, m.order.Len())
	for el := m.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		infos = append(infos, EntryInfo{
			Key:        e.key,
			Seq:        e.seq,
			LastAccess: e.lastAccess,
			ExpiresAt:  e.expiresAt,
		})
	}
	return infos, nil
}

// Clear drops every entry.
func (m *Memory) Clear(_ context.Context) error {
	m.items = make(map[string]*list.Element)
	m.order.Init()
	return nil
}

// Available always reports true for the in-process store.
func (m *Memory) Available(_ context.Context) bool { return true }

// Close is a no-op for the in-process store.
func (m *Memory) Close() error { return nil }
