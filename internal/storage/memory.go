package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps records in a map shared by every store opened on it.
// Watchers are notified synchronously, after the mutation is visible.
type MemoryBackend struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[int]func(Event)
	nextID   int
	closed   bool

	// FailWrites makes Save and Delete fail, simulating a full or disabled store.
	FailWrites error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:     make(map[string][]byte),
		watchers: make(map[int]func(Event)),
	}
}

func (m *MemoryBackend) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrBackendClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryBackend) Save(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrBackendClosed
	}
	if m.FailWrites != nil {
		m.mu.Unlock()
		return m.FailWrites
	}
	m.data[key] = append([]byte(nil), value...)
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	for _, fn := range watchers {
		fn(Event{Key: key, Value: append([]byte(nil), value...), Writer: WriterFrom(ctx)})
	}
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrBackendClosed
	}
	if m.FailWrites != nil {
		m.mu.Unlock()
		return m.FailWrites
	}
	var removed []string
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			removed = append(removed, k)
		}
	}
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	for _, k := range removed {
		for _, fn := range watchers {
			fn(Event{Key: k, Removed: true, Writer: WriterFrom(ctx)})
		}
	}
	return nil
}

// Watch registers fn for every later mutation.
func (m *MemoryBackend) Watch(fn func(Event)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrBackendClosed
	}
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}, nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.watchers = make(map[int]func(Event))
	return nil
}

// caller holds m.mu
func (m *MemoryBackend) snapshotWatchers() []func(Event) {
	out := make([]func(Event), 0, len(m.watchers))
	for _, fn := range m.watchers {
		out = append(out, fn)
	}
	return out
}
