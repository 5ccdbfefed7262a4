package store

import (
	"context"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
)

// MemoryKV keeps encoded records in process memory. Used by tests and STORE_BACKEND=memory.
type MemoryKV struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
	closed  bool
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{buckets: make(map[string]map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, bucket, key string, out any) (bool, error) {
	if !validName(bucket) || !validKey(key) {
		return false, ErrInvalidName
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	raw, ok := m.buckets[bucket][key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryKV) Put(_ context.Context, bucket, key string, v any) error {
	if !validName(bucket) || !validKey(key) {
		return ErrInvalidName
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	b := m.buckets[bucket]
	if b == nil {
		b = make(map[string][]byte)
		m.buckets[bucket] = b
	}
	b[key] = raw
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, bucket, key string) error {
	if !validName(bucket) || !validKey(key) {
		return ErrInvalidName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.buckets[bucket], key)
	return nil
}

func (m *MemoryKV) Keys(_ context.Context, bucket string) ([]string, error) {
	if !validName(bucket) {
		return nil, ErrInvalidName
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryKV) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
