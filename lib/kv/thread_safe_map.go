package kv

import (
	"errors"
	"log/slog"
	"sync"
)

type threadSafeMap[K comparable, V any] struct {
	lock           sync.RWMutex
	items          map[K]V
	initCap        uint32
	isClosableItem bool
}

func (m *threadSafeMap[K, V]) AddOrUpdate(key K, obj V) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.items == nil {
		return errors.New("[thread-safe-map] already purged")
	}
	m.items[key] = obj
	return nil
}

func (m *threadSafeMap[K, V]) Replace(items map[K]V) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.items == nil {
		return errors.New("[thread-safe-map] already purged")
	}
	m.items = items
	return nil
}

func (m *threadSafeMap[K, V]) Delete(key K) (V, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	item, exists := m.items[key]
	if !exists {
		return *new(V), errors.New("[thread-safe-map] not found to delete")
	}
	delete(m.items, key)
	return item, nil
}

func (m *threadSafeMap[K, V]) Get(key K) (V, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	item, exists := m.items[key]
	return item, exists
}

func (m *threadSafeMap[K, V]) ListKeys(filters ...SafeStoreKeyFilterFunc[K]) []K {
	// Nil filters are skipped. With no surviving filter every key
	// passes, a key passes otherwise when any one filter takes it.
	active := make([]SafeStoreKeyFilterFunc[K], 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		active = append(active, defaultAllKeysFilter[K])
	}

	m.lock.RLock()
	defer m.lock.RUnlock()
	keys := make([]K, 0, len(m.items))
	for key := range m.items {
		for i := range active {
			if !active[i](key) {
				continue
			}
			keys = append(keys, key)
			break
		}
	}
	return keys
}

func (m *threadSafeMap[K, V]) ListValues(keys ...K) []V {
	wanted := make(map[K]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}

	m.lock.RLock()
	defer m.lock.RUnlock()
	values := make([]V, 0, len(m.items))
	for key, item := range m.items {
		if _, ok := wanted[key]; ok || len(wanted) == 0 {
			values = append(values, item)
		}
	}
	return values
}

func (m *threadSafeMap[K, V]) Purge() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	items := m.items
	m.items = nil
	if !m.isClosableItem {
		return nil
	}
	for _, item := range items {
		if closer, ok := any(item).(Closable); ok && closer != nil {
			if err := closer.Close(); err != nil {
				slog.Error("close item on purge", "error", err)
			}
		}
	}
	return nil
}

type ThreadSafeMapOption[K comparable, V any] func(*threadSafeMap[K, V])

func WithThreadSafeMapInitCap[K comparable, V any](capacity uint32) ThreadSafeMapOption[K, V] {
	return func(m *threadSafeMap[K, V]) {
		m.initCap = capacity
	}
}

// WithThreadSafeMapCloseableItemCheck lets Purge close every item that
// implements io.Closer before the map is dropped.
func WithThreadSafeMapCloseableItemCheck[K comparable, V any]() ThreadSafeMapOption[K, V] {
	return func(m *threadSafeMap[K, V]) {
		m.isClosableItem = true
	}
}

func NewThreadSafeMap[K comparable, V any](opts ...ThreadSafeMapOption[K, V]) ThreadSafeStorer[K, V] {
	m := &threadSafeMap[K, V]{initCap: 32}
	for _, o := range opts {
		if o != nil {
			o(m)
		}
	}
	m.items = make(map[K]V, int(m.initCap))
	return m
}
