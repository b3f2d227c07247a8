package kv

import (
	"github.com/benz9527/xtree/lib/infra"
	"github.com/benz9527/xtree/lib/tree"
)

type orderedMap[K infra.OrderedKey, V any] struct {
	index tree.RBTree[K]
	items map[K]V
}

func (m *orderedMap[K, V]) Len() int64 {
	return m.index.Len()
}

// Put on an existing key updates the value in place and leaves the
// tree index untouched.
func (m *orderedMap[K, V]) Put(key K, val V) {
	if _, exists := m.items[key]; !exists {
		m.index.Insert(key)
	}
	m.items[key] = val
}

func (m *orderedMap[K, V]) Get(key K) (V, bool) {
	val, exists := m.items[key]
	return val, exists
}

func (m *orderedMap[K, V]) Delete(key K) {
	if _, exists := m.items[key]; !exists {
		return
	}
	delete(m.items, key)
	m.index.Remove(key)
}

func (m *orderedMap[K, V]) Contains(key K) bool {
	_, exists := m.items[key]
	return exists
}

func (m *orderedMap[K, V]) MinKey() (K, bool) {
	return m.index.Min()
}

func (m *orderedMap[K, V]) MaxKey() (K, bool) {
	return m.index.Max()
}

func (m *orderedMap[K, V]) PopMin() (K, V, bool) {
	key, ok := m.index.RemoveMin()
	if !ok {
		return key, *new(V), false
	}
	val := m.items[key]
	delete(m.items, key)
	return key, val, true
}

func (m *orderedMap[K, V]) Keys() []K {
	return m.index.Keys()
}

func (m *orderedMap[K, V]) Values() []V {
	values := make([]V, 0, len(m.items))
	m.index.Foreach(func(idx int64, color tree.RBColor, key K) bool {
		values = append(values, m.items[key])
		return true
	})
	return values
}

func (m *orderedMap[K, V]) Foreach(action func(idx int64, key K, val V) bool) {
	m.index.Foreach(func(idx int64, color tree.RBColor, key K) bool {
		return action(idx, key, m.items[key])
	})
}

// Purge empties the map. It stays usable afterwards.
func (m *orderedMap[K, V]) Purge() {
	m.index.Release()
	clear(m.items)
}

func NewOrderedMap[K infra.OrderedKey, V any](opts ...tree.RBTreeOpt[K]) OrderedMap[K, V] {
	return &orderedMap[K, V]{
		index: tree.NewRBTree[K](opts...),
		items: make(map[K]V, 32),
	}
}
