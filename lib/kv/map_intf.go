package kv

import (
	"io"

	"github.com/benz9527/xtree/lib/infra"
)

type Closable interface {
	io.Closer
}

// SafeStoreKeyFilterFunc reports whether a key belongs in a ListKeys
// result.
type SafeStoreKeyFilterFunc[K comparable] func(key K) bool

func defaultAllKeysFilter[K comparable](key K) bool {
	return true
}

type ThreadSafeStorer[K comparable, V any] interface {
	Purge() error
	AddOrUpdate(key K, obj V) error
	Replace(items map[K]V) error
	Delete(key K) (V, error)
	Get(key K) (item V, exists bool)
	ListKeys(filters ...SafeStoreKeyFilterFunc[K]) []K
	ListValues(keys ...K) (items []V)
}

// OrderedMap keeps its keys in ascending order. Point lookups hit a
// builtin map while the ordered views walk a red-black tree index.
// Not safe for concurrent use, callers serialize.
type OrderedMap[K infra.OrderedKey, V any] interface {
	Len() int64
	Put(key K, val V)
	Get(key K) (V, bool)
	Delete(key K)
	Contains(key K) bool
	MinKey() (K, bool)
	MaxKey() (K, bool)
	PopMin() (K, V, bool)
	Keys() []K
	Values() []V
	Foreach(action func(idx int64, key K, val V) bool)
	Purge()
}

// OrderedSet is OrderedMap without the payload.
type OrderedSet[K infra.OrderedKey] interface {
	Len() int64
	Add(key K)
	Remove(key K)
	Contains(key K) bool
	MinKey() (K, bool)
	MaxKey() (K, bool)
	PopMin() (K, bool)
	Keys() []K
	Foreach(action func(idx int64, key K) bool)
	Purge()
}
