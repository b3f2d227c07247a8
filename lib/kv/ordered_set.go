package kv

import (
	"github.com/benz9527/xtree/lib/infra"
	"github.com/benz9527/xtree/lib/tree"
)

type orderedSet[K infra.OrderedKey] struct {
	index tree.RBTree[K]
}

func (s *orderedSet[K]) Len() int64 {
	return s.index.Len()
}

func (s *orderedSet[K]) Add(key K) {
	s.index.Insert(key)
}

func (s *orderedSet[K]) Remove(key K) {
	s.index.Remove(key)
}

func (s *orderedSet[K]) Contains(key K) bool {
	return s.index.Contains(key)
}

func (s *orderedSet[K]) MinKey() (K, bool) {
	return s.index.Min()
}

func (s *orderedSet[K]) MaxKey() (K, bool) {
	return s.index.Max()
}

func (s *orderedSet[K]) PopMin() (K, bool) {
	return s.index.RemoveMin()
}

func (s *orderedSet[K]) Keys() []K {
	return s.index.Keys()
}

func (s *orderedSet[K]) Foreach(action func(idx int64, key K) bool) {
	s.index.Foreach(func(idx int64, color tree.RBColor, key K) bool {
		return action(idx, key)
	})
}

func (s *orderedSet[K]) Purge() {
	s.index.Release()
}

func NewOrderedSet[K infra.OrderedKey](opts ...tree.RBTreeOpt[K]) OrderedSet[K] {
	return &orderedSet[K]{index: tree.NewRBTree[K](opts...)}
}
