package tree

import "github.com/benz9527/xtree/lib/infra"

// The String methods come out of stringer, installed once with
// go install golang.org/x/tools/cmd/stringer@latest.

// RBColor paints a node. Black is the zero value, a fresh node starts
// black until the insert repaints it.
type RBColor uint8

//go:generate stringer -type=RBColor
const (
	Black RBColor = iota
	Red
)

// RBDirection places a node relative to its parent, Left and Right
// sit symmetric around Root.
type RBDirection int8

//go:generate stringer -type=RBDirection
const (
	Left RBDirection = -1 + iota
	Root
	Right
)

// RBNode is the read only view of one tree node.
type RBNode[K infra.OrderedKey] interface {
	Key() K
	HasKey() bool
	Color() RBColor
	Left() RBNode[K]
	Right() RBNode[K]
	Parent() RBNode[K]
}

// RBTree is an ordered key set. Insert and Remove are idempotent,
// a duplicate insert and an absent remove are both no-ops.
type RBTree[K infra.OrderedKey] interface {
	Len() int64
	Root() RBNode[K]
	Contains(key K) bool
	Insert(key K)
	Remove(key K)
	RemoveMin() (K, bool)
	Min() (K, bool)
	Max() (K, bool)
	Keys() []K
	Search(x RBNode[K], fn func(RBNode[K]) int64) RBNode[K]
	Foreach(action func(idx int64, color RBColor, key K) bool)
	Release()
}

// ArenaRBTree stores its nodes in one dense slab indexed by handles
// instead of pointers. An idle tree can compress the slab in memory
// and restore it later.
type ArenaRBTree interface {
	RBTree[uint32]
	Hibernate() error
	Boot() error
	Hibernated() bool
}
