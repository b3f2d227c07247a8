package tree

import (
	"errors"
	"math"
	"sync/atomic"
)

// Handle 0 always addresses the zeroed reserved slot, so the zero
// value of a handle field means "no node". Every helper below treats
// the nil handle as a black nil leaf.
const nilArenaNode uint32 = 0

type arenaNode struct {
	key    uint32
	left   uint32
	parent uint32
	right  uint32
	color  RBColor
}

// rbArena is a slab allocator for arena rbtree nodes. Freed slots are
// recorded as gaps and handed out again before the slab grows.
type rbArena struct {
	storage              []arenaNode
	gaps                 map[uint32]bool
	hibernatedData       [6][]byte
	hibernatedStorageLen int
	hibernatedGapsLen    int
	threshold            int
}

func newRBArena() *rbArena {
	return &rbArena{
		storage: []arenaNode{},
		gaps:    map[uint32]bool{},
	}
}

func (arena *rbArena) size() int {
	return len(arena.storage)
}

func (arena *rbArena) used() int {
	if arena.hibernated() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] access a hibernated arena")
	}
	if len(arena.storage) == 0 {
		return 0
	}
	return len(arena.storage) - 1 - len(arena.gaps)
}

func (arena *rbArena) hibernated() bool {
	return arena.hibernatedStorageLen > 0
}

func (arena *rbArena) malloc() uint32 {
	if arena.hibernated() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] malloc from a hibernated arena")
	}
	if len(arena.gaps) > 0 {
		for handle := range arena.gaps {
			delete(arena.gaps, handle)
			return handle
		}
	}
	if len(arena.storage) == 0 {
		// Reserve the nil slot.
		arena.storage = append(arena.storage, arenaNode{})
	}
	if len(arena.storage) > math.MaxUint32 {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] arena handle space exhausted")
	}
	arena.storage = append(arena.storage, arenaNode{})
	return uint32(len(arena.storage) - 1)
}

func (arena *rbArena) free(handle uint32) {
	if handle == nilArenaNode {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] free the reserved nil arena slot")
	}
	if arena.gaps[handle] {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] arena double free")
	}
	arena.storage[handle] = arenaNode{}
	arena.gaps[handle] = true
}

func (arena *rbArena) reset() {
	if len(arena.storage) > 0 {
		arena.storage = arena.storage[:1]
		arena.storage[0] = arenaNode{}
	}
	arena.gaps = map[uint32]bool{}
}

type arenaRBTree struct {
	arena          *rbArena
	stats          *rbTreeStats
	statsName      string
	root           uint32
	count          int64
	isRmBorrowPred bool
	isStatsEnabled bool
}

var _ ArenaRBTree = (*arenaRBTree)(nil)

// arenaNodeRef is a read only handle view satisfying RBNode, so the
// shared validators walk an arena tree the same way as a pointer one.
type arenaNodeRef struct {
	tree *arenaRBTree
	h    uint32
}

func (ref arenaNodeRef) Key() uint32 {
	return ref.tree.arena.storage[ref.h].key
}

func (ref arenaNodeRef) HasKey() bool {
	return ref.h != nilArenaNode
}

func (ref arenaNodeRef) Color() RBColor {
	return ref.tree.colorOf(ref.h)
}

func (ref arenaNodeRef) Left() RBNode[uint32] {
	if l := ref.tree.leftOf(ref.h); l != nilArenaNode {
		return arenaNodeRef{tree: ref.tree, h: l}
	}
	return nil
}

func (ref arenaNodeRef) Right() RBNode[uint32] {
	if r := ref.tree.rightOf(ref.h); r != nilArenaNode {
		return arenaNodeRef{tree: ref.tree, h: r}
	}
	return nil
}

func (ref arenaNodeRef) Parent() RBNode[uint32] {
	if p := ref.tree.parentOf(ref.h); p != nilArenaNode {
		return arenaNodeRef{tree: ref.tree, h: p}
	}
	return nil
}

// Null tolerant handle helpers. The nil handle reads as a black leaf
// without children, which keeps the rebalance loops free of nil checks.

func (tree *arenaRBTree) colorOf(h uint32) RBColor {
	if h == nilArenaNode {
		return Black
	}
	return tree.arena.storage[h].color
}

func (tree *arenaRBTree) setColor(h uint32, color RBColor) {
	if h != nilArenaNode {
		tree.arena.storage[h].color = color
	}
}

func (tree *arenaRBTree) parentOf(h uint32) uint32 {
	if h == nilArenaNode {
		return nilArenaNode
	}
	return tree.arena.storage[h].parent
}

func (tree *arenaRBTree) leftOf(h uint32) uint32 {
	if h == nilArenaNode {
		return nilArenaNode
	}
	return tree.arena.storage[h].left
}

func (tree *arenaRBTree) rightOf(h uint32) uint32 {
	if h == nilArenaNode {
		return nilArenaNode
	}
	return tree.arena.storage[h].right
}

func (tree *arenaRBTree) minimumOf(h uint32) uint32 {
	aux := h
	for aux != nilArenaNode && tree.leftOf(aux) != nilArenaNode {
		aux = tree.leftOf(aux)
	}
	return aux
}

func (tree *arenaRBTree) maximumOf(h uint32) uint32 {
	aux := h
	for aux != nilArenaNode && tree.rightOf(aux) != nilArenaNode {
		aux = tree.rightOf(aux)
	}
	return aux
}

// The succ node of h is the next handle in sorted order, either the
// right subtree minimum or the first ancestor h is a left child of.
func (tree *arenaRBTree) succOf(h uint32) uint32 {
	if h == nilArenaNode {
		return nilArenaNode
	}
	if r := tree.rightOf(h); r != nilArenaNode {
		return tree.minimumOf(r)
	}
	x, aux := h, tree.parentOf(h)
	for aux != nilArenaNode && x == tree.rightOf(aux) {
		x = aux
		aux = tree.parentOf(aux)
	}
	return aux
}

func (tree *arenaRBTree) predOf(h uint32) uint32 {
	if h == nilArenaNode {
		return nilArenaNode
	}
	if l := tree.leftOf(h); l != nilArenaNode {
		return tree.maximumOf(l)
	}
	x, aux := h, tree.parentOf(h)
	for aux != nilArenaNode && x == tree.leftOf(aux) {
		x = aux
		aux = tree.parentOf(aux)
	}
	return aux
}

func (tree *arenaRBTree) ensureActive() {
	if tree.arena.hibernated() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] access a hibernated arena rbtree")
	}
}

func (tree *arenaRBTree) Len() int64 {
	return atomic.LoadInt64(&tree.count)
}

func (tree *arenaRBTree) Root() RBNode[uint32] {
	tree.ensureActive()
	if tree.root == nilArenaNode {
		return nil
	}
	return arenaNodeRef{tree: tree, h: tree.root}
}

func (tree *arenaRBTree) rotateLeft(x uint32) {
	y := tree.rightOf(x)
	if x == nilArenaNode || y == nilArenaNode {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] arena left rotate without pivot or right child")
	}
	storage := tree.arena.storage
	storage[x].right = tree.leftOf(y)
	if l := tree.leftOf(y); l != nilArenaNode {
		storage[l].parent = x
	}
	storage[y].parent = tree.parentOf(x)
	if p := tree.parentOf(x); p == nilArenaNode {
		tree.root = y
	} else if tree.leftOf(p) == x {
		storage[p].left = y
	} else {
		storage[p].right = y
	}
	storage[y].left = x
	storage[x].parent = y
	tree.stats.IncRotation()
}

func (tree *arenaRBTree) rotateRight(x uint32) {
	y := tree.leftOf(x)
	if x == nilArenaNode || y == nilArenaNode {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] arena right rotate without pivot or left child")
	}
	storage := tree.arena.storage
	storage[x].left = tree.rightOf(y)
	if r := tree.rightOf(y); r != nilArenaNode {
		storage[r].parent = x
	}
	storage[y].parent = tree.parentOf(x)
	if p := tree.parentOf(x); p == nilArenaNode {
		tree.root = y
	} else if tree.rightOf(p) == x {
		storage[p].right = y
	} else {
		storage[p].left = y
	}
	storage[y].right = x
	storage[x].parent = y
	tree.stats.IncRotation()
}

func (tree *arenaRBTree) search(key uint32) uint32 {
	aux := tree.root
	for aux != nilArenaNode {
		k := tree.arena.storage[aux].key
		if key == k {
			return aux
		} else if key < k {
			aux = tree.leftOf(aux)
		} else {
			aux = tree.rightOf(aux)
		}
	}
	return nilArenaNode
}

// An already present key keeps the tree untouched. A new key borrows
// a slab slot, joins as a red leaf, then the fixup loop repaints and
// rotates upwards until the rbtree rules hold again.
func (tree *arenaRBTree) Insert(key uint32) {
	tree.ensureActive()
	if tree.root == nilArenaNode {
		h := tree.arena.malloc()
		tree.arena.storage[h].key = key
		tree.root = h
		atomic.AddInt64(&tree.count, 1)
		tree.stats.IncInsert()
		return
	}

	var x, y uint32 = tree.root, nilArenaNode
	for x != nilArenaNode {
		y = x
		k := tree.arena.storage[x].key
		if /* equal, idempotent */ key == k {
			return
		} else if key < k {
			x = tree.leftOf(x)
		} else {
			x = tree.rightOf(x)
		}
	}

	z := tree.arena.malloc()
	storage := tree.arena.storage
	storage[z].key = key
	storage[z].color = Red
	storage[z].parent = y
	if key < storage[y].key {
		storage[y].left = z
	} else {
		storage[y].right = z
	}

	atomic.AddInt64(&tree.count, 1)
	tree.fixAfterInsertion(z)
	tree.stats.IncInsert()
}

// The red uncle collapses into a repaint and the loop climbs two
// levels, a black uncle resolves with at most two rotations and the
// loop ends. The root is repainted black at the end.
func (tree *arenaRBTree) fixAfterInsertion(x uint32) {
	var steps int64
	defer func() {
		tree.stats.RecordInsertFixup(steps)
	}()
	for x != nilArenaNode && x != tree.root && tree.colorOf(tree.parentOf(x)) == Red {
		steps++
		if tree.parentOf(x) == tree.leftOf(tree.parentOf(tree.parentOf(x))) {
			uncle := tree.rightOf(tree.parentOf(tree.parentOf(x)))
			if tree.colorOf(uncle) == Red {
				tree.setColor(tree.parentOf(x), Black)
				tree.setColor(uncle, Black)
				tree.setColor(tree.parentOf(tree.parentOf(x)), Red)
				x = tree.parentOf(tree.parentOf(x))
			} else {
				if x == tree.rightOf(tree.parentOf(x)) {
					x = tree.parentOf(x)
					tree.rotateLeft(x)
				}
				tree.setColor(tree.parentOf(x), Black)
				tree.setColor(tree.parentOf(tree.parentOf(x)), Red)
				tree.rotateRight(tree.parentOf(tree.parentOf(x)))
			}
		} else {
			uncle := tree.leftOf(tree.parentOf(tree.parentOf(x)))
			if tree.colorOf(uncle) == Red {
				tree.setColor(tree.parentOf(x), Black)
				tree.setColor(uncle, Black)
				tree.setColor(tree.parentOf(tree.parentOf(x)), Red)
				x = tree.parentOf(tree.parentOf(x))
			} else {
				if x == tree.leftOf(tree.parentOf(x)) {
					x = tree.parentOf(x)
					tree.rotateRight(x)
				}
				tree.setColor(tree.parentOf(x), Black)
				tree.setColor(tree.parentOf(tree.parentOf(x)), Red)
				tree.rotateLeft(tree.parentOf(tree.parentOf(x)))
			}
		}
	}
	tree.setColor(tree.root, Black)
}

// Remove of an absent key is a no-op.
func (tree *arenaRBTree) Remove(key uint32) {
	tree.ensureActive()
	if atomic.LoadInt64(&tree.count) <= 0 {
		return
	}
	z := tree.search(key)
	if z == nilArenaNode {
		return
	}
	defer func() {
		atomic.AddInt64(&tree.count, -1)
		tree.stats.IncRemove()
	}()
	tree.deleteNode(z)
}

func (tree *arenaRBTree) RemoveMin() (uint32, bool) {
	tree.ensureActive()
	if atomic.LoadInt64(&tree.count) <= 0 {
		return 0, false
	}
	_min := tree.minimumOf(tree.root)
	if _min == nilArenaNode {
		return 0, false
	}
	key := tree.arena.storage[_min].key
	defer func() {
		atomic.AddInt64(&tree.count, -1)
		tree.stats.IncRemove()
	}()
	tree.deleteNode(_min)
	return key, true
}

// A node with two children borrows the key of its succ (or pred) node
// and the borrowed node is the one unlinked. A black unlinked node
// leaves a missing black on its path, the fixup runs on the spliced
// replacement, or on the still linked leaf itself before it detaches.
// The freed slot returns to the slab as a gap.
func (tree *arenaRBTree) deleteNode(z uint32) {
	if tree.leftOf(z) != nilArenaNode && tree.rightOf(z) != nilArenaNode {
		var y uint32
		if tree.isRmBorrowPred {
			y = tree.predOf(z)
		} else {
			y = tree.succOf(z)
		}
		tree.arena.storage[z].key = tree.arena.storage[y].key
		z = y
	}

	replacement := tree.leftOf(z)
	if replacement == nilArenaNode {
		replacement = tree.rightOf(z)
	}

	storage := tree.arena.storage
	if replacement != nilArenaNode {
		storage[replacement].parent = tree.parentOf(z)
		p := tree.parentOf(z)
		if p == nilArenaNode {
			tree.root = replacement
		} else if z == tree.leftOf(p) {
			storage[p].left = replacement
		} else {
			storage[p].right = replacement
		}
		storage[z].left, storage[z].right, storage[z].parent = nilArenaNode, nilArenaNode, nilArenaNode
		if tree.colorOf(z) == Black {
			tree.fixAfterDeletion(replacement)
		}
	} else if tree.parentOf(z) == nilArenaNode {
		tree.root = nilArenaNode
	} else {
		if tree.colorOf(z) == Black {
			tree.fixAfterDeletion(z)
		}
		if p := tree.parentOf(z); p != nilArenaNode {
			if z == tree.leftOf(p) {
				storage[p].left = nilArenaNode
			} else if z == tree.rightOf(p) {
				storage[p].right = nilArenaNode
			}
			storage[z].parent = nilArenaNode
		}
	}
	tree.arena.free(z)
}

// The double black climbs while both nephews are black, a red sibling
// is rotated into a black one first, and a red far nephew ends the
// loop with one terminal rotation.
func (tree *arenaRBTree) fixAfterDeletion(x uint32) {
	var steps int64
	defer func() {
		tree.stats.RecordRemoveFixup(steps)
	}()
	for x != tree.root && tree.colorOf(x) == Black {
		steps++
		if x == tree.leftOf(tree.parentOf(x)) {
			sib := tree.rightOf(tree.parentOf(x))
			if tree.colorOf(sib) == Red {
				tree.setColor(sib, Black)
				tree.setColor(tree.parentOf(x), Red)
				tree.rotateLeft(tree.parentOf(x))
				sib = tree.rightOf(tree.parentOf(x))
			}
			if tree.colorOf(tree.leftOf(sib)) == Black && tree.colorOf(tree.rightOf(sib)) == Black {
				tree.setColor(sib, Red)
				x = tree.parentOf(x)
			} else {
				if tree.colorOf(tree.rightOf(sib)) == Black {
					tree.setColor(tree.leftOf(sib), Black)
					tree.setColor(sib, Red)
					tree.rotateRight(sib)
					sib = tree.rightOf(tree.parentOf(x))
				}
				tree.setColor(sib, tree.colorOf(tree.parentOf(x)))
				tree.setColor(tree.parentOf(x), Black)
				tree.setColor(tree.rightOf(sib), Black)
				tree.rotateLeft(tree.parentOf(x))
				x = tree.root
			}
		} else {
			sib := tree.leftOf(tree.parentOf(x))
			if tree.colorOf(sib) == Red {
				tree.setColor(sib, Black)
				tree.setColor(tree.parentOf(x), Red)
				tree.rotateRight(tree.parentOf(x))
				sib = tree.leftOf(tree.parentOf(x))
			}
			if tree.colorOf(tree.rightOf(sib)) == Black && tree.colorOf(tree.leftOf(sib)) == Black {
				tree.setColor(sib, Red)
				x = tree.parentOf(x)
			} else {
				if tree.colorOf(tree.leftOf(sib)) == Black {
					tree.setColor(tree.rightOf(sib), Black)
					tree.setColor(sib, Red)
					tree.rotateLeft(sib)
					sib = tree.leftOf(tree.parentOf(x))
				}
				tree.setColor(sib, tree.colorOf(tree.parentOf(x)))
				tree.setColor(tree.parentOf(x), Black)
				tree.setColor(tree.leftOf(sib), Black)
				tree.rotateRight(tree.parentOf(x))
				x = tree.root
			}
		}
	}
	tree.setColor(x, Black)
}

func (tree *arenaRBTree) Contains(key uint32) bool {
	tree.ensureActive()
	return tree.search(key) != nilArenaNode
}

func (tree *arenaRBTree) Min() (uint32, bool) {
	tree.ensureActive()
	_min := tree.minimumOf(tree.root)
	if _min == nilArenaNode {
		return 0, false
	}
	return tree.arena.storage[_min].key, true
}

func (tree *arenaRBTree) Max() (uint32, bool) {
	tree.ensureActive()
	_max := tree.maximumOf(tree.root)
	if _max == nilArenaNode {
		return 0, false
	}
	return tree.arena.storage[_max].key, true
}

// Keys loads the ascending key sequence by chasing succ handles
// from the minimum one.
func (tree *arenaRBTree) Keys() []uint32 {
	tree.ensureActive()
	keys := make([]uint32, 0, atomic.LoadInt64(&tree.count))
	for aux := tree.minimumOf(tree.root); aux != nilArenaNode; aux = tree.succOf(aux) {
		keys = append(keys, tree.arena.storage[aux].key)
	}
	return keys
}

func (tree *arenaRBTree) Search(x RBNode[uint32], fn func(RBNode[uint32]) int64) RBNode[uint32] {
	for aux := x; aux != nil; {
		switch res := fn(aux); {
		case res == 0:
			return aux
		case res > 0:
			aux = aux.Right()
		default:
			aux = aux.Left()
		}
	}
	return nil
}

// Foreach runs an iterative inorder walk over the slab. Returning
// false from the action stops the walk early.
func (tree *arenaRBTree) Foreach(action func(idx int64, color RBColor, key uint32) bool) {
	tree.ensureActive()
	size := atomic.LoadInt64(&tree.count)
	aux := tree.root
	if size < 0 || aux == nilArenaNode {
		return
	}

	stack := make([]uint32, 0, size>>1)
	for ; aux != nilArenaNode; aux = tree.leftOf(aux) {
		stack = append(stack, aux)
	}

	idx := int64(0)
	for size = int64(len(stack)); size > 0; size = int64(len(stack)) {
		aux = stack[size-1]
		node := tree.arena.storage[aux]
		if !action(idx, node.color, node.key) {
			return
		}
		idx++
		stack = stack[:size-1]
		if node.right != nilArenaNode {
			for aux = node.right; aux != nilArenaNode; aux = tree.leftOf(aux) {
				stack = append(stack, aux)
			}
		}
	}
}

// Release drops every node in one slab reset.
func (tree *arenaRBTree) Release() {
	tree.ensureActive()
	tree.root = nilArenaNode
	atomic.StoreInt64(&tree.count, 0)
	tree.arena.reset()
}

func (tree *arenaRBTree) Hibernated() bool {
	return tree.arena.hibernated()
}

// Hibernate compresses the idle slab in memory. The tree must not be
// touched again before Boot. A slab below the hibernation threshold
// is left as is.
func (tree *arenaRBTree) Hibernate() error {
	if tree.arena.hibernated() {
		return errors.New("[rbtree] arena is already hibernated")
	}
	if tree.arena.size() < tree.arena.threshold {
		return nil
	}
	tree.arena.hibernate()
	return nil
}

// Boot restores a hibernated slab. Booting an active tree is a no-op.
func (tree *arenaRBTree) Boot() error {
	if !tree.arena.hibernated() {
		return nil
	}
	tree.arena.boot()
	return nil
}

type ArenaRBTreeOpt func(*arenaRBTree)

// WithArenaRBTreeBorrowPred makes a two-children removal borrow the
// pred node key instead of the succ node key.
func WithArenaRBTreeBorrowPred() ArenaRBTreeOpt {
	return func(tree *arenaRBTree) {
		tree.isRmBorrowPred = true
	}
}

// WithArenaRBTreeStats enables the opentelemetry instruments of this tree.
func WithArenaRBTreeStats(name string) ArenaRBTreeOpt {
	return func(tree *arenaRBTree) {
		tree.statsName = name
		tree.isStatsEnabled = true
	}
}

// WithArenaRBTreeHibernationThreshold skips the slab compression below
// n allocated slots.
func WithArenaRBTreeHibernationThreshold(n int) ArenaRBTreeOpt {
	return func(tree *arenaRBTree) {
		tree.arena.threshold = n
	}
}

func NewArenaRBTree(opts ...ArenaRBTreeOpt) ArenaRBTree {
	tree := &arenaRBTree{
		arena: newRBArena(),
		root:  nilArenaNode,
		count: 0,
	}

	for _, o := range opts {
		o(tree)
	}
	if tree.isStatsEnabled {
		tree.stats = newRBTreeStats(tree.statsName, tree.Len)
	}
	return tree
}
