package tree

import (
	"sync/atomic"

	"github.com/benz9527/xtree/lib/infra"
)

type rbNode[K infra.OrderedKey] struct {
	parent *rbNode[K]
	left   *rbNode[K]
	right  *rbNode[K]
	key    K
	color  RBColor
	hasKey bool
}

func (node *rbNode[K]) Color() RBColor {
	return node.color
}

func (node *rbNode[K]) Key() K {
	return node.key
}

func (node *rbNode[K]) HasKey() bool {
	if node == nil {
		return false
	}
	return node.hasKey
}

func (node *rbNode[K]) Left() RBNode[K] {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *rbNode[K]) Parent() RBNode[K] {
	if node == nil || node.parent == nil {
		return nil
	}
	return node.parent
}

func (node *rbNode[K]) Right() RBNode[K] {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

func (node *rbNode[K]) isNilLeaf() bool {
	return isNilLeaf[K](node)
}

func (node *rbNode[K]) isRed() bool {
	return isRed[K](node)
}

func (node *rbNode[K]) isBlack() bool {
	return isBlack[K](node)
}

func (node *rbNode[K]) isRoot() bool {
	return isRoot[K](node)
}

func (node *rbNode[K]) isLeaf() bool {
	return node != nil && node.parent != nil && node.left.isNilLeaf() && node.right.isNilLeaf()
}

func (node *rbNode[K]) Direction() RBDirection {
	if node.isNilLeaf() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] nil leaf node without direction")
	}

	switch {
	case node.isRoot():
		return Root
	case node == node.parent.left:
		return Left
	default:
		return Right
	}
}

func (node *rbNode[K]) sibling() *rbNode[K] {
	switch node.Direction() {
	case Left:
		return node.parent.right
	case Right:
		return node.parent.left
	}
	return nil
}

func (node *rbNode[K]) hasSibling() bool {
	return !node.isRoot() && node.sibling() != nil
}

func (node *rbNode[K]) uncle() *rbNode[K] {
	return node.parent.sibling()
}

func (node *rbNode[K]) hasUncle() bool {
	return !node.isRoot() && node.parent.hasSibling()
}

func (node *rbNode[K]) grandpa() *rbNode[K] {
	return node.parent.parent
}

func (node *rbNode[K]) hasGrandpa() bool {
	return !node.isRoot() && node.parent.parent != nil
}

func (node *rbNode[K]) fixLink() {
	if l := node.left; l != nil {
		l.parent = node
	}
	if r := node.right; r != nil {
		r.parent = node
	}
}

func (node *rbNode[K]) minimum() *rbNode[K] {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

func (node *rbNode[K]) maximum() *rbNode[K] {
	aux := node
	for ; aux != nil && aux.right != nil; aux = aux.right {
	}
	return aux
}

// pred returns the node holding the next smaller key, nil at the
// minimum.
func (node *rbNode[K]) pred() *rbNode[K] {
	x := node
	if x == nil {
		return nil
	}
	if x.left != nil {
		return x.left.maximum()
	}

	// Climb until the walk comes up along a right edge.
	aux := x.parent
	for aux != nil && x == aux.left {
		x = aux
		aux = aux.parent
	}
	return aux
}

// succ returns the node holding the next larger key, nil at the
// maximum.
func (node *rbNode[K]) succ() *rbNode[K] {
	x := node
	if x == nil {
		return nil
	}
	if x.right != nil {
		return x.right.minimum()
	}

	// Climb until the walk comes up along a left edge.
	aux := x.parent
	for aux != nil && x == aux.right {
		x = aux
		aux = aux.parent
	}
	return aux
}

type rbTree[K infra.OrderedKey] struct {
	root           *rbNode[K]
	stats          *rbTreeStats
	statsName      string
	count          int64
	isRmBorrowPred bool
	isStatsEnabled bool
}

func (tree *rbTree[K]) keyCompare(k1, k2 K) int64 {
	if k1 == k2 {
		return 0
	} else if k1 < k2 {
		return -1
	}
	return 1
}

func (tree *rbTree[K]) Len() int64 {
	return atomic.LoadInt64(&tree.count)
}

func (tree *rbTree[K]) Root() RBNode[K] {
	if tree.root == nil {
		return nil
	}
	return tree.root
}

// References:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
//
// The balancing rules, numbered the way the fixup comments cite them:
// p1. A node is red or black.
// p2. NIL leaves count as black.
// p3. A red node never has a red child. (red-violation)
// p4. Every root-to-NIL path crosses the same number of black
//   nodes. (black-violation)
// p5. The root stays black.
// It follows that a node with exactly one child has a red child. A
// black child would put the NIL leaves below it one black deeper than
// the node's own NIL side, breaking p4. For the same reason the
// longest path in the tree is at most twice the shortest.

/*
	    |                          |
	    X                          Y
	   / \      leftRotate(X)     / \
	  a   Y     ============>    X   c
	     / \                    / \
	    b   c                  a   b
*/
func (tree *rbTree[K]) leftRotate(x *rbNode[K]) {
	if x == nil || x.right.isNilLeaf() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	p, y, dir := x.parent, x.right, x.Direction()
	x.right, y.left = y.left, x
	x.fixLink()
	y.fixLink()

	tree.reattach(p, y, dir)
	tree.stats.IncRotation()
}

/*
	      |                        |
	      X                        Y
	     / \     rightRotate(X)   / \
	    Y   c    ============>   a   X
	   / \                          / \
	  a   b                        b   c
*/
func (tree *rbTree[K]) rightRotate(x *rbNode[K]) {
	if x == nil || x.left.isNilLeaf() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	p, y, dir := x.parent, x.left, x.Direction()
	x.left, y.right = y.right, x
	x.fixLink()
	y.fixLink()

	tree.reattach(p, y, dir)
	tree.stats.IncRotation()
}

// reattach hangs y at the dir slot under p, or at the tree root for
// dir Root. y takes p as its parent, its subtree links stay as the
// caller arranged them.
func (tree *rbTree[K]) reattach(p, y *rbNode[K], dir RBDirection) {
	y.parent = p
	switch dir {
	case Left:
		p.left = y
	case Right:
		p.right = y
	case Root:
		tree.root = y
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to rotate")
	}
}

// i1: Empty rbtree, insert directly, but root node is painted to black.
// An already present key keeps the tree untouched.
func (tree *rbTree[K]) Insert(key K) {
	if /* i1 */ tree.root.isNilLeaf() {
		tree.root = &rbNode[K]{
			key:    key,
			hasKey: true,
		}
		atomic.AddInt64(&tree.count, 1)
		tree.stats.IncInsert()
		return
	}

	y, res := tree.root, int64(0)
	for x := tree.root; !x.isNilLeaf(); {
		y = x
		if res = tree.keyCompare(key, x.key); res == 0 {
			// Idempotent, the key is already present.
			return
		} else if /* less */ res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}

	// res still holds the comparison against y, the new leaf's parent.
	z := &rbNode[K]{
		key:    key,
		color:  Red,
		parent: y,
		hasKey: true,
	}
	if res < 0 {
		y.left = z
	} else {
		y.right = z
	}

	atomic.AddInt64(&tree.count, 1)
	tree.insertRebalance(z)
	tree.stats.IncInsert()
}

/*
A fresh node X arrives red, so only p3 can break.
Notation: <N> red, [N] black or NIL, {N} either.

im1: P is the black root. Nothing to fix.

im2: P is the red root. Painting P black settles p3 and lengthens
every path by the same one black.

im3: P and uncle U both red. Pushing grandpa G's black down onto P
and U fixes p3 here without touching p4, but G turning red can clash
with its own parent, so the loop continues at G.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

im4: P red, U black, X bent the opposite way of P. Rotating P towards
its own side straightens the chain. The old parent becomes the
current node and im5 finishes the repair.

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

im5: P red, U black, X and P bent the same way. Rotate G the other
way and swap the colors of G and P. The subtree root is black again.

	    [G]                 <P>               [P]
	    / \    rotate(G)    / \    repaint    / \
	  <P> [U]  ========>  <X> [G]  ======>  <X> <G>
	  /                         \                 \
	<X>                         [U]               [U]
*/
func (tree *rbTree[K]) insertRebalance(x *rbNode[K]) {
	var steps int64
	defer func() {
		tree.stats.RecordInsertFixup(steps)
	}()
	for !x.isNilLeaf() {
		steps++
		if x.isRoot() {
			// Repainting a red root black lengthens every path by the
			// same one black, so p4 survives.
			x.color = Black
			return
		}
		if x.parent.isBlack() {
			// Covers im1, a black parent of any kind leaves p3 intact.
			return
		}
		if /* im2 */ x.parent.isRoot() {
			x.parent.color = Black
			return
		}

		if /* im3 */ x.hasUncle() && x.uncle().isRed() {
			// Push grandpa's black one level down and recheck there.
			x.parent.color, x.uncle().color = Black, Black
			x = x.grandpa()
			x.color = Red
			continue
		}

		// The uncle is black or missing from here on.
		dir := x.Direction()
		if /* im4 */ dir != x.parent.Direction() {
			p := x.parent
			switch dir {
			case Left:
				tree.rightRotate(p)
			case Right:
				tree.leftRotate(p)
			default:
				// impossible run to here
				panic( /* debug assertion */ "[rbtree] insert violate (im4)")
			}
			x = p // enter im5 to fix
		}

		switch /* im5 */ dir = x.parent.Direction(); dir {
		case Left:
			tree.rightRotate(x.grandpa())
		case Right:
			tree.leftRotate(x.grandpa())
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] insert violate (im5)")
		}

		x.parent.color = Black
		x.sibling().color = Red
		return
	}
}

/*
Removal first picks the node that actually leaves the tree.

r1: The tree is just the root. Drop it.

r2: Z has two children. Its pred or succ, per the borrow flag, holds
the neighbouring key and sits at the subtree edge with at most one
child. Only the key moves into Z, the links stay put, and the edge
node becomes the one to unlink through r3 or r4.

r3: The leaving node is a leaf. A red leaf unlinks directly. A black
leaf leaves its side one black short, removeRebalance repairs that
before the unlink.

r4: The leaving node has one child. That child must be red (see the
conclusion under the properties), so it slides into the hole and
turns black, keeping the old black count.
*/
func (tree *rbTree[K]) removeNode(z *rbNode[K]) {
	if /* r1 */ atomic.LoadInt64(&tree.count) == 1 && z.isRoot() {
		tree.root, z.left, z.right = nil, nil, nil
		return
	}

	y := z
	if /* r2 */ !z.left.isNilLeaf() && !z.right.isNilLeaf() {
		if tree.isRmBorrowPred {
			y = z.pred() // enter r3-r4
		} else {
			y = z.succ() // enter r3-r4
		}
		z.key = y.key
		z.hasKey = true
	}

	if /* r3 */ y.isLeaf() {
		// A red leaf unlinks as-is, a black one costs its path one
		// black and needs the repair before the unlink.
		if y.isBlack() {
			tree.removeRebalance(y)
		}
	} else /* r4 */ {
		// One child only, lift it into the removed slot.
		replace := y.left
		if !y.right.isNilLeaf() {
			replace = y.right
		}
		if replace.isNilLeaf() {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] no child to lift into the removed slot, violate (r4)")
		}

		tree.reattach(y.parent, replace, y.Direction())
		if y.isBlack() {
			if replace.isRed() {
				// The lifted child soaks up the released black.
				replace.color = Black
			} else {
				tree.removeRebalance(replace)
			}
		}
	}

	// Unlink y, nothing points at it afterwards.
	if !y.isRoot() {
		switch {
		case y == y.parent.left:
			y.parent.left = nil
		case y == y.parent.right:
			y.parent.right = nil
		}
	}
	y.parent, y.left, y.right = nil, nil, nil
	y.hasKey = false
}

// Remove of an absent key is a no-op.
func (tree *rbTree[K]) Remove(key K) {
	if atomic.LoadInt64(&tree.count) <= 0 {
		return
	}
	z := tree.Search(tree.root, func(node RBNode[K]) int64 {
		return tree.keyCompare(key, node.Key())
	})
	if z == nil {
		return
	}
	defer func() {
		atomic.AddInt64(&tree.count, -1)
		tree.stats.IncRemove()
	}()
	tree.removeNode(z.(*rbNode[K]))
}

func (tree *rbTree[K]) RemoveMin() (K, bool) {
	if atomic.LoadInt64(&tree.count) <= 0 {
		return *new(K), false
	}
	_min := tree.root.minimum()
	if _min.isNilLeaf() {
		return *new(K), false
	}
	key := _min.key
	defer func() {
		atomic.AddInt64(&tree.count, -1)
		tree.stats.IncRemove()
	}()
	tree.removeNode(_min)
	return key, true
}

/*
Rebalancing walks up from the doubly black node X until the missing
black is paid back. Notation: <N> red, [N] black or NIL, {N} either.
P is X's parent, S its sibling, C the nephew on X's side and D the
distant nephew. The diagrams show X on the left, the mirrored cases
rotate the other way.

rm1: S red, which forces P, C and D black. Rotate P towards X and
swap the colors of P and S. X keeps its deficit but now has a black
sibling, one of the cases below applies next.

	  [P]                   <S>                [S]
	  / \    l-rotate(P)    / \    repaint     / \
	[X] <S>  ==========>  [P] [D]  ======>   <P> [D]
	    / \               / \                / \
	  [C] [D]           [X] [C]            [X] [C]

rm2: P red, S, C and D black. Swapping the colors of P and S adds the
missing black on X's side and takes none from the other. Done.

	  <P>             [P]
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	  [C] [D]         [C] [D]

rm3: P, S, C and D all black. Painting S red evens both sides out at
one black short, the deficit moves up and the loop continues at P.

	  [P]             [P]
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	  [C] [D]         [C] [D]

rm4: S black, C red, D black, P either color. Rotate S away from X
and swap the colors of S and C. The distant nephew is now red and rm5
finishes the repair.

	                        {P}                 {P}
	  {P}                   / \                 / \
	  / \    r-rotate(S)  [X] <C>    repaint  [X] [C]
	[X] [S]  ==========>        \    ======>        \
	    / \                     [S]                 <S>
	  <C> [D]                     \                   \
	                              [D]                 [D]

rm5: S black, D red, P either color. Rotate P towards X, hand P's
color to S, then paint P and D black. One extra black lands on X's
path and the other side keeps its count. Done.

	  {P}                   [S]                 {S}
	  / \    l-rotate(P)    / \      repaint    / \
	[X] [S]  ==========>  {P} <D>    ======>  [P] [D]
	    / \               / \                 / \
	  [C] <D>           [X] [C]             [X] [C]
*/
func (tree *rbTree[K]) removeRebalance(x *rbNode[K]) {
	var steps int64
	defer func() {
		tree.stats.RecordRemoveFixup(steps)
	}()
	for {
		steps++
		if x.isRoot() {
			return
		}

		// Past the root check X hangs off a Left or a Right edge, the
		// mirrored cases only differ in which way the rotations turn.
		sibling, left := x.sibling(), x.Direction() == Left

		if /* rm1 */ sibling.isRed() {
			if left {
				tree.leftRotate(x.parent)
			} else {
				tree.rightRotate(x.parent)
			}
			sibling.color = Black
			x.parent.color = Red // ready to enter rm2
			sibling = x.sibling()
		}

		sc, sd := sibling.left, sibling.right
		if !left {
			sc, sd = sd, sc
		}

		if sc.isBlack() && sd.isBlack() {
			if /* rm2 */ x.parent.isRed() {
				sibling.color, x.parent.color = Red, Black
				return
			}
			// rm3
			sibling.color = Red
			x = x.parent
			continue
		}

		if /* rm4 */ sc.isRed() {
			if left {
				tree.rightRotate(sibling)
			} else {
				tree.leftRotate(sibling)
			}
			sc.color = Black
			sibling.color = Red
			sibling = x.sibling()
			sd = sibling.right
			if !left {
				sd = sibling.left
			}
		}

		// rm5
		if left {
			tree.leftRotate(x.parent)
		} else {
			tree.rightRotate(x.parent)
		}
		sibling.color = x.parent.color
		x.parent.color = Black
		if !sd.isNilLeaf() {
			sd.color = Black
		}
		return
	}
}

func (tree *rbTree[K]) Contains(key K) bool {
	if tree.root == nil {
		return false
	}
	return tree.Search(tree.root, func(node RBNode[K]) int64 {
		return tree.keyCompare(key, node.Key())
	}) != nil
}

func (tree *rbTree[K]) Min() (K, bool) {
	_min := tree.root.minimum()
	if _min.isNilLeaf() {
		return *new(K), false
	}
	return _min.key, true
}

func (tree *rbTree[K]) Max() (K, bool) {
	_max := tree.root.maximum()
	if _max.isNilLeaf() {
		return *new(K), false
	}
	return _max.key, true
}

// Keys loads the ascending key sequence by chasing succ nodes
// from the minimum one.
func (tree *rbTree[K]) Keys() []K {
	keys := make([]K, 0, atomic.LoadInt64(&tree.count))
	for aux := tree.root.minimum(); !aux.isNilLeaf(); aux = aux.succ() {
		keys = append(keys, aux.key)
	}
	return keys
}

func (tree *rbTree[K]) Search(x RBNode[K], fn func(RBNode[K]) int64) RBNode[K] {
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

// Foreach runs an iterative inorder walk. Returning false from the
// action stops the walk early.
func (tree *rbTree[K]) Foreach(action func(idx int64, color RBColor, key K) bool) {
	size := atomic.LoadInt64(&tree.count)
	if size < 0 || tree.root == nil {
		return
	}

	stack := make([]*rbNode[K], 0, size>>1)
	idx := int64(0)
	for aux := tree.root; !aux.isNilLeaf() || len(stack) > 0; {
		// Slide down the left spine, then visit and turn right.
		for ; !aux.isNilLeaf(); aux = aux.left {
			stack = append(stack, aux)
		}
		n := len(stack) - 1
		aux, stack = stack[n], stack[:n]
		if !action(idx, aux.color, aux.key) {
			return
		}
		idx++
		aux = aux.right
	}
}

// Release drops the whole tree as one unit. The detached nodes carry
// no payload to close, so there is no per-node unlink walk.
func (tree *rbTree[K]) Release() {
	tree.root = nil
	atomic.StoreInt64(&tree.count, 0)
}

type RBTreeOpt[K infra.OrderedKey] func(*rbTree[K])

// WithRBTreeBorrowPred makes a two-children removal borrow the pred
// node key instead of the succ node key.
func WithRBTreeBorrowPred[K infra.OrderedKey]() RBTreeOpt[K] {
	return func(tree *rbTree[K]) {
		tree.isRmBorrowPred = true
	}
}

// WithRBTreeStats enables the opentelemetry instruments of this tree.
func WithRBTreeStats[K infra.OrderedKey](name string) RBTreeOpt[K] {
	return func(tree *rbTree[K]) {
		tree.statsName = name
		tree.isStatsEnabled = true
	}
}

func NewRBTree[K infra.OrderedKey](opts ...RBTreeOpt[K]) RBTree[K] {
	tree := &rbTree[K]{
		count:          0,
		isRmBorrowPred: false,
	}

	for _, o := range opts {
		o(tree)
	}
	if tree.isStatsEnabled {
		tree.stats = newRBTreeStats(tree.statsName, tree.Len)
	}
	return tree
}
