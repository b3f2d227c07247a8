package tree

import (
	"errors"
	"math"

	"go.uber.org/multierr"

	"github.com/benz9527/xtree/lib/infra"
)

func isBlack[K infra.OrderedKey](node RBNode[K]) bool {
	return isNilLeaf[K](node) || node.Color() == Black
}

func isRed[K infra.OrderedKey](node RBNode[K]) bool {
	return !isNilLeaf[K](node) && node.Color() == Red
}

func isNilLeaf[K infra.OrderedKey](node RBNode[K]) bool {
	return node == nil || (!node.HasKey() && node.Parent() == nil && node.Left() == nil && node.Right() == nil)
}

func isRoot[K infra.OrderedKey](node RBNode[K]) bool {
	return node != nil && node.Parent() == nil
}

// blackDepthTo counts the black nodes on the path from a node up to,
// but not including, the given ancestor.
func blackDepthTo[K infra.OrderedKey](from, to RBNode[K]) int {
	depth := 0
	for aux := from; aux != to; aux = aux.Parent() {
		if isBlack[K](aux) {
			depth++
		}
	}
	return depth
}

// Rule validation below follows the model in
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

// RedViolationValidate walks the tree inorder and reports the first
// red node whose parent or child is red too.
func RedViolationValidate[K infra.OrderedKey](tree RBTree[K]) error {
	aux := tree.Root()
	if tree.Len() < 0 || aux == nil {
		return nil
	}

	stack := make([]RBNode[K], 0, tree.Len()>>1)
	for ; !isNilLeaf[K](aux); aux = aux.Left() {
		stack = append(stack, aux)
	}

	for len(stack) > 0 {
		aux = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if isRed[K](aux) {
			if isRed[K](aux.Parent()) && !isRoot[K](aux.Parent()) {
				return errors.New("rbtree red violation")
			}
			if isRed[K](aux.Left()) || isRed[K](aux.Right()) {
				return errors.New("rbtree red violation")
			}
		}
		for r := aux.Right(); r != nil; r = r.Left() {
			stack = append(stack, r)
		}
	}
	return nil
}

// bfsLeaves collects the frontier, every node missing at least one
// child, level by level.
func bfsLeaves[K infra.OrderedKey](tree RBTree[K]) []RBNode[K] {
	root := tree.Root()
	if tree.Len() < 0 || isNilLeaf[K](root) {
		return nil
	}

	leaves := make([]RBNode[K], 0, tree.Len()>>1+1)
	queue := make([]RBNode[K], 0, tree.Len()>>1)
	queue = append(queue, root)
	for len(queue) > 0 {
		aux := queue[0]
		queue = queue[1:]
		l, r := aux.Left(), aux.Right()
		if isNilLeaf[K](l) || isNilLeaf[K](r) {
			leaves = append(leaves, aux)
		}
		if !isNilLeaf[K](l) {
			queue = append(queue, l)
		}
		if !isNilLeaf[K](r) {
			queue = append(queue, r)
		}
	}
	return leaves
}

/*
Notation: <N> red, [N] black.

	          [20]
	         /    \
	      [10]    [30]
	      /  \    /  \
	   <5> [15] <25> [40]
	   / \       / \
	 [2] [7]  [22] [27]

Counting the black nodes from any frontier node up to the root gives
the same total, two on every path here.
*/
func BlackViolationValidate[K infra.OrderedKey](tree RBTree[K]) error {
	leaves := bfsLeaves[K](tree)
	if len(leaves) == 0 {
		return nil
	}

	root := tree.Root()
	blackDepth := blackDepthTo[K](leaves[0], root)
	for _, leaf := range leaves[1:] {
		if blackDepthTo[K](leaf, root) != blackDepth {
			return errors.New("rbtree black violation")
		}
	}
	return nil
}

// Inorder traversal to validate the strictly ascending key sequence
// and that the visited node count matches Len().
func AscendingOrderValidate[K infra.OrderedKey](tree RBTree[K]) error {
	size := tree.Len()
	var aux RBNode[K] = tree.Root()
	if aux == nil {
		if size == 0 {
			return nil
		}
		return errors.New("rbtree size violation")
	}

	stack := make([]RBNode[K], 0, size>>1)
	for ; !isNilLeaf[K](aux); aux = aux.Left() {
		stack = append(stack, aux)
	}

	var (
		prev    K
		visited int64
	)
	for n := int64(len(stack)); n > 0; n = int64(len(stack)) {
		aux = stack[n-1]
		if visited > 0 && prev >= aux.Key() {
			return errors.New("rbtree order violation")
		}
		prev = aux.Key()
		visited++
		stack = stack[:n-1]
		for r := aux.Right(); r != nil; r = r.Left() {
			stack = append(stack, r)
		}
	}
	if visited != size {
		return errors.New("rbtree size violation")
	}
	return nil
}

// The longest root to leaf path of a balanced rbtree holds
// height <= 2 * log2(size+1).
func HeightBoundValidate[K infra.OrderedKey](tree RBTree[K]) error {
	size := tree.Len()
	root := tree.Root()
	if size <= 0 || isNilLeaf[K](root) {
		return nil
	}

	stack := make([]RBNode[K], 0, size>>1)
	depths := make([]int64, 0, size>>1)
	stack = append(stack, root)
	depths = append(depths, 1)

	height := int64(0)
	for n := len(stack); n > 0; n = len(stack) {
		aux, depth := stack[n-1], depths[n-1]
		stack, depths = stack[:n-1], depths[:n-1]
		if depth > height {
			height = depth
		}
		if l := aux.Left(); !isNilLeaf[K](l) {
			stack = append(stack, l)
			depths = append(depths, depth+1)
		}
		if r := aux.Right(); !isNilLeaf[K](r) {
			stack = append(stack, r)
			depths = append(depths, depth+1)
		}
	}

	if limit := 2 * math.Log2(float64(size)+1); float64(height) > limit {
		return errors.New("rbtree height violation")
	}
	return nil
}

// Validate runs all of the rbtree rule checks and combines the
// violations into one report.
func Validate[K infra.OrderedKey](tree RBTree[K]) error {
	var rootErr error
	if isRed[K](tree.Root()) {
		rootErr = errors.New("rbtree root violation")
	}
	return multierr.Combine(
		rootErr,
		RedViolationValidate[K](tree),
		BlackViolationValidate[K](tree),
		AscendingOrderValidate[K](tree),
		HeightBoundValidate[K](tree),
	)
}
