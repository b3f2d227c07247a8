package tree

import (
	randv2 "math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRBArena_MallocAndFree(t *testing.T) {
	arena := newRBArena()
	require.Equal(t, 0, arena.size())
	require.Equal(t, 0, arena.used())

	h1 := arena.malloc()
	require.Equal(t, uint32(1), h1)
	require.Equal(t, 2, arena.size())
	require.Equal(t, 1, arena.used())

	h2 := arena.malloc()
	require.Equal(t, uint32(2), h2)
	require.Equal(t, 3, arena.size())
	require.Equal(t, 2, arena.used())

	arena.free(h1)
	require.Equal(t, 3, arena.size())
	require.Equal(t, 1, arena.used())

	// The freed slot is handed out again before the slab grows.
	h3 := arena.malloc()
	require.Equal(t, h1, h3)
	require.Equal(t, 3, arena.size())
	require.Equal(t, 2, arena.used())

	require.Panics(t, func() { arena.free(nilArenaNode) })
	arena.free(h3)
	require.Panics(t, func() { arena.free(h3) })
}

func TestArenaRbtreeInsertAndRemove_Table(t *testing.T) {
	type checkData struct {
		color RBColor
		key   uint32
	}

	tree := &arenaRBTree{arena: newRBArena()}

	tree.Insert(52)
	tree.Insert(47)
	tree.Insert(3)
	tree.Insert(35)
	tree.Insert(24)
	expected := []checkData{
		{Red, 3},
		{Black, 24},
		{Red, 35},
		{Black, 47},
		{Black, 52},
	}
	tree.Foreach(func(idx int64, color RBColor, key uint32) bool {
		require.Equal(t, expected[idx].color, color)
		require.Equal(t, expected[idx].key, key)
		return true
	})
	require.NoError(t, RedViolationValidate[uint32](tree))
	require.NoError(t, BlackViolationValidate[uint32](tree))
	require.Equal(t, int64(5), tree.Len())

	// The node 24 holds two children, so its key is borrowed from
	// the succ node 35 and the old red leaf 35 is unlinked instead.

	tree.Remove(24)
	require.False(t, tree.Contains(24))
	expected = []checkData{
		{Red, 3},
		{Black, 35},
		{Black, 47},
		{Black, 52},
	}
	tree.Foreach(func(idx int64, color RBColor, key uint32) bool {
		require.Equal(t, expected[idx].color, color)
		require.Equal(t, expected[idx].key, key)
		return true
	})
	require.NoError(t, RedViolationValidate[uint32](tree))
	require.NoError(t, BlackViolationValidate[uint32](tree))

	tree.Remove(47)
	require.False(t, tree.Contains(47))
	expected = []checkData{
		{Black, 3},
		{Black, 35},
		{Black, 52},
	}
	tree.Foreach(func(idx int64, color RBColor, key uint32) bool {
		require.Equal(t, expected[idx].color, color)
		require.Equal(t, expected[idx].key, key)
		return true
	})
	require.NoError(t, RedViolationValidate[uint32](tree))
	require.NoError(t, BlackViolationValidate[uint32](tree))

	tree.Remove(52)
	require.False(t, tree.Contains(52))
	expected = []checkData{
		{Red, 3}, {Black, 35},
	}
	tree.Foreach(func(idx int64, color RBColor, key uint32) bool {
		require.Equal(t, expected[idx].color, color)
		require.Equal(t, expected[idx].key, key)
		return true
	})
	require.NoError(t, RedViolationValidate[uint32](tree))
	require.NoError(t, BlackViolationValidate[uint32](tree))

	tree.Remove(3)
	tree.Remove(35)
	require.Equal(t, int64(0), tree.Len())
	require.Nil(t, tree.Root())
}

func TestArenaRbtree_IdempotentInsertAndRemove(t *testing.T) {
	tree := &arenaRBTree{arena: newRBArena()}

	require.False(t, tree.Contains(7))
	_, ok := tree.Min()
	require.False(t, ok)
	_, ok = tree.Max()
	require.False(t, ok)
	_, ok = tree.RemoveMin()
	require.False(t, ok)
	tree.Remove(7)
	require.Equal(t, int64(0), tree.Len())

	tree.Insert(7)
	tree.Insert(7)
	require.Equal(t, int64(1), tree.Len())
	require.Equal(t, 1, tree.arena.used())

	tree.Insert(3)
	tree.Insert(11)
	tree.Insert(3)
	require.Equal(t, int64(3), tree.Len())
	require.Equal(t, 3, tree.arena.used())
	require.Equal(t, []uint32{3, 7, 11}, tree.Keys())

	minKey, ok := tree.Min()
	require.True(t, ok)
	require.Equal(t, uint32(3), minKey)
	maxKey, ok := tree.Max()
	require.True(t, ok)
	require.Equal(t, uint32(11), maxKey)

	tree.Remove(3)
	tree.Remove(3)
	require.Equal(t, int64(2), tree.Len())
	require.Equal(t, 2, tree.arena.used())
	require.Equal(t, []uint32{7, 11}, tree.Keys())
	require.NoError(t, Validate[uint32](tree))
}

func TestArenaRbtree_SlabReuse(t *testing.T) {
	tree := &arenaRBTree{arena: newRBArena()}

	for i := uint32(1); i <= 64; i++ {
		tree.Insert(i)
	}
	require.Equal(t, 65, tree.arena.size())
	require.Equal(t, 64, tree.arena.used())

	for i := uint32(1); i <= 16; i++ {
		tree.Remove(i * 4)
	}
	require.Equal(t, 65, tree.arena.size())
	require.Equal(t, 48, tree.arena.used())

	// Gap slots are reused, the slab must not grow.
	for i := uint32(0); i < 16; i++ {
		tree.Insert(1000 + i)
	}
	require.Equal(t, 65, tree.arena.size())
	require.Equal(t, 64, tree.arena.used())
	require.NoError(t, Validate[uint32](tree))
}

func arenaRbtreeInsertAndRemoveSequentialNumberRunCore(t *testing.T, rmBorrowPred bool) {
	total := uint32(1000)
	insertTotal := uint32(float64(total) * 0.8)
	removeTotal := uint32(float64(total) * 0.2)

	tree := &arenaRBTree{
		arena:          newRBArena(),
		isRmBorrowPred: rmBorrowPred,
	}

	for i := uint32(0); i < insertTotal; i++ {
		tree.Insert(i)
		require.NoError(t, RedViolationValidate[uint32](tree))
		require.NoError(t, BlackViolationValidate[uint32](tree))
	}
	tree.Foreach(func(idx int64, color RBColor, key uint32) bool {
		require.Equal(t, uint32(idx), key)
		return true
	})
	require.NoError(t, AscendingOrderValidate[uint32](tree))
	require.NoError(t, HeightBoundValidate[uint32](tree))

	for i := insertTotal; i < removeTotal+insertTotal; i++ {
		tree.Insert(i)
		require.NoError(t, RedViolationValidate[uint32](tree))
		require.NoError(t, BlackViolationValidate[uint32](tree))
	}

	for i := insertTotal; i < removeTotal+insertTotal; i++ {
		if i == insertTotal+92 {
			x := tree.Search(tree.Root(), func(node RBNode[uint32]) int64 {
				if i == node.Key() {
					return 0
				} else if i < node.Key() {
					return -1
				}
				return 1
			})
			require.Equal(t, i, x.Key())
		}
		tree.Remove(i)
		require.False(t, tree.Contains(i))
		require.NoError(t, RedViolationValidate[uint32](tree))
		require.NoError(t, BlackViolationValidate[uint32](tree))
	}
	tree.Foreach(func(idx int64, color RBColor, key uint32) bool {
		require.Equal(t, uint32(idx), key)
		return true
	})
	require.NoError(t, Validate[uint32](tree))
}

func TestArenaRbtreeInsertAndRemove_SequentialNumber(t *testing.T) {
	type testcase struct {
		name         string
		rmBorrowPred bool
	}
	testcases := []testcase{
		{
			name: "rm by succ",
		},
		{
			name:         "rm by pred",
			rmBorrowPred: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			arenaRbtreeInsertAndRemoveSequentialNumberRunCore(tt, tc.rmBorrowPred)
		})
	}
}

func TestArenaRbtree_SortedSliceModelCompare(t *testing.T) {
	tree := NewArenaRBTree()
	model := make([]uint32, 0, 256)

	modelInsert := func(key uint32) {
		idx := sort.Search(len(model), func(i int) bool { return model[i] >= key })
		if idx < len(model) && model[idx] == key {
			return
		}
		model = append(model, 0)
		copy(model[idx+1:], model[idx:])
		model[idx] = key
	}
	modelRemove := func(key uint32) {
		idx := sort.Search(len(model), func(i int) bool { return model[i] >= key })
		if idx == len(model) || model[idx] != key {
			return
		}
		model = append(model[:idx], model[idx+1:]...)
	}

	for round := 0; round < 2048; round++ {
		key := randv2.Uint32() % 256
		idx := sort.Search(len(model), func(i int) bool { return model[i] >= key })
		require.Equal(t, idx < len(model) && model[idx] == key, tree.Contains(key))

		if randv2.Uint32()&0x1 == 0 {
			tree.Insert(key)
			modelInsert(key)
		} else {
			tree.Remove(key)
			modelRemove(key)
		}
		require.Equal(t, int64(len(model)), tree.Len())
		require.Equal(t, model, tree.Keys())
		require.NoError(t, Validate[uint32](tree))
	}

	for i := 0; tree.Len() > 0; i++ {
		key, ok := tree.RemoveMin()
		require.True(t, ok)
		require.Equal(t, model[i], key)
	}
	_, ok := tree.RemoveMin()
	require.False(t, ok)
}

func TestArenaRbtree_Release(t *testing.T) {
	tree := &arenaRBTree{arena: newRBArena()}

	for i := uint32(1); i <= 128; i++ {
		tree.Insert(i)
	}
	require.Equal(t, int64(128), tree.Len())

	tree.Release()
	require.Equal(t, int64(0), tree.Len())
	require.Nil(t, tree.Root())
	require.Equal(t, 0, tree.arena.used())

	// The reset slab accepts new inserts.
	tree.Insert(42)
	require.True(t, tree.Contains(42))
	require.Equal(t, int64(1), tree.Len())
	require.NoError(t, Validate[uint32](tree))
}

func TestArenaRbtree_HibernateAndBoot(t *testing.T) {
	tree := NewArenaRBTree()

	for i := uint32(1); i <= 512; i++ {
		tree.Insert(i * 3)
	}
	for i := uint32(1); i <= 128; i++ {
		tree.Remove(i * 12)
	}
	keysBefore := tree.Keys()
	lenBefore := tree.Len()

	require.NoError(t, tree.Hibernate())
	require.True(t, tree.Hibernated())
	require.Error(t, tree.Hibernate())
	require.Equal(t, lenBefore, tree.Len())
	require.Panics(t, func() { tree.Contains(3) })
	require.Panics(t, func() { tree.Insert(7) })
	require.Panics(t, func() { _ = tree.Keys() })

	require.NoError(t, tree.Boot())
	require.False(t, tree.Hibernated())
	require.NoError(t, tree.Boot())

	require.Equal(t, lenBefore, tree.Len())
	require.Equal(t, keysBefore, tree.Keys())
	require.NoError(t, Validate[uint32](tree))

	// The woken tree accepts mutations again and reuses the gaps
	// restored from the hibernated state.
	tree.Insert(12)
	tree.Remove(27)
	require.True(t, tree.Contains(12))
	require.False(t, tree.Contains(27))
	require.Equal(t, lenBefore, tree.Len())
	require.NoError(t, Validate[uint32](tree))
}

func TestArenaRbtree_HibernateGapsRoundTrip(t *testing.T) {
	tree := &arenaRBTree{arena: newRBArena()}

	for i := uint32(1); i <= 64; i++ {
		tree.Insert(i)
	}
	for i := uint32(1); i <= 16; i++ {
		tree.Remove(i * 4)
	}
	sizeBefore := tree.arena.size()
	usedBefore := tree.arena.used()
	keysBefore := tree.Keys()

	require.NoError(t, tree.Hibernate())
	require.NoError(t, tree.Boot())

	require.Equal(t, sizeBefore, tree.arena.size())
	require.Equal(t, usedBefore, tree.arena.used())
	require.Equal(t, keysBefore, tree.Keys())

	// Restored gap slots are reused before the slab grows.
	tree.Insert(1000)
	require.Equal(t, sizeBefore, tree.arena.size())
	require.NoError(t, Validate[uint32](tree))
}

func TestArenaRbtree_HibernateSkipsBelowThreshold(t *testing.T) {
	tree := NewArenaRBTree(WithArenaRBTreeHibernationThreshold(1 << 20))
	tree.Insert(1)
	require.NoError(t, tree.Hibernate())
	require.False(t, tree.Hibernated())
	require.True(t, tree.Contains(1))

	empty := NewArenaRBTree()
	require.NoError(t, empty.Hibernate())
	require.False(t, empty.Hibernated())
}

func TestArenaRbtree_NewArenaRBTreeWithOpts(t *testing.T) {
	tree := NewArenaRBTree(
		WithArenaRBTreeBorrowPred(),
		WithArenaRBTreeStats("ut-arena"),
	)
	for _, key := range []uint32{10, 20, 5, 15, 25, 3} {
		tree.Insert(key)
	}
	require.Equal(t, []uint32{3, 5, 10, 15, 20, 25}, tree.Keys())

	tree.Remove(10)
	require.Equal(t, []uint32{3, 5, 15, 20, 25}, tree.Keys())
	require.NoError(t, Validate[uint32](tree))

	key, ok := tree.RemoveMin()
	require.True(t, ok)
	require.Equal(t, uint32(3), key)
	require.NoError(t, Validate[uint32](tree))
}

func TestArenaRbtree_ForeachEarlyStop(t *testing.T) {
	tree := &arenaRBTree{arena: newRBArena()}
	for i := uint32(1); i <= 10; i++ {
		tree.Insert(i)
	}

	visited := make([]uint32, 0, 3)
	tree.Foreach(func(idx int64, color RBColor, key uint32) bool {
		visited = append(visited, key)
		return idx < 2
	})
	require.Equal(t, []uint32{1, 2, 3}, visited)
}

func BenchmarkArenaRBTree_Random(b *testing.B) {
	b.StopTimer()
	tree := NewArenaRBTree()

	rngArr := make([]uint32, 0, b.N)
	for i := 0; i < b.N; i++ {
		rngArr = append(rngArr, randv2.Uint32())
	}

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		tree.Insert(rngArr[i])
	}
}

func BenchmarkArenaRBTree_Serial(b *testing.B) {
	b.StopTimer()
	tree := NewArenaRBTree()

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		tree.Insert(uint32(i))
	}
}
