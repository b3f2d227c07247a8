package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func orderedKeyLess[K OrderedKey](a, b K) bool {
	return a < b
}

func TestOrderedKeyLess(t *testing.T) {
	assert.True(t, orderedKeyLess(1, 2))
	assert.True(t, orderedKeyLess(int8(-2), int8(-1)))
	assert.True(t, orderedKeyLess(uint64(1), uint64(2)))
	assert.True(t, orderedKeyLess(uintptr(1), uintptr(2)))
	assert.True(t, orderedKeyLess(byte('a'), byte('b')))
	assert.True(t, orderedKeyLess(1.5, 2.5))
	assert.True(t, orderedKeyLess("abc", "abd"))
	assert.False(t, orderedKeyLess("b", "a"))
}
