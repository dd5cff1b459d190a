//go:build windows

package engine

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestExtractIndexArgs(t *testing.T) {
	t.Run("nil selects every item", func(t *testing.T) {
		indices, num := extractIndexArgs(nil)
		assert.Zero(t, indices)
		assert.Equal(t, uint32(0xFFFFFFFF), num)
	})

	t.Run("empty selects none", func(t *testing.T) {
		indices, num := extractIndexArgs([]uint32{})
		assert.Zero(t, indices)
		assert.Zero(t, num)
	})

	t.Run("populated passes the array", func(t *testing.T) {
		indexes := []uint32{4, 2}
		indices, num := extractIndexArgs(indexes)
		assert.Equal(t, uintptr(unsafe.Pointer(&indexes[0])), indices)
		assert.Equal(t, uint32(2), num)
	})
}

func TestMaxCheckArg(t *testing.T) {
	assert.Nil(t, maxCheckArg(-1))

	if v := maxCheckArg(0); assert.NotNil(t, v) {
		assert.Equal(t, uint64(0), *v)
	}
	if v := maxCheckArg(1 << 20); assert.NotNil(t, v) {
		assert.Equal(t, uint64(1<<20), *v)
	}
}
