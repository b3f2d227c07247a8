package tree

import (
	"bytes"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/pierrec/lz4/v4"
)

const (
	uint32ByteSize = 4

	// The slab is regrown by 3/2 on boot so the woken tree has room
	// to insert into without an immediate reallocation.
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// compressUInt32Slice packs data into one LZ4 block. Incompressible
// input is kept raw, the decoder tells the two apart by length.
func compressUInt32Slice(data []uint32) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return nil
	}

	compressed := make([]byte, lz4.CompressBlockBound(buf.Len()))
	written, err := lz4.CompressBlock(buf.Bytes(), compressed, nil)
	if err != nil || written == 0 || written >= buf.Len() {
		return buf.Bytes()
	}
	return compressed[:written]
}

// decompressUInt32Slice restores a slice previously packed by
// compressUInt32Slice. result must be preallocated to the original
// element count.
func decompressUInt32Slice(data []byte, result []uint32) {
	rawSize := len(result) * uint32ByteSize
	if len(data) == rawSize {
		_ = binary.Read(bytes.NewReader(data), binary.LittleEndian, result)
		return
	}

	decompressed := make([]byte, rawSize)
	if _, err := lz4.UncompressBlock(data, decompressed); err != nil {
		return
	}
	_ = binary.Read(bytes.NewReader(decompressed), binary.LittleEndian, result)
}

// deltaEncodeUInt32Slice replaces each element with the difference from
// its predecessor, in place. The first element is left unchanged. This
// transforms sorted sequences into small, repetitive values that
// compress better with LZ4.
func deltaEncodeUInt32Slice(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// deltaDecodeUInt32Slice performs a prefix-sum to restore the original
// values from deltas, in place.
func deltaDecodeUInt32Slice(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}

// hibernate deinterleaves the node planes and compresses each one
// concurrently. An empty slab stays active, there is nothing to pack.
func (arena *rbArena) hibernate() {
	arena.hibernatedStorageLen = len(arena.storage)
	if arena.hibernatedStorageLen == 0 {
		return
	}

	buffers := [5][]uint32{}
	for idx := range buffers {
		buffers[idx] = make([]uint32, len(arena.storage))
	}

	// Deinterleave the node planes to achieve a better compression ratio.
	for idx, node := range arena.storage {
		buffers[0][idx] = node.key
		buffers[1][idx] = node.left
		buffers[2][idx] = node.parent
		buffers[3][idx] = node.right
		if node.color == Red {
			buffers[4][idx] = 1
		}
	}

	arena.storage = nil

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers) + 1)

	for idx, buffer := range buffers {
		go func(bufIdx int, buf []uint32) {
			arena.hibernatedData[bufIdx] = compressUInt32Slice(buf)
			buffers[bufIdx] = nil
			wg.Done()
		}(idx, buffer)
	}

	// The gap plane is sorted and delta encoded before compression.
	go func() {
		if len(arena.gaps) > 0 {
			arena.hibernatedGapsLen = len(arena.gaps)

			gapsBuffer := make([]uint32, 0, len(arena.gaps))
			for handle := range arena.gaps {
				gapsBuffer = append(gapsBuffer, handle)
			}
			sort.Slice(gapsBuffer, func(i, j int) bool { return gapsBuffer[i] < gapsBuffer[j] })
			deltaEncodeUInt32Slice(gapsBuffer)
			arena.hibernatedData[len(buffers)] = compressUInt32Slice(gapsBuffer)
		}
		arena.gaps = map[uint32]bool{}
		wg.Done()
	}()

	wg.Wait()
}

// boot decompresses the planes concurrently and reinterleaves the
// slab, regrown by 3/2 so the woken tree has room to insert into.
func (arena *rbArena) boot() {
	if arena.hibernatedStorageLen == 0 {
		return
	}

	arena.gaps = map[uint32]bool{}
	buffers := [5][]uint32{}

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers) + 1)

	for idx := range buffers {
		go func(bufIdx int) {
			buffers[bufIdx] = make([]uint32, arena.hibernatedStorageLen)
			decompressUInt32Slice(arena.hibernatedData[bufIdx], buffers[bufIdx])
			arena.hibernatedData[bufIdx] = nil
			wg.Done()
		}(idx)
	}

	go func() {
		if arena.hibernatedGapsLen > 0 {
			gapData := arena.hibernatedData[len(buffers)]
			buffer := make([]uint32, arena.hibernatedGapsLen)
			decompressUInt32Slice(gapData, buffer)
			deltaDecodeUInt32Slice(buffer)

			for _, handle := range buffer {
				arena.gaps[handle] = true
			}

			arena.hibernatedData[len(buffers)] = nil
			arena.hibernatedGapsLen = 0
		}
		wg.Done()
	}()

	wg.Wait()

	capSize := (arena.hibernatedStorageLen * growCapacityNumerator) / growCapacityDenominator
	arena.storage = make([]arenaNode, arena.hibernatedStorageLen, capSize)

	for idx := range arena.storage {
		node := &arena.storage[idx]
		node.key = buffers[0][idx]
		node.left = buffers[1][idx]
		node.parent = buffers[2][idx]
		node.right = buffers[3][idx]
		if buffers[4][idx] > 0 {
			node.color = Red
		}
	}

	arena.hibernatedStorageLen = 0
}
