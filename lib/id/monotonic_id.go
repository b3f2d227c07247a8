package id

import (
	"strconv"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const cacheLinePadSize = unsafe.Sizeof(cpu.CacheLinePad{})

// monotonicNonZeroID only increases. If the counter overflows it is
// bumped once more, so zero is never handed out.
// The value owns a whole cache line to keep the hot counter free of
// false sharing with neighbor allocations.
// Line size: cat /sys/devices/system/cpu/cpu0/cache/index0/coherency_line_size
type monotonicNonZeroID struct {
	_   [cacheLinePadSize - unsafe.Sizeof(*new(uint64))]byte
	val uint64
	_   [cacheLinePadSize - unsafe.Sizeof(*new(uint64))]byte
}

func (id *monotonicNonZeroID) next() uint64 {
	var v uint64
	if v = atomic.AddUint64(&id.val, 1); v == 0 {
		v = atomic.AddUint64(&id.val, 1)
	}
	return v
}

// MonotonicNonZeroID is a process-local sequence, not a distributed ID.
func MonotonicNonZeroID() (UUIDGen, error) {
	src := &monotonicNonZeroID{}
	return &uuidDelegator{
		number: src.next,
		str: func() string {
			return strconv.FormatUint(src.next(), 10)
		},
	}, nil
}
