package xlog

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xtree/lib/infra"
	"github.com/benz9527/xtree/lib/kv"
)

type logRecord struct {
	startOffset uint64
	length      uint64
}

// xLogArena caches encoded logs in one flat buffer. The pending records are
// indexed by start offset in an ordered map, so draining in ascending key
// order replays the logs in write order.
type xLogArena struct {
	mu      sync.Mutex
	buf     []byte
	size    uint64
	wOffset uint64
	queue   kv.OrderedMap[uint64, *logRecord]
}

// reset rewinds the write offset. Callers hold mu.
func (a *xLogArena) reset() {
	a.wOffset = 0
}

// release drops the buffer and the queue, later caches turn into no-ops.
func (a *xLogArena) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.wOffset = 0
	a.buf = nil
	a.queue = nil
}

// allocate reserves size bytes at the tail of the buffer. Callers hold mu.
func (a *xLogArena) allocate(size uint64) (uint64, bool) {
	start := a.wOffset
	if start+size > a.size {
		return 0, false // Flush first
	}
	a.wOffset = start + size
	return start, true
}

func (a *xLogArena) cache(log []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buf == nil || a.queue == nil {
		return false
	}
	offset, ok := a.allocate(uint64(len(log)))
	if !ok {
		return false
	}
	copy(a.buf[offset:], log)
	a.queue.Put(offset, &logRecord{startOffset: offset, length: uint64(len(log))})
	return true
}

func (a *xLogArena) flush(writer io.WriteCloser) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.queue == nil {
		return nil
	}
	for {
		_, record, ok := a.queue.PopMin()
		if !ok {
			break
		}
		if _, err := writer.Write(a.buf[record.startOffset : record.startOffset+record.length]); err != nil {
			return err
		}
	}
	a.reset()
	return nil
}

var (
	_ zapcore.WriteSyncer      = (*XLogBufferSyncer)(nil)
	_ XLogCloseableWriteSyncer = (*XLogBufferSyncer)(nil)
)

// XLogBufferSyncer batches writes through an arena and drains it on a timer,
// on demand through Sync, or once more at Stop.
type XLogBufferSyncer struct {
	arena     *xLogArena
	outWriter io.WriteCloser

	// Flush cadence and shutdown signalling.
	flushInterval time.Duration
	ticker        *time.Ticker
	closeC        chan struct{}
}

func (bs *XLogBufferSyncer) initialize() {
	if bs.arena == nil {
		bs.arena = &xLogArena{}
	}
	if bs.arena.size == 0 {
		bs.arena.size = uint64(4 * KB)
	}
	bs.arena.buf = make([]byte, bs.arena.size)
	bs.arena.queue = kv.NewOrderedMap[uint64, *logRecord]()
	if bs.flushInterval <= 0 {
		bs.flushInterval = 200 * time.Millisecond
	}
	bs.ticker = time.NewTicker(bs.flushInterval)
	bs.closeC = make(chan struct{})
	go bs.flushLoop()
}

// Sync implements zapcore.WriteSyncer.
func (bs *XLogBufferSyncer) Sync() error {
	return bs.arena.flush(bs.outWriter)
}

// Write implements zapcore.WriteSyncer.
func (bs *XLogBufferSyncer) Write(log []byte) (n int, err error) {
	if bs.arena.cache(log) {
		return len(log), nil
	}
	// Full arena, drain it and try once more.
	if err = bs.arena.flush(bs.outWriter); err != nil {
		return 0, err
	}
	if !bs.arena.cache(log) {
		return 0, infra.NewErrorStack("[xlog] unable to cache log in buffer")
	}
	return len(log), nil
}

func (bs *XLogBufferSyncer) Stop() error {
	select {
	case <-bs.closeC:
	default:
		close(bs.closeC)
	}
	return nil
}

func (bs *XLogBufferSyncer) flushLoop() {
	for {
		select {
		case <-bs.closeC:
			bs.ticker.Stop()
			_ = bs.Sync()
			bs.arena.release()
			return
		case <-bs.ticker.C:
			_ = bs.Sync()
		}
	}
}
