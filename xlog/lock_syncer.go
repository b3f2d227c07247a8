package xlog

import (
	"io"
	"sync"

	"go.uber.org/zap/zapcore"
)

// xLogLockSyncer serializes writes with a plain mutex. It fits the
// low throughput writers where the flat buffer syncer is overkill.
type xLogLockSyncer struct {
	outWriter io.WriteCloser
	closeC    chan struct{}
	mu        sync.Mutex
}

var _ XLogCloseableWriteSyncer = (*xLogLockSyncer)(nil)

// Write implements zapcore.WriteSyncer.
func (ls *xLogLockSyncer) Write(p []byte) (int, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	return ls.outWriter.Write(p)
}

// Sync implements zapcore.WriteSyncer. Each write lands in the out
// writer directly, nothing is held back to flush.
func (ls *xLogLockSyncer) Sync() error {
	return nil
}

func (ls *xLogLockSyncer) Stop() error {
	select {
	case <-ls.closeC:
	default:
		close(ls.closeC)
	}
	return nil
}

func (ls *xLogLockSyncer) waitForClose() {
	<-ls.closeC
	// The rotate writer shuts down through its own context.
	if _, ok := ls.outWriter.(*rotateLog); !ok {
		_ = ls.outWriter.Close()
	}
}

func XLogLockSyncer(writer io.WriteCloser) zapcore.WriteSyncer {
	ls := &xLogLockSyncer{
		outWriter: writer,
		closeC:    make(chan struct{}),
	}
	go ls.waitForClose()
	return ls
}
