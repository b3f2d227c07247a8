package xlog

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/benz9527/xtree/lib/infra"
)

var _ io.WriteCloser = (*singleLog)(nil)

// singleLog appends to one log file forever, no rotation and no
// archiving. Writes are not thread-safe, the syncer above owns the
// locking.
type singleLog struct {
	currentFile atomic.Pointer[os.File]
	wroteSize   uint64
	mkdirOnce   sync.Once

	// Where the file lives and when to stop serving writes.
	filePath string
	filename string
	closeC   <-chan struct{}
}

func (sl *singleLog) Write(p []byte) (n int, err error) {
	select {
	case <-sl.closeC:
		return 0, io.EOF
	default:
	}

	f := sl.currentFile.Load()
	if f == nil {
		if err = sl.open(); err != nil {
			return 0, err
		}
		f = sl.currentFile.Load()
	}
	n, err = f.Write(p)
	sl.wroteSize += uint64(n)
	return
}

func (sl *singleLog) Close() error {
	f := sl.currentFile.Load()
	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil {
		return err
	}
	sl.currentFile.Store(nil)
	return nil
}

// open loads the file state lazily. An absent file is created, an
// existing one is opened for append and its size becomes the wrote
// counter base.
func (sl *singleLog) open() error {
	if err := sl.ensureDir(); err != nil {
		return err
	}

	pathToLog := filepath.Join(sl.filePath, sl.filename)
	info, err := os.Stat(pathToLog)
	switch {
	case os.IsNotExist(err):
		if cerr := sl.create(); cerr != nil {
			return multierr.Append(infra.WrapErrorStack(err), cerr)
		}
		return nil
	case err != nil:
		sl.currentFile.Store(nil)
		return infra.WrapErrorStack(err)
	case info.IsDir():
		sl.currentFile.Store(nil)
		return infra.NewErrorStack("log file <" + pathToLog + "> is a dir")
	}

	f, err := os.OpenFile(pathToLog, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "failed to open existing log file <"+pathToLog+">")
	}
	sl.currentFile.Store(f)
	sl.wroteSize = uint64(info.Size())
	return nil
}

func (sl *singleLog) ensureDir() error {
	var err error
	sl.mkdirOnce.Do(func() {
		if sl.filePath == "" {
			sl.filePath = os.TempDir()
		}
		if sl.filePath == os.TempDir() {
			return
		}
		err = os.MkdirAll(sl.filePath, 0o644)
	})
	return infra.WrapErrorStack(err)
}

func (sl *singleLog) create() error {
	if err := sl.ensureDir(); err != nil {
		return err
	}
	pathToLog := filepath.Join(sl.filePath, sl.filename)
	f, err := os.OpenFile(pathToLog, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "failed to create log file <"+pathToLog+">")
	}
	sl.currentFile.Store(f)
	sl.wroteSize = 0
	return nil
}

// SingleLog builds the plain file write syncer. Closing closeC retires
// it, later writes come back with io.EOF.
func SingleLog(cfg *FileCoreConfig, closeC chan struct{}) io.WriteCloser {
	if cfg == nil || closeC == nil {
		return nil
	}
	sl := &singleLog{
		filePath: cfg.FilePath,
		filename: cfg.Filename,
		closeC:   closeC,
	}
	go func() {
		<-sl.closeC
		_ = sl.Close()
	}()
	return sl
}
