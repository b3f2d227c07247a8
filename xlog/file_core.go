package xlog

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	_maxBufferSize    = 10 * MB
	_maxBufferFlushMs = 3000
)

var _ XLogCore = (*fileCore)(nil)

// fileCore writes entries to a single or rotating log file behind one
// of the xlog syncers. The embedded commonCore carries the whole core
// surface.
type fileCore struct {
	*commonCore
}

type FileCoreConfig struct {
	// Where the live log file lives.
	FilePath string `json:"filePath" yaml:"filePath"`
	Filename string `json:"filename" yaml:"filename"`

	// Rotation and retention policy, sizes and ages as strings like
	// "100MB" and "3day".
	FileRotateEnable bool   `json:"fileRotateEnable" yaml:"fileRotateEnable"`
	FileMaxSize      string `json:"fileMaxSize" yaml:"fileMaxSize"`
	FileMaxAge       string `json:"fileMaxAge" yaml:"fileMaxAge"`
	FileMaxBackups   int    `json:"fileMaxBackups" yaml:"fileMaxBackups"`

	// Expired backups are zipped in batches when compression is on.
	FileCompressible  bool   `json:"fileCompressible" yaml:"fileCompressible"`
	FileCompressBatch int    `json:"fileCompressBatch" yaml:"fileCompressBatch"`
	FileZipName       string `json:"fileZipName" yaml:"fileZipName"`

	// Optional write buffering in front of the file.
	FileBufferSize          string `json:"fileBufferSize" yaml:"fileBufferSize"`
	FileBufferFlushInterval int64  `json:"fileBufferFlushInterval" yaml:"fileBufferFlushInterval"` // Milliseconds
}

func parseBufferSize(size string) (uint64, error) {
	n, err := parseFileSize(size)
	if err != nil {
		return 0, err
	}
	if n > uint64(_maxBufferSize) {
		return 0, errors.New("file buffer size too large")
	}
	return n, nil
}

// bufferParams reads the optional write buffer settings and reports
// whether buffering applies. The flush interval clamps to [200ms, 3s].
func bufferParams(cfg *FileCoreConfig) (uint64, time.Duration, bool) {
	if cfg.FileBufferSize == "" || cfg.FileBufferFlushInterval <= 0 {
		return 0, 0, false
	}
	size, err := parseBufferSize(cfg.FileBufferSize)
	if err != nil {
		return 0, 0, false
	}
	intervalMs := cfg.FileBufferFlushInterval
	if intervalMs < 200 {
		intervalMs = 200
	} else if intervalMs > _maxBufferFlushMs {
		intervalMs = _maxBufferFlushMs
	}
	return size, time.Duration(intervalMs) * time.Millisecond, true
}

func newFileWriter(ctx context.Context, cfg *FileCoreConfig) io.WriteCloser {
	if !cfg.FileRotateEnable {
		return &singleLog{
			filename: cfg.Filename,
			filePath: cfg.FilePath,
		}
	}
	w := &rotateLog{
		ctx:               ctx,
		filename:          cfg.Filename,
		filePath:          cfg.FilePath,
		fileMaxSize:       cfg.FileMaxSize,
		fileMaxAge:        cfg.FileMaxAge,
		fileMaxBackups:    cfg.FileMaxBackups,
		fileCompressible:  cfg.FileCompressible,
		fileCompressBatch: cfg.FileCompressBatch,
		fileZipName:       cfg.FileZipName,
	}
	if err := w.initialize(); err != nil {
		panic(err)
	}
	return w
}

func newFileCore(cfg *FileCoreConfig) XLogCoreConstructor {
	return func(
		ctx context.Context,
		lvlEnabler zapcore.LevelEnabler,
		encoder logEncoderType,
		lvlEnc zapcore.LevelEncoder,
		tsEnc zapcore.TimeEncoder,
	) XLogCore {
		if ctx == nil {
			return nil
		}
		if cfg == nil {
			cfg = &FileCoreConfig{
				Filename: filepath.Base(os.Args[0]) + "_xlog.log",
				FilePath: os.TempDir(),
			}
		}

		fileWriter := newFileWriter(ctx, cfg)
		var ws zapcore.WriteSyncer
		if bufSize, flushInterval, buffered := bufferParams(cfg); buffered {
			syncer := &XLogBufferSyncer{
				outWriter:     fileWriter,
				arena:         &xLogArena{size: bufSize},
				flushInterval: flushInterval,
			}
			syncer.initialize()
			ws = syncer
		} else {
			ws = XLogLockSyncer(fileWriter)
		}

		core := &commonCore{
			ctx:        ctx,
			lvlEnabler: lvlEnabler,
			lvlEnc:     lvlEnc,
			tsEnc:      tsEnc,
			ws:         ws,
			enc:        getEncoderByType(encoder),
		}
		config := defaultCoreEncoderCfg()
		config.EncodeLevel = lvlEnc
		config.EncodeTime = tsEnc
		config.NameKey = coreKeyIgnored
		core.core = zapcore.NewCore(core.enc(*config), core.ws, core.lvlEnabler)

		fc := &fileCore{commonCore: core}
		// Nothing above the core tracks the file writer, reclaim it
		// together with the core.
		runtime.SetFinalizer(fc, func(fc *fileCore) {
			if syncer, ok := fc.ws.(XLogCloseableWriteSyncer); ok {
				_ = syncer.Stop()
			}
			_ = fileWriter.Close()
		})
		return fc
	}
}
