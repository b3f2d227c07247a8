package xlog

import (
	"context"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xtree/lib/kv"
)

// XLogger is the logging surface the rest of the module programs
// against, backed by an Uber zap logger.
//
// zap() hands the underlying logger to the component adapters (ants,
// gorm, go-redis, fx) so they can derive child loggers with their own
// cores.
//
// ErrorStack renders the wrapped error stack as JSON instead of the
// zap default, which keeps the stack parseable by fluentd and friends
// before it reaches a search index.
//
// The *Context variants extract extra fields, trace IDs and the like,
// from the passed context.
type XLogger interface {
	zap() *zap.Logger

	Level() string
	IncreaseLogLevel(level zapcore.Level)
	Sync() error
	Banner(banner Banner)

	// Field based entry points.
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(err error, msg string, fields ...zap.Field)
	ErrorStack(err error, msg string, fields ...zap.Field)

	// The same set with fields extracted from the context first.
	DebugContext(ctx context.Context, msg string, fields ...zap.Field)
	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	WarnContext(ctx context.Context, msg string, fields ...zap.Field)
	ErrorContext(ctx context.Context, err error, msg string, fields ...zap.Field)
	ErrorStackContext(ctx context.Context, err error, msg string, fields ...zap.Field)

	// The printf pair goes through fmt, dearer than the field methods.
	Logf(lvl zapcore.Level, format string, args ...any)
	ErrorStackf(err error, format string, args ...any)
}

// Banner is anything that can introduce the application once at boot,
// in whichever encoding the logger is configured for.
type Banner interface {
	JSON() string
	PlainText() string
}

// XLogCore couples a zapcore.Core with accessors for the pieces it was
// assembled from, so a wrapper can rebuild the core with a different
// encoder config.
type XLogCore interface {
	context() context.Context
	writeSyncer() zapcore.WriteSyncer
	timeEncoder() zapcore.TimeEncoder
	levelEncoder() zapcore.LevelEncoder
	outEncoder() func(cfg zapcore.EncoderConfig) zapcore.Encoder

	zapcore.Core
}

// XLogCoreConstructor builds a core bound to a context whose cancel
// releases the core's background resources.
type XLogCoreConstructor func(
	context.Context,
	zapcore.LevelEnabler,
	logEncoderType,
	zapcore.LevelEncoder,
	zapcore.TimeEncoder,
) XLogCore

// XLogCloseableWriteSyncer owns background resources and has to be
// stopped before its target is closed.
type XLogCloseableWriteSyncer interface {
	zapcore.WriteSyncer
	Stop() error
}

// logLevel is the config facing level vocabulary, distinct from the
// numeric zapcore levels.
type logLevel string

// Declared from most to least severe.
const (
	LogLevelError logLevel = "ERROR"
	LogLevelWarn  logLevel = "WARN"
	LogLevelInfo  logLevel = "INFO"
	LogLevelDebug logLevel = "DEBUG"
)

func (lvl logLevel) String() string { return string(lvl) }

func (lvl logLevel) zapLevel() zapcore.Level {
	switch lvl {
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// logEncoderType picks the zap encoder of a core.
type logEncoderType uint8

// JSON sits at the zero value so an unset config encodes JSON.
const (
	JSON logEncoderType = iota
	PlainText
	_encMax
)

// logOutWriterType picks the sink of a core. File is served by the
// rotating and single file write syncers, testMemAsOut only exists for
// the tests.
type logOutWriterType uint8

const (
	StdOut logOutWriterType = iota
	File
	testMemAsOut
	_writerMax
)

const (
	// ContextKeyMapToOmitempty drops the field when the context misses it.
	ContextKeyMapToOmitempty = "_"
	// ContextKeyMapToItself logs the field under the context key's own name.
	ContextKeyMapToItself = ""
	coreKeyIgnored        = ""
)

var (
	writerMap  = kv.NewOrderedMap[logOutWriterType, zapcore.WriteSyncer]()
	encoderMap = map[logEncoderType]func(cfg zapcore.EncoderConfig) zapcore.Encoder{
		JSON:      zapcore.NewJSONEncoder,
		PlainText: zapcore.NewConsoleEncoder,
	}
)

func init() {
	writerMap.Put(StdOut, &zapcore.BufferedWriteSyncer{
		WS:            os.Stdout,
		Size:          512 * 1024,
		FlushInterval: 30 * time.Second,
	})
	// Flush whatever the stdout buffer still holds when the registry
	// itself becomes garbage.
	runtime.SetFinalizer(writerMap, func(m kv.OrderedMap[logOutWriterType, zapcore.WriteSyncer]) {
		ws, ok := m.Get(StdOut)
		if !ok {
			return
		}
		if buffered, ok := ws.(*zapcore.BufferedWriteSyncer); ok {
			_ = buffered.Stop()
		}
	})
}

func getEncoderByType(typ logEncoderType) func(cfg zapcore.EncoderConfig) zapcore.Encoder {
	if enc, ok := encoderMap[typ]; ok {
		return enc
	}
	return zapcore.NewJSONEncoder
}

func getOutWriterByType(typ logOutWriterType) zapcore.WriteSyncer {
	if out, ok := writerMap.Get(typ); ok {
		return out
	}
	return zapcore.Lock(os.Stdout)
}
