package xlog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xtree/lib/infra"
	"github.com/benz9527/xtree/lib/kv"
)

var printBanner sync.Once

// xLogger fans every call out to the atomically held zap logger, so
// the component adapters can derive children while writers keep going.
type xLogger struct {
	logger              atomic.Pointer[zap.Logger]
	dynamicLevelEnabler zap.AtomicLevel
	cancelFn            context.CancelFunc

	// Fixed at build time, the banner rebuild reads these back.
	ctxFields kv.ThreadSafeStorer[string, string]
	writer    logOutWriterType
	encoder   logEncoderType
}

func (xl *xLogger) zap() *zap.Logger {
	return xl.logger.Load()
}

// IncreaseLogLevel moves the shared level in either direction, the
// name only reflects the common call site.
func (xl *xLogger) IncreaseLogLevel(level zapcore.Level) {
	xl.dynamicLevelEnabler.SetLevel(level)
}

func (xl *xLogger) Sync() error {
	return xl.logger.Load().Sync()
}

func (xl *xLogger) Level() string {
	return xl.dynamicLevelEnabler.Level().String()
}

func (xl *xLogger) Close() {
	if xl.cancelFn != nil {
		xl.cancelFn()
	}
}

func (xl *xLogger) Banner(banner Banner) {
	printBanner.Do(func() {
		// Only the message key survives, the banner goes out bare.
		cfg := zapcore.EncoderConfig{
			MessageKey:    "banner",
			LevelKey:      coreKeyIgnored,
			TimeKey:       coreKeyIgnored,
			CallerKey:     coreKeyIgnored,
			StacktraceKey: coreKeyIgnored,
		}
		bannerLogger := xl.logger.Load().WithOptions(
			zap.WrapCore(func(zapcore.Core) zapcore.Core {
				return zapcore.NewCore(
					getEncoderByType(xl.encoder)(cfg),
					getOutWriterByType(xl.writer),
					zap.NewAtomicLevelAt(zapcore.InfoLevel),
				)
			}),
		)
		switch xl.encoder {
		case PlainText:
			bannerLogger.Info(banner.PlainText())
		default:
			bannerLogger.Info(banner.JSON())
		}
	})
}

func (xl *xLogger) Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	xl.logger.Load().Log(lvl, msg, fields...)
}

func (xl *xLogger) Debug(msg string, fields ...zap.Field) {
	xl.logger.Load().Debug(msg, fields...)
}

func (xl *xLogger) Info(msg string, fields ...zap.Field) {
	xl.logger.Load().Info(msg, fields...)
}

func (xl *xLogger) Warn(msg string, fields ...zap.Field) {
	xl.logger.Load().Warn(msg, fields...)
}

func (xl *xLogger) Error(err error, msg string, fields ...zap.Field) {
	fs := make([]zap.Field, 0, len(fields)+1)
	if err != nil {
		fs = append(fs, zap.String("error", err.Error()))
	}
	xl.logger.Load().Error(msg, append(fs, fields...)...)
}

func (xl *xLogger) ErrorStack(err error, msg string, fields ...zap.Field) {
	var fs []zap.Field
	if es, ok := err.(infra.ErrorStack); ok && es != nil {
		fs = []zap.Field{zap.Inline(es)}
	}
	xl.logger.Load().Error(msg, append(fs, fields...)...)
}

func (xl *xLogger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	fs := extractFieldsFromContext(ctx, xl.ctxFields)
	xl.logger.Load().Debug(msg, append(fs, fields...)...)
}

func (xl *xLogger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	fs := extractFieldsFromContext(ctx, xl.ctxFields)
	xl.logger.Load().Info(msg, append(fs, fields...)...)
}

func (xl *xLogger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	fs := extractFieldsFromContext(ctx, xl.ctxFields)
	xl.logger.Load().Warn(msg, append(fs, fields...)...)
}

func (xl *xLogger) ErrorContext(ctx context.Context, err error, msg string, fields ...zap.Field) {
	fs := extractFieldsFromContext(ctx, xl.ctxFields)
	if err != nil {
		fs = append(fs, zap.String("error", err.Error()))
	}
	xl.logger.Load().Error(msg, append(fs, fields...)...)
}

func (xl *xLogger) ErrorStackContext(ctx context.Context, err error, msg string, fields ...zap.Field) {
	fs := extractFieldsFromContext(ctx, xl.ctxFields)
	if es, ok := err.(infra.ErrorStack); ok && es != nil {
		fs = append(fs, zap.Inline(es))
	}
	xl.logger.Load().Error(msg, append(fs, fields...)...)
}

func (xl *xLogger) Logf(lvl zapcore.Level, format string, args ...any) {
	xl.logger.Load().Log(lvl, fmt.Sprintf(format, args...))
}

func (xl *xLogger) ErrorStackf(err error, format string, args ...any) {
	var fs []zap.Field
	if es, ok := err.(infra.ErrorStack); ok && es != nil {
		fs = []zap.Field{zap.Inline(es)}
	}
	xl.logger.Load().Log(zap.ErrorLevel, fmt.Sprintf(format, args...), fs...)
}

type loggerCfg struct {
	ctx              context.Context
	ctxFields        kv.ThreadSafeStorer[string, string]
	encoderType      *logEncoderType
	lvlEncoder       zapcore.LevelEncoder
	tsEncoder        zapcore.TimeEncoder
	level            *zapcore.Level
	writer           logOutWriterType
	coreConstructors []XLogCoreConstructor
	cores            []XLogCore
}

// apply resolves the collected options into a ready xLogger, filling
// the gaps with the stdout JSON defaults.
func (cfg *loggerCfg) apply(xl *xLogger) {
	xl.encoder = JSON
	if cfg.encoderType != nil {
		xl.encoder = *cfg.encoderType
	}
	xl.writer = cfg.writer
	xl.ctxFields = cfg.ctxFields

	if cfg.level != nil {
		xl.dynamicLevelEnabler = zap.NewAtomicLevelAt(*cfg.level)
	} else {
		xl.dynamicLevelEnabler = zap.NewAtomicLevelAt(getLogLevelOrDefault(os.Getenv("XLOG_LVL")))
	}

	if cfg.lvlEncoder == nil {
		cfg.lvlEncoder = zapcore.CapitalLevelEncoder
	}
	if cfg.tsEncoder == nil {
		cfg.tsEncoder = zapcore.ISO8601TimeEncoder
	}
	if len(cfg.coreConstructors) == 0 {
		cfg.coreConstructors = []XLogCoreConstructor{
			func(ctx context.Context, lvlEnabler zapcore.LevelEnabler, encoderType logEncoderType, lvlEnc zapcore.LevelEncoder, tsEnc zapcore.TimeEncoder) XLogCore {
				return newConsoleCore(ctx, lvlEnabler, encoderType, cfg.writer, lvlEnc, tsEnc)
			},
		}
	}

	if cfg.ctx == nil {
		cfg.ctx = context.Background()
	}
	cfg.ctx, xl.cancelFn = context.WithCancel(cfg.ctx)

	cfg.cores = make([]XLogCore, 0, len(cfg.coreConstructors))
	for _, construct := range cfg.coreConstructors {
		core := construct(cfg.ctx, xl.dynamicLevelEnabler, xl.encoder, cfg.lvlEncoder, cfg.tsEncoder)
		if core == nil {
			continue
		}
		cfg.cores = append(cfg.cores, core)
	}
}

type XLoggerOption func(*loggerCfg) error

func NewXLogger(opts ...XLoggerOption) XLogger {
	cfg := &loggerCfg{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			panic(err)
		}
	}
	xl := &xLogger{}
	cfg.apply(xl)

	zl := zap.New(
		XLogTeeCore(cfg.cores...),
		// Attribute entries to whoever called the facade.
		zap.AddCallerSkip(1),
		zap.AddCaller(),
	)
	xl.logger.Store(zl)
	return xl
}

func WithXLoggerContext(ctx context.Context) XLoggerOption {
	return func(c *loggerCfg) error {
		c.ctx = ctx
		return nil
	}
}

func WithXLoggerWriter(writer logOutWriterType) XLoggerOption {
	return func(c *loggerCfg) error {
		if writer >= _writerMax {
			return infra.NewErrorStack("unknown xlogger writer")
		}
		c.writer = writer
		return nil
	}
}

func WithXLoggerConsoleCore() XLoggerOption {
	return func(c *loggerCfg) error {
		c.coreConstructors = append(c.coreConstructors,
			func(ctx context.Context, lvlEnabler zapcore.LevelEnabler, encoderType logEncoderType, lvlEnc zapcore.LevelEncoder, tsEnc zapcore.TimeEncoder) XLogCore {
				return newConsoleCore(ctx, lvlEnabler, encoderType, c.writer, lvlEnc, tsEnc)
			})
		return nil
	}
}

func WithXLoggerFileCore(coreCfg *FileCoreConfig) XLoggerOption {
	return func(c *loggerCfg) error {
		c.coreConstructors = append(c.coreConstructors, newFileCore(coreCfg))
		return nil
	}
}

func WithXLoggerEncoder(logEnc logEncoderType) XLoggerOption {
	return func(c *loggerCfg) error {
		if logEnc == _encMax {
			return infra.NewErrorStack("unknown xlogger encoder")
		}
		c.encoderType = &logEnc
		return nil
	}
}

func WithXLoggerLevel(lvl logLevel) XLoggerOption {
	return func(c *loggerCfg) error {
		zLvl := lvl.zapLevel()
		c.level = &zLvl
		return nil
	}
}

func WithXLoggerLevelEncoder(lvlEnc zapcore.LevelEncoder) XLoggerOption {
	return func(c *loggerCfg) error {
		if lvlEnc == nil {
			lvlEnc = zapcore.CapitalColorLevelEncoder
		}
		c.lvlEncoder = lvlEnc
		return nil
	}
}

func WithXLoggerTimeEncoder(tsEnc zapcore.TimeEncoder) XLoggerOption {
	return func(c *loggerCfg) error {
		if tsEnc == nil {
			tsEnc = zapcore.ISO8601TimeEncoder
		}
		c.tsEncoder = tsEnc
		return nil
	}
}

// WithXLoggerContextFieldExtract registers a context key whose value
// the *Context methods pull into the entry. An empty mapTo logs the
// value under the key itself, ContextKeyMapToOmitempty mutes the key.
func WithXLoggerContextFieldExtract(field string, mapTo ...string) XLoggerOption {
	return func(c *loggerCfg) error {
		if len(field) == 0 {
			return nil
		}
		if c.ctxFields == nil {
			c.ctxFields = kv.NewThreadSafeMap[string, string]()
		}
		if len(mapTo) == 0 || mapTo[0] == ContextKeyMapToItself {
			mapTo = []string{field}
		}
		return c.ctxFields.AddOrUpdate(field, mapTo[0])
	}
}

func getLogLevelOrDefault(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LogLevelInfo.String():
		return zapcore.InfoLevel
	case LogLevelWarn.String():
		return zapcore.WarnLevel
	case LogLevelError.String():
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}

func extractFieldsFromContext(ctx context.Context, targets kv.ThreadSafeStorer[string, string]) []zap.Field {
	if ctx == nil || targets == nil {
		return nil
	}

	// Sorted keys keep the field order stable across entries.
	keys := targets.ListKeys()
	sort.Strings(keys)
	fs := make([]zap.Field, 0, len(keys))
	for _, key := range keys {
		v := ctx.Value(key)
		mapTo, _ := targets.Get(key)
		if mapTo == ContextKeyMapToOmitempty {
			continue
		}
		if v == nil {
			fs = append(fs, zap.String(mapTo, "nil"))
			continue
		}
		fs = append(fs, zap.Any(mapTo, v))
	}
	return fs
}
