package xlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	glogger "gorm.io/gorm/logger"
	gutils "gorm.io/gorm/utils"
)

// GormXLogger adapts the XLogger to the gorm logger interface. Unlike
// the other component adapters it filters on its own dynamic level,
// LogMode has to work independently of the parent logger level.
type GormXLogger struct {
	logger              XLogger
	cfg                 *glogger.Config
	dynamicLevelEnabler zap.AtomicLevel
	gormLevel           int32
}

var _ glogger.Interface = (*GormXLogger)(nil)

func (gl *GormXLogger) level() glogger.LogLevel {
	return glogger.LogLevel(atomic.LoadInt32(&gl.gormLevel))
}

func (gl *GormXLogger) LogMode(lvl glogger.LogLevel) glogger.Interface {
	atomic.StoreInt32(&gl.gormLevel, int32(lvl))
	gl.dynamicLevelEnabler.SetLevel(getLogLevelOrDefaultForGorm(lvl))
	return gl
}

func (gl *GormXLogger) Info(ctx context.Context, msg string, data ...any) {
	if gl.level() >= glogger.Info {
		gl.logger.InfoContext(ctx, fmt.Sprintf(msg, data...), zap.String("fileAndLine", gutils.FileWithLineNum()))
	}
}

func (gl *GormXLogger) Warn(ctx context.Context, msg string, data ...any) {
	if gl.level() >= glogger.Warn {
		gl.logger.WarnContext(ctx, fmt.Sprintf(msg, data...), zap.String("fileAndLine", gutils.FileWithLineNum()))
	}
}

func (gl *GormXLogger) Error(ctx context.Context, msg string, data ...any) {
	if gl.level() >= glogger.Error {
		gl.logger.ErrorContext(ctx, nil, fmt.Sprintf(msg, data...), zap.String("fileAndLine", gutils.FileWithLineNum()))
	}
}

// A negative affected rows count means the statement reported nothing.
func gormRowsField(rows int64) zap.Field {
	if rows <= -1 {
		return zap.String("rows", "-")
	}
	return zap.String("rows", strconv.FormatInt(rows, 10))
}

func (gl *GormXLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if gl.level() <= glogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && gl.level() >= glogger.Error && (!errors.Is(err, glogger.ErrRecordNotFound) || gl.cfg.IgnoreRecordNotFoundError):
		sql, rows := fc()
		gl.logger.ErrorContext(ctx, err, "error trace",
			zap.String("fileAndLine", gutils.FileWithLineNum()),
			gormRowsField(rows),
			zap.Int64("elapsedMs", elapsed.Milliseconds()),
			zap.String("sql", sql),
		)
	case elapsed > gl.cfg.SlowThreshold && gl.cfg.SlowThreshold != 0 && gl.level() >= glogger.Warn:
		sql, rows := fc()
		gl.logger.WarnContext(ctx, "slow sql",
			zap.Int64("thresholdMs", gl.cfg.SlowThreshold.Milliseconds()),
			zap.String("fileAndLine", gutils.FileWithLineNum()),
			gormRowsField(rows),
			zap.Int64("elapsedMs", elapsed.Milliseconds()),
			zap.String("sql", sql),
		)
	case gl.level() == glogger.Info:
		sql, rows := fc()
		gl.logger.InfoContext(ctx, "common sql info",
			zap.String("fileAndLine", gutils.FileWithLineNum()),
			gormRowsField(rows),
			zap.Int64("elapsedMs", elapsed.Milliseconds()),
			zap.String("sql", sql),
		)
	}
}

func NewGormXLogger(logger XLogger, opts ...GormXLoggerOption) *GormXLogger {
	cfg := &glogger.Config{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 500 * time.Millisecond
	}
	gl := &GormXLogger{
		cfg:                 cfg,
		gormLevel:           int32(cfg.LogLevel),
		dynamicLevelEnabler: zap.NewAtomicLevelAt(getLogLevelOrDefaultForGorm(cfg.LogLevel)),
	}

	child := &xLogger{}
	child.logger.Store(logger.zap().Named("Gorm").WithOptions(zap.WrapCore(componentWrapCoreNewLevelEnabler(gl.dynamicLevelEnabler))))
	gl.logger = child
	return gl
}

func getLogLevelOrDefaultForGorm(lvl glogger.LogLevel) zapcore.Level {
	switch lvl {
	case glogger.Error:
		return zapcore.ErrorLevel
	case glogger.Warn:
		return zapcore.WarnLevel
	case glogger.Info:
		return zapcore.InfoLevel
	}
	// Silent maps to debug, the gorm level gate mutes the entries anyway.
	return zapcore.DebugLevel
}

type GormXLoggerOption func(*glogger.Config)

// WithGormXLoggerSlowThreshold moves the slow query cutoff away from
// the half second default.
func WithGormXLoggerSlowThreshold(threshold time.Duration) GormXLoggerOption {
	return func(cfg *glogger.Config) { cfg.SlowThreshold = threshold }
}

func WithGormXLoggerLogLevel(lvl glogger.LogLevel) GormXLoggerOption {
	return func(cfg *glogger.Config) { cfg.LogLevel = lvl }
}

// WithGormXLoggerIgnoreRecord404Err keeps missing record errors out of
// the error trace.
func WithGormXLoggerIgnoreRecord404Err() GormXLoggerOption {
	return func(cfg *glogger.Config) { cfg.IgnoreRecordNotFoundError = true }
}

func WithGormXLoggerParameterizedQueries() GormXLoggerOption {
	return func(cfg *glogger.Config) { cfg.ParameterizedQueries = true }
}
