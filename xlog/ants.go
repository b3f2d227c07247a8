package xlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AntsXLogger adapts the XLogger to the ants pool logger interface.
// The pool only reports abnormal events, so everything lands on the
// error level.
type AntsXLogger struct {
	logger XLogger
}

func (al *AntsXLogger) Printf(format string, args ...any) {
	if al == nil || al.logger == nil {
		return
	}
	al.logger.Logf(zapcore.ErrorLevel, format, args...)
}

// NewAntsXLogger derives the pool logger as a named child of logger.
// It panics when logger was not built by this package.
func NewAntsXLogger(logger XLogger) *AntsXLogger {
	child := &xLogger{}
	child.logger.Store(logger.zap().Named("Ants").WithOptions(zap.WrapCore(componentWrapCore)))
	return &AntsXLogger{logger: child}
}
