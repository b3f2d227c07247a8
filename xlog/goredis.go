package xlog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GoRedisXLogger adapts the XLogger to the go-redis internal logger.
// The client reports everything through one Printf, a "failed" marker
// in the message is the only error signal it gives us.
type GoRedisXLogger struct {
	logger XLogger
}

func (rl *GoRedisXLogger) Printf(ctx context.Context, format string, v ...any) {
	if rl == nil || rl.logger == nil {
		return
	}
	lvl := zapcore.InfoLevel
	msg := fmt.Sprintf(format, v...)
	if strings.Contains(msg, "failed") {
		lvl = zapcore.ErrorLevel
	}
	rl.logger.Logf(lvl, msg)
}

func NewGoRedisXLogger(logger XLogger) *GoRedisXLogger {
	child := &xLogger{}
	child.logger.Store(
		logger.zap().
			Named("GoRedis").
			WithOptions(zap.WrapCore(componentWrapCore)),
	)
	return &GoRedisXLogger{logger: child}
}
