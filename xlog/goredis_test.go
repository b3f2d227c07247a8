package xlog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGoRedisXLogger_ParentLogLevelChanged(t *testing.T) {
	var logger *GoRedisXLogger = nil
	require.NotPanics(t, func() {
		logger.Printf(context.TODO(), "nil receiver %d", 1)
	})

	parentLogger := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerEncoder(JSON),
		WithXLoggerTimeEncoder(zapcore.ISO8601TimeEncoder),
		WithXLoggerLevelEncoder(zapcore.CapitalLevelEncoder),
	)
	logger = NewGoRedisXLogger(parentLogger)
	parentLogger.IncreaseLogLevel(zapcore.ErrorLevel)
	parentLogger.Debug("muted by the parent level")
	logger.Printf(context.TODO(), "redis conn %d", 2)
	parentLogger.IncreaseLogLevel(zapcore.DebugLevel)
	parentLogger.Debug("visible again")
	logger.Printf(context.TODO(), "redis conn %d", 3)
	// A message containing "failed" is raised to the error level.
	logger.Printf(context.TODO(), "redis conn failed: %d", 4)
	_ = parentLogger.Sync()

	require.Panics(t, func() {
		_ = NewGoRedisXLogger(&xLogger{})
	})
}

func TestGoRedisXLogger_MiniRedis(t *testing.T) {
	parentLogger := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerEncoder(JSON),
		WithXLoggerTimeEncoder(zapcore.ISO8601TimeEncoder),
		WithXLoggerLevelEncoder(zapcore.CapitalLevelEncoder),
	)
	logger := NewGoRedisXLogger(parentLogger)

	mredis, err := miniredis.Run()
	require.NoError(t, err)
	defer mredis.Close()

	goredis.SetLogger(logger)
	rclient := goredis.NewClient(&goredis.Options{
		Addr: mredis.Addr(),
	})
	defer func() { _ = rclient.Close() }()

	require.NoError(t, rclient.Set(context.TODO(), "ordered", "rbtree", 0).Err())
	// BLPOP against a string key has to time out with an error.
	cmd := rclient.BLPop(context.TODO(), 1*time.Millisecond, "ordered")
	_, err = cmd.Result()
	require.Error(t, err)
	parentLogger.Debug("go redis", zap.String("cmd", cmd.String()))
	_ = parentLogger.Sync()
}
