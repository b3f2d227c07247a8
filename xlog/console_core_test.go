package xlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConsoleCore_NonConsoleWriter(t *testing.T) {
	lvlEnabler := zap.NewAtomicLevelAt(LogLevelDebug.zapLevel())
	cc := newConsoleCore(context.TODO(), &lvlEnabler, JSON, testMemAsOut, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)
	require.Nil(t, cc)
}

func TestConsoleCore(t *testing.T) {
	lvlEnabler := zap.NewAtomicLevelAt(LogLevelDebug.zapLevel())
	var cc XLogCore = newConsoleCore(context.TODO(), &lvlEnabler, JSON, StdOut, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)
	require.NotNil(t, cc)
	require.NotNil(t, cc.writeSyncer())
	require.NotNil(t, cc.outEncoder())
	require.NotNil(t, cc.timeEncoder())
	require.NotNil(t, cc.levelEncoder())
	inner := cc.(*consoleCore).commonCore
	require.NotNil(t, inner.lvlEnabler)
	require.NotNil(t, inner.core)

	allLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for _, lvl := range allLevels {
		require.True(t, cc.Enabled(lvl), lvl.String())
	}

	lvlEnabler.SetLevel(zapcore.ErrorLevel)
	for _, lvl := range allLevels[:len(allLevels)-1] {
		require.False(t, cc.Enabled(lvl), lvl.String())
	}
	require.True(t, cc.Enabled(zapcore.ErrorLevel))
	lvlEnabler.SetLevel(zapcore.DebugLevel)

	require.NotNil(t, cc.With([]zap.Field{zap.String("color", "red")}))

	ent := cc.Check(zapcore.Entry{Level: zapcore.DebugLevel}, nil)
	require.NoError(t, cc.Write(ent.Entry, []zap.Field{zap.String("color", "black")}))
	_ = cc.Sync()

	// The wrapped core re-encodes through the component config, the writer stays stdout.
	wrapped, err := WrapCore(cc, componentCoreEncoderCfg())
	require.NoError(t, err)
	require.NotNil(t, wrapped)
	require.NoError(t, wrapped.Write(zapcore.Entry{Level: zapcore.DebugLevel, LoggerName: "console"}, []zap.Field{zap.String("color", "red")}))
	_ = wrapped.Sync()
}
