package xlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestXLogTeeCore_EmptyAccessors(t *testing.T) {
	tee := XLogTeeCore()
	mc, ok := tee.(xLogMultiCore)
	require.True(t, ok)
	require.Nil(t, mc.context())
	require.Nil(t, mc.writeSyncer())
	require.Nil(t, mc.levelEncoder())
	require.Nil(t, mc.timeEncoder())
	require.Nil(t, mc.outEncoder())
	require.Equal(t, zapcore.Level(-1), mc.Level())
	require.False(t, mc.Enabled(zapcore.ErrorLevel))
}

func TestConsoleAndFileMultiCores_DataRace(t *testing.T) {
	lvlEnabler := zap.NewAtomicLevelAt(LogLevelDebug.zapLevel())
	ctx, cancel := context.WithCancel(context.TODO())
	cc := newConsoleCore(ctx, &lvlEnabler, JSON, StdOut, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)

	cfg := &FileCoreConfig{
		FilePath: os.TempDir(),
		Filename: filepath.Base(os.Args[0]) + "_tee.log",
	}
	fc := newFileCore(cfg)(ctx, &lvlEnabler, JSON, zapcore.CapitalLevelEncoder, zapcore.ISO8601TimeEncoder)

	tee := xLogMultiCore{cc, fc}
	tee2, err := WrapCores(tee, defaultCoreEncoderCfg())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ent := cc.Check(zapcore.Entry{Level: zapcore.DebugLevel}, nil)
		for i := 0; i < 100; i++ {
			time.Sleep(time.Millisecond * 5)
			err := tee.Write(ent.Entry, []zap.Field{zap.String("tee", fmt.Sprintf("%d %s tee write race", i, time.Now().UTC().Format(backupDateTimeFormat)))})
			require.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		ent := cc.Check(zapcore.Entry{Level: zapcore.InfoLevel}, nil)
		for i := 0; i < 100; i++ {
			time.Sleep(time.Millisecond * 5)
			err := tee2.Write(ent.Entry, []zap.Field{zap.String("tee2", fmt.Sprintf("%d %s wrapped tee write race", i, time.Now().UTC().Format(backupDateTimeFormat)))})
			require.NoError(t, err)
		}
	}()
	go func() {
		// Twiddle the shared enabler while both writers run.
		for _, lvl := range []logLevel{LogLevelInfo, LogLevelDebug, LogLevelWarn} {
			time.Sleep(100 * time.Millisecond)
			require.NoError(t, tee.Sync())
			require.NoError(t, tee2.Sync())
			lvlEnabler.SetLevel(lvl.zapLevel())
		}
	}()
	wg.Wait()

	require.NoError(t, tee.Sync())
	require.NoError(t, tee2.Sync())
	cancel()

	removed := testCleanLogFiles(t, cfg.FilePath, filepath.Base(os.Args[0])+"_tee", ".log")
	require.Equal(t, 1, removed)
}
