package xlog

import (
	"context"

	"go.uber.org/zap/zapcore"
)

var _ XLogCore = (*consoleCore)(nil)

// consoleCore encodes entries straight to the buffered stdout syncer.
// The embedded commonCore carries the whole core surface, nothing gets
// overridden here.
type consoleCore struct {
	*commonCore
}

func newConsoleCore(
	ctx context.Context,
	lvlEnabler zapcore.LevelEnabler,
	encoder logEncoderType,
	writer logOutWriterType,
	lvlEnc zapcore.LevelEncoder,
	tsEnc zapcore.TimeEncoder,
) XLogCore {
	// Only the stdout writer makes a console core, the file writers
	// have their own constructor.
	if writer != StdOut {
		return nil
	}
	core := &commonCore{
		ctx:        ctx,
		lvlEnabler: lvlEnabler,
		lvlEnc:     lvlEnc,
		tsEnc:      tsEnc,
		ws:         getOutWriterByType(StdOut),
		enc:        getEncoderByType(encoder),
	}
	cfg := defaultCoreEncoderCfg()
	cfg.EncodeLevel = lvlEnc
	cfg.EncodeTime = tsEnc
	core.core = zapcore.NewCore(core.enc(*cfg), core.ws, core.lvlEnabler)
	return &consoleCore{commonCore: core}
}
