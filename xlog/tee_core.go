package xlog

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ XLogCore = (xLogMultiCore)(nil)

// xLogMultiCore fans every entry out to all member cores, a tee with
// the XLogCore extras. The single-core accessors answer nil, a multi
// core owns no encoder or syncer of its own and the wrap helpers have
// to recurse into the members instead.
type xLogMultiCore []XLogCore

func XLogTeeCore(cores ...XLogCore) XLogCore {
	return xLogMultiCore(cores)
}

func (mc xLogMultiCore) context() context.Context           { return nil }
func (mc xLogMultiCore) timeEncoder() zapcore.TimeEncoder   { return nil }
func (mc xLogMultiCore) levelEncoder() zapcore.LevelEncoder { return nil }
func (mc xLogMultiCore) writeSyncer() zapcore.WriteSyncer   { return nil }
func (mc xLogMultiCore) outEncoder() func(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return nil
}

func (mc xLogMultiCore) With(fields []zap.Field) zapcore.Core {
	clone := make([]zapcore.Core, 0, len(mc))
	for _, core := range mc {
		clone = append(clone, core.With(fields))
	}
	return zapcore.NewTee(clone...)
}

// Level always reports debug, the member enablers gate the writes.
func (mc xLogMultiCore) Level() zapcore.Level {
	minLvl := zapcore.DebugLevel
	for _, core := range mc {
		if lvl := zapcore.LevelOf(core); lvl < minLvl {
			minLvl = lvl
		}
	}
	return minLvl
}

func (mc xLogMultiCore) Enabled(lvl zapcore.Level) bool {
	for _, core := range mc {
		if core.Enabled(lvl) {
			return true
		}
	}
	return false
}

func (mc xLogMultiCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	for _, core := range mc {
		ce = core.Check(ent, ce)
	}
	return ce
}

func (mc xLogMultiCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	var errs error
	for _, core := range mc {
		errs = multierr.Append(errs, core.Write(ent, fields))
	}
	return errs
}

func (mc xLogMultiCore) Sync() error {
	var errs error
	for _, core := range mc {
		errs = multierr.Append(errs, core.Sync())
	}
	return errs
}

// WrapCores rebuilds each member with the given encoder config, the
// result stays a tee.
func WrapCores(cores []XLogCore, cfg *zapcore.EncoderConfig) (XLogCore, error) {
	tee := make(xLogMultiCore, 0, len(cores))
	for _, core := range cores {
		wrapped, err := WrapCore(core, cfg)
		if err != nil {
			return nil, err
		}
		tee = append(tee, wrapped)
	}
	return tee, nil
}

func WrapCoresNewLevelEnabler(cores []XLogCore, lvlEnabler zapcore.LevelEnabler, cfg *zapcore.EncoderConfig) (XLogCore, error) {
	tee := make(xLogMultiCore, 0, len(cores))
	for _, core := range cores {
		wrapped, err := WrapCoreNewLevelEnabler(core, lvlEnabler, cfg)
		if err != nil {
			return nil, err
		}
		tee = append(tee, wrapped)
	}
	return tee, nil
}
