package xlog

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xtree/lib/infra"
)

var _ XLogCore = (*commonCore)(nil)

type commonCore struct {
	ctx  context.Context
	core zapcore.Core

	// The pieces the core was built from, kept so a wrap can rebuild
	// it with a different encoder config.
	lvlEnabler zapcore.LevelEnabler
	lvlEnc     zapcore.LevelEncoder
	tsEnc      zapcore.TimeEncoder
	ws         zapcore.WriteSyncer
	enc        func(cfg zapcore.EncoderConfig) zapcore.Encoder
}

func (c *commonCore) context() context.Context           { return c.ctx }
func (c *commonCore) writeSyncer() zapcore.WriteSyncer   { return c.ws }
func (c *commonCore) timeEncoder() zapcore.TimeEncoder   { return c.tsEnc }
func (c *commonCore) levelEncoder() zapcore.LevelEncoder { return c.lvlEnc }

func (c *commonCore) outEncoder() func(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return c.enc
}

// The zapcore.Core surface delegates to the wrapped core, only the
// level gate answers from the enabler directly.
func (c *commonCore) Enabled(lvl zapcore.Level) bool {
	return c.lvlEnabler.Enabled(lvl)
}

func (c *commonCore) With(fields []zap.Field) zapcore.Core {
	return c.core.With(fields)
}

func (c *commonCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return c.core.Check(ent, ce)
}

func (c *commonCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	return c.core.Write(ent, fields)
}

func (c *commonCore) Sync() error {
	return c.core.Sync()
}

// WrapCore rebuilds a core with a new encoder config but keeps the original
// write syncer, encoders and level enabler. The component adapters rely on it
// to add a name key without touching the parent logger output.
func WrapCore(core XLogCore, cfg *zapcore.EncoderConfig) (XLogCore, error) {
	// The rebuilt core keeps answering to the parent's level gate.
	follow := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return core.Enabled(l)
	})
	return WrapCoreNewLevelEnabler(core, follow, cfg)
}

// WrapCoreNewLevelEnabler is WrapCore with a detached enabler, the
// rebuilt core filters levels on its own.
func WrapCoreNewLevelEnabler(core XLogCore, lvlEnabler zapcore.LevelEnabler, cfg *zapcore.EncoderConfig) (XLogCore, error) {
	if cfg == nil {
		return nil, infra.NewErrorStack("[XLogger] logger core config is empty")
	}
	cfg.EncodeLevel, cfg.EncodeTime = core.levelEncoder(), core.timeEncoder()

	wc := &commonCore{
		ctx:        core.context(),
		ws:         core.writeSyncer(),
		enc:        core.outEncoder(),
		lvlEnc:     core.levelEncoder(),
		tsEnc:      core.timeEncoder(),
		lvlEnabler: zap.LevelEnablerFunc(lvlEnabler.Enabled),
	}
	wc.core = zapcore.NewCore(wc.enc(*cfg), wc.ws, wc.lvlEnabler)
	return wc, nil
}

// componentWrapCore feeds zap.WrapCore for the component adapters. The
// parent cores are rebuilt with the component encoder config, the sinks
// and the level enabler stay shared with the parent logger.
func componentWrapCore(core zapcore.Core) zapcore.Core {
	if core == nil {
		panic("[XLogger] core is nil")
	}
	cc, ok := core.(XLogCore)
	if !ok {
		panic("[XLogger] core is not XLogCore")
	}
	var err error
	if mc, ok := cc.(xLogMultiCore); ok && mc != nil {
		if cc, err = WrapCores(mc, componentCoreEncoderCfg()); err != nil {
			panic(err)
		}
	} else {
		if cc, err = WrapCore(cc, componentCoreEncoderCfg()); err != nil {
			panic(err)
		}
	}
	return cc
}

// componentWrapCoreNewLevelEnabler is the componentWrapCore variant for
// adapters that filter levels on their own enabler, detached from the
// parent one.
func componentWrapCoreNewLevelEnabler(lvlEnabler zapcore.LevelEnabler) func(zapcore.Core) zapcore.Core {
	return func(core zapcore.Core) zapcore.Core {
		if core == nil {
			panic("[XLogger] core is nil")
		}
		cc, ok := core.(XLogCore)
		if !ok {
			panic("[XLogger] core is not XLogCore")
		}
		var err error
		if mc, ok := cc.(xLogMultiCore); ok && mc != nil {
			if cc, err = WrapCoresNewLevelEnabler(mc, lvlEnabler, componentCoreEncoderCfg()); err != nil {
				panic(err)
			}
		} else {
			if cc, err = WrapCoreNewLevelEnabler(cc, lvlEnabler, componentCoreEncoderCfg()); err != nil {
				panic(err)
			}
		}
		return cc
	}
}

// Each call hands out a fresh config, the wrap helpers mutate their argument.
func defaultCoreEncoderCfg() *zapcore.EncoderConfig {
	return &zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		TimeKey:       "ts",
		CallerKey:     "callAt",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		FunctionKey:   "fn",
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
}

func componentCoreEncoderCfg() *zapcore.EncoderConfig {
	return &zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		TimeKey:       "ts",
		CallerKey:     coreKeyIgnored,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		FunctionKey:   coreKeyIgnored,
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
}
