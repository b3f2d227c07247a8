package xlog

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxXLogger adapts the XLogger to the fx application event logger.
// Lifecycle milestones land on info, wiring details on debug and
// every event error on the error level.
type FxXLogger struct {
	logger XLogger
}

func (fl *FxXLogger) LogEvent(event fxevent.Event) {
	if fl == nil || fl.logger == nil {
		return
	}

	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		fl.logger.Debug("fx hook OnStart executing",
			zap.String("function", e.FunctionName),
			zap.String("caller", e.CallerName),
		)
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx hook OnStart failed",
				zap.String("function", e.FunctionName),
				zap.String("caller", e.CallerName),
				zap.Duration("runtime", e.Runtime),
			)
		} else {
			fl.logger.Debug("fx hook OnStart executed",
				zap.String("function", e.FunctionName),
				zap.String("caller", e.CallerName),
				zap.Duration("runtime", e.Runtime),
			)
		}
	case *fxevent.OnStopExecuting:
		fl.logger.Info("fx hook OnStop executing",
			zap.String("function", e.FunctionName),
			zap.String("caller", e.CallerName),
		)
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx hook OnStop failed",
				zap.String("function", e.FunctionName),
				zap.String("caller", e.CallerName),
				zap.Duration("runtime", e.Runtime),
			)
		} else {
			fl.logger.Info("fx hook OnStop executed",
				zap.String("function", e.FunctionName),
				zap.String("caller", e.CallerName),
				zap.Duration("runtime", e.Runtime),
			)
		}
	case *fxevent.Supplied:
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx supply failed",
				zap.String("type", e.TypeName),
				zap.Strings("stacktrace", e.StackTrace),
			)
		} else if e.ModuleName != "" {
			fl.logger.Debug("fx supplied from module",
				zap.String("type", e.TypeName),
				zap.String("module", e.ModuleName),
			)
		} else {
			fl.logger.Debug("fx supplied",
				zap.String("type", e.TypeName),
			)
		}
	case *fxevent.Provided:
		for _, rtype := range e.OutputTypeNames {
			if e.ModuleName != "" {
				fl.logger.Debug("fx provided from module",
					zap.Bool("private", e.Private),
					zap.String("type", rtype),
					zap.String("constructor", e.ConstructorName),
					zap.String("module", e.ModuleName),
				)
			} else {
				fl.logger.Debug("fx provided",
					zap.Bool("private", e.Private),
					zap.String("type", rtype),
					zap.String("constructor", e.ConstructorName),
				)
			}
		}
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx provide failed",
				zap.Strings("stacktrace", e.StackTrace),
			)
		}
	case *fxevent.Replaced:
		for _, rtype := range e.OutputTypeNames {
			if e.ModuleName != "" {
				fl.logger.Debug("fx replaced from module",
					zap.String("type", rtype),
					zap.String("module", e.ModuleName),
				)
			} else {
				fl.logger.Debug("fx replaced",
					zap.String("type", rtype),
				)
			}
		}
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx replace failed",
				zap.Strings("stacktrace", e.StackTrace),
			)
		}
	case *fxevent.Decorated:
		for _, rtype := range e.OutputTypeNames {
			if e.ModuleName != "" {
				fl.logger.Debug("fx decorated from module",
					zap.String("type", rtype),
					zap.String("decorator", e.DecoratorName),
					zap.String("module", e.ModuleName),
				)
			} else {
				fl.logger.Debug("fx decorated",
					zap.String("type", rtype),
					zap.String("decorator", e.DecoratorName),
				)
			}
		}
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx decorate failed",
				zap.Strings("stacktrace", e.StackTrace),
			)
		}
	case *fxevent.Invoking:
		if e.ModuleName != "" {
			fl.logger.Debug("fx invoking from module",
				zap.String("function", e.FunctionName),
				zap.String("module", e.ModuleName),
			)
		} else {
			fl.logger.Debug("fx invoking", zap.String("function", e.FunctionName))
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx invoke failed",
				zap.String("function", e.FunctionName),
				zap.String("trace", e.Trace),
			)
		}
	case *fxevent.Stopping:
		fl.logger.Info("fx stopping", zap.String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx stop failed")
		}
	case *fxevent.RollingBack:
		fl.logger.Warn("fx start failed, rolling back",
			zap.Error(e.StartErr),
		)
	case *fxevent.RolledBack:
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx rollback failed")
		}
	case *fxevent.Started:
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx start failed")
		} else {
			fl.logger.Debug("fx running")
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			fl.logger.Error(e.Err, "fx logger initialization failed")
		} else {
			fl.logger.Debug("fx logger initialized", zap.String("constructor", e.ConstructorName))
		}
	}
}

// NewFxXLogger derives the fx event logger as a named child of logger.
// It panics when logger was not built by this package.
func NewFxXLogger(logger XLogger) *FxXLogger {
	child := &xLogger{}
	child.logger.Store(logger.zap().Named("Fx").WithOptions(zap.WrapCore(componentWrapCore)))
	return &FxXLogger{logger: child}
}
