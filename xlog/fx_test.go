package xlog

import (
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

func newTestFxLogger() *FxXLogger {
	return NewFxXLogger(NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerEncoder(JSON),
		WithXLoggerWriter(StdOut),
		WithXLoggerConsoleCore(),
		WithXLoggerTimeEncoder(zapcore.ISO8601TimeEncoder),
		WithXLoggerLevelEncoder(zapcore.CapitalLevelEncoder),
	))
}

// Every fxevent type, with and without an error, has to flow through
// the adapter without panicking.
func TestFxXLogger_EventCoverage(t *testing.T) {
	errBoot := errors.New("boot failed")
	cases := []struct {
		name  string
		event fxevent.Event
	}{
		{"onStartExecuting", &fxevent.OnStartExecuting{FunctionName: "openTreeStore", CallerName: "bootstrap"}},
		{"onStartExecuted err", &fxevent.OnStartExecuted{FunctionName: "openTreeStore", CallerName: "bootstrap", Runtime: 3 * time.Millisecond, Err: errBoot}},
		{"onStartExecuted ok", &fxevent.OnStartExecuted{FunctionName: "openTreeStore", CallerName: "bootstrap", Runtime: 2 * time.Millisecond}},
		{"onStopExecuting", &fxevent.OnStopExecuting{FunctionName: "closeTreeStore", CallerName: "shutdown"}},
		{"onStopExecuted err", &fxevent.OnStopExecuted{FunctionName: "closeTreeStore", CallerName: "shutdown", Runtime: time.Millisecond, Err: errBoot}},
		{"onStopExecuted ok", &fxevent.OnStopExecuted{FunctionName: "closeTreeStore", CallerName: "shutdown", Runtime: time.Millisecond}},
		{"supplied err", &fxevent.Supplied{TypeName: "*tree.RBTree", Err: errBoot, StackTrace: []string{"supply site"}}},
		{"supplied module", &fxevent.Supplied{TypeName: "*tree.RBTree", ModuleName: "storage"}},
		{"supplied plain", &fxevent.Supplied{TypeName: "*tree.RBTree"}},
		{"provided err", &fxevent.Provided{ConstructorName: "NewTreeStore", Err: errBoot, StackTrace: []string{"provide site"}}},
		{"provided module", &fxevent.Provided{OutputTypeNames: []string{"*tree.TreeStore"}, ConstructorName: "NewTreeStore", ModuleName: "storage"}},
		{"provided private", &fxevent.Provided{OutputTypeNames: []string{"*tree.TreeStore"}, ConstructorName: "NewTreeStore", Private: true}},
		{"replaced err", &fxevent.Replaced{OutputTypeNames: []string{"*tree.TreeStore"}, Err: errBoot, StackTrace: []string{"replace site"}}},
		{"replaced module", &fxevent.Replaced{OutputTypeNames: []string{"*tree.TreeStore"}, ModuleName: "storage"}},
		{"replaced plain", &fxevent.Replaced{OutputTypeNames: []string{"*tree.TreeStore"}}},
		{"decorated err", &fxevent.Decorated{DecoratorName: "WithTreeStats", Err: errBoot, StackTrace: []string{"decorate site"}}},
		{"decorated module", &fxevent.Decorated{OutputTypeNames: []string{"*tree.TreeStore"}, DecoratorName: "WithTreeStats", ModuleName: "storage"}},
		{"decorated plain", &fxevent.Decorated{OutputTypeNames: []string{"*tree.TreeStore"}, DecoratorName: "WithTreeStats"}},
		{"invoking module", &fxevent.Invoking{FunctionName: "registerRoutes", ModuleName: "api"}},
		{"invoking plain", &fxevent.Invoking{FunctionName: "registerRoutes"}},
		{"invoked err", &fxevent.Invoked{FunctionName: "registerRoutes", Err: errBoot, Trace: "invoke trace"}},
		{"stopping", &fxevent.Stopping{Signal: os.Kill}},
		{"stopped err", &fxevent.Stopped{Err: errBoot}},
		{"rollingBack", &fxevent.RollingBack{StartErr: errBoot}},
		{"rolledBack err", &fxevent.RolledBack{Err: errBoot}},
		{"started err", &fxevent.Started{Err: errBoot}},
		{"started ok", &fxevent.Started{}},
		{"loggerInitialized err", &fxevent.LoggerInitialized{Err: errBoot}},
		{"loggerInitialized ok", &fxevent.LoggerInitialized{ConstructorName: "NewXLogger"}},
	}
	logger := newTestFxLogger()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger.LogEvent(tc.event)
			_ = logger.logger.Sync()
		})
	}
}

func TestFxXLogger_NilAndParentLevel(t *testing.T) {
	// A nil adapter and an adapter without a parent both swallow events.
	var nilLogger *FxXLogger
	nilLogger.LogEvent(&fxevent.Started{})
	(&FxXLogger{}).LogEvent(&fxevent.Started{})

	parent := NewXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerEncoder(JSON),
		WithXLoggerWriter(StdOut),
		WithXLoggerConsoleCore(),
	)
	logger := NewFxXLogger(parent)

	// The adapter derives its core from the parent, so moving the
	// parent level mutes and unmutes the debug events too.
	parent.IncreaseLogLevel(zapcore.InfoLevel)
	parent.Debug("muted")
	logger.LogEvent(&fxevent.LoggerInitialized{ConstructorName: "NewXLogger"})

	parent.IncreaseLogLevel(zapcore.DebugLevel)
	parent.Debug("visible")
	logger.LogEvent(&fxevent.LoggerInitialized{ConstructorName: "NewXLogger"})
	_ = parent.Sync()
}
