// Package telemetry provides categorized structured logging built on
// go.uber.org/zap, following the per-subsystem logger pattern used
// throughout the reference CLI this module was split out of.
package telemetry

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies the subsystem a logger belongs to. Kept as a string
// type (not an enum of *zap.Logger) so new categories don't require a
// central registry change.
type Category string

const (
	CategorySupervisor Category = "supervisor"
	CategoryCascade    Category = "cascade"
	CategoryDecision   Category = "decision"
	CategoryBackend    Category = "backend"
	CategoryProfiler   Category = "profiler"
	CategoryMemory     Category = "memory"
	CategoryDevice     Category = "device"
	CategoryCompletion Category = "completion"
	CategoryLogitBias  Category = "logitbias"
	CategoryWorkflow   Category = "workflow"
)

var (
	once     sync.Once
	base     *zap.Logger
	loggers  = map[Category]*zap.SugaredLogger{}
	loggerMu sync.Mutex
)

func buildBase() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if os.Getenv("LLMCASCADE_DEBUG") != "" {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		// Logging must never prevent the process from running; fall back
		// to a no-op logger rather than panicking.
		return zap.NewNop()
	}
	return logger
}

// Get returns the sugared logger for category, lazily constructing the
// shared base logger on first use.
func Get(category Category) *zap.SugaredLogger {
	once.Do(func() { base = buildBase() })

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := base.Sugar().With("component", string(category))
	loggers[category] = l
	return l
}

// Sync flushes all buffered log entries; call during process shutdown.
func Sync() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
}

// SetBaseForTesting overrides the shared base logger, letting tests observe
// log output or silence it entirely (zap.NewNop()). Must be called before
// any Get() in the test process, or combined with ResetForTesting.
func SetBaseForTesting(l *zap.Logger) {
	once.Do(func() {})
	loggerMu.Lock()
	defer loggerMu.Unlock()
	base = l
	loggers = map[Category]*zap.SugaredLogger{}
}

// ResetForTesting clears cached per-category loggers so the next Get()
// rebuilds them against the current base logger.
func ResetForTesting() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	loggers = map[Category]*zap.SugaredLogger{}
}
