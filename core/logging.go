package core

import (
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const instrumentationName = "github.com/alt-coder/brainyflow-go/core"

var defaultLogger atomic.Pointer[zap.Logger]

func init() {
	defaultLogger.Store(newDefaultLogger())
}

// newDefaultLogger writes warnings and above to stderr so graph diagnostics are
// visible without any setup.
func newDefaultLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("brainyflow")
}

// SetLogger replaces the package-wide logger used by workflows that were not
// given one with WithLogger. A nil logger silences diagnostics.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultLogger.Store(logger)
}

// Logger returns the package-wide logger.
func Logger() *zap.Logger {
	return defaultLogger.Load()
}

func (s *settings) log() *zap.Logger {
	if s.logger != nil {
		return s.logger
	}
	return Logger()
}

func (s *settings) trace() trace.Tracer {
	if s.tracer != nil {
		return s.tracer
	}
	return otel.Tracer(instrumentationName)
}
