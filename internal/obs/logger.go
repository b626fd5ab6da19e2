// Package obs builds the zap loggers used throughout SortAI. The
// teacher adapters print ad-hoc [DEBUG]/[INFO]/[ERROR] lines with the
// standard library logger; SortAI keeps that voice but routes it
// through structured zap fields so per-component log streams can be
// filtered and shipped.
package obs

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger. When SORTAI_LOG_FORMAT=json the
// encoder emits JSON (suitable for a background watch daemon); the
// interactive CLI default is a console encoder close to the teacher's
// bracketed log lines.
func New() *zap.SugaredLogger {
	return NewNamed("sortai")
}

// NewNamed builds a logger tagged with a "component" field, mirroring
// the teacher's log lines which are grep-able by adapter name.
func NewNamed(component string) *zap.SugaredLogger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	var encoder zapcore.Encoder
	if os.Getenv("SORTAI_LOG_FORMAT") == "json" {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	logger := zap.New(core).With(zap.String("component", component))
	return logger.Sugar()
}

// Noop returns a logger that discards everything, for tests that
// don't want to assert on log output but still need to satisfy a
// *zap.SugaredLogger dependency.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
