// Package log provides the console and JSON logging setup shared by the
// nodeprops binary and its components.
package log

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu sync.RWMutex
	// where logs go by default.
	logWriter io.Writer = os.Stdout
	jsonLog             = false
)

// JSONLog turns JSON format on or off for loggers created afterwards.
func JSONLog(b bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonLog = b
}

// SetOutput redirects loggers created afterwards to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logWriter = w
}

func encoder() zapcore.Encoder {
	if jsonLog {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
}

// NewWithLevel creates a logger with a fixed level and with a set of (optional) hooks.
func NewWithLevel(module string, level zap.AtomicLevel, hooks ...func(zapcore.Entry) error) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	core := zapcore.NewCore(encoder(), zapcore.AddSync(logWriter), level)
	return zap.New(zapcore.RegisterHooks(core, hooks...)).Named(module)
}

// NewNop creates silent logger.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// Named returns a child logger with its own level. The level of a child can't
// be lower than the level of its parent.
func Named(parent *zap.Logger, name string, level zapcore.Level) *zap.Logger {
	return parent.Named(name).WithOptions(zap.IncreaseLevel(level))
}

type shortStringer interface {
	ShortString() string
}

// ZShortStringer is a zap field for values that provide an abbreviated form.
func ZShortStringer(name string, val shortStringer) zap.Field {
	return zap.String(name, val.ShortString())
}
