// Package logger provides the process-wide logger for kbase.
//
// The package-level functions keep a printf-style call site
// (logger.Info("ingested %s", id)) while writing through zap. In the default
// development mode, Debug, Info and Warn are only emitted with --verbose and
// lines look like "[INFO] message". Production mode, used by long-running
// servers, writes JSON at info level and above.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging modes accepted by Init.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	mode              = ModeDevelopment
	level             = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	sugar   *zap.SugaredLogger
)

func init() {
	rebuild()
}

// Init selects the output mode. Unknown modes fall back to development.
func Init(m string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(strings.TrimSpace(m)) {
	case "prod", ModeProduction:
		mode = ModeProduction
	default:
		mode = ModeDevelopment
	}
	level.SetLevel(levelFor(mode, verbose))
	rebuild()
}

// Mode returns the current output mode.
func Mode() string {
	mu.RLock()
	defer mu.RUnlock()
	return mode
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	level.SetLevel(levelFor(mode, verbose))
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...any) {
	current().Debugf(format, args...)
}

// Info logs a formatted message at info level.
func Info(format string, args ...any) {
	current().Infof(format, args...)
}

// Warn logs a formatted message at warn level.
func Warn(format string, args ...any) {
	current().Warnf(format, args...)
}

// Error logs a formatted message at error level. Errors are always emitted.
func Error(format string, args ...any) {
	current().Errorf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose && mode == ModeDevelopment {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// With returns a structured logger carrying the given key/value pairs.
// Values under credential-like keys are redacted.
func With(keysAndValues ...any) *zap.SugaredLogger {
	return current().With(sanitizeKVs(keysAndValues)...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current().Sync()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func levelFor(m string, v bool) zapcore.Level {
	switch {
	case v:
		return zapcore.DebugLevel
	case m == ModeProduction:
		return zapcore.InfoLevel
	default:
		return zapcore.ErrorLevel
	}
}

// rebuild replaces the zap core. Callers must hold mu.
func rebuild() {
	var enc zapcore.Encoder
	if mode == ModeProduction {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		enc = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:       "msg",
			LevelKey:         "level",
			EncodeLevel:      bracketLevel,
			ConsoleSeparator: " ",
		})
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(output)), level)
	sugar = zap.New(core).Sugar()
}

func bracketLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}
