package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging handle passed to every bbbpool component. It wraps a
// zap sugared logger and keeps the printf style API used throughout the
// codebase, where each message is prefixed with its subsystem and file, for
// example "core/runner: starting cycle".
type Logger struct {
	zap    *zap.Logger
	sugar  *zap.SugaredLogger
	level  zap.AtomicLevel
	alerts *AlertBuffer
	file   *ReopenableWriteSyncer
}

// New builds a Logger writing to stdout and, when file is not empty, to the
// given log file. Entries at warning level and above are additionally
// captured in the alert buffer so they can be forwarded to notifiers.
func New(level, file string, json bool) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	l := &Logger{
		level:  zap.NewAtomicLevelAt(lvl),
		alerts: NewAlertBuffer(zapcore.WarnLevel),
	}

	syncers := []zapcore.WriteSyncer{zapcore.Lock(os.Stdout)}
	if file != "" {
		ws, err := NewReopenableWriteSyncer(file)
		if err != nil {
			return nil, fmt.Errorf("logging: unable to open log file %v: %v", file, err)
		}
		l.file = ws
		syncers = append(syncers, ws)
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), l.level)
	l.zap = zap.New(core, zap.Hooks(l.alerts.Capture))
	l.sugar = l.zap.Sugar()

	return l, nil
}

// NewNop returns a Logger that discards everything. The alert buffer still
// records warnings and errors so tests can assert on them.
func NewNop() *Logger {
	l := &Logger{
		level:  zap.NewAtomicLevelAt(zapcore.DebugLevel),
		alerts: NewAlertBuffer(zapcore.WarnLevel),
	}

	// A nop core would never reach the hooks.
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(io.Discard), l.level)
	l.zap = zap.New(core, zap.Hooks(l.alerts.Capture))
	l.sugar = l.zap.Sugar()
	return l
}

// ParseLevel converts the configured textual log level into a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "ERR", "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: unknown log level %q", level)
	}
}

// SetLevel changes the level of a running logger.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// Debug logs a message at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warning logs a message at warning level.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Alerts returns the buffer holding entries destined for notifiers.
func (l *Logger) Alerts() *AlertBuffer {
	return l.alerts
}

// Zap exposes the underlying zap logger for libraries that accept one.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Reopen reopens the log file, allowing external log rotation on SIGHUP.
func (l *Logger) Reopen() error {
	if l.file == nil {
		return nil
	}
	return l.file.Reload()
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	if l.file != nil {
		return l.file.Sync()
	}
	return nil
}
