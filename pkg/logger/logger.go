package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// log is the process-wide logrus instance.
//
// InitLog must be called once at startup; before that, output goes to stderr
// at Info level so early failures are still visible.
var (
	log  = logrus.New()
	once sync.Once
	file *os.File
)

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
}

// InitLog routes log output to the given file path (created if absent),
// mirroring warnings and above to stderr.
func InitLog(path string) error {
	var initErr error
	once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			initErr = fmt.Errorf("failed to open log file: %w", err)
			return
		}
		file = f
		log.SetOutput(io.MultiWriter(f, os.Stderr))
	})
	return initErr
}

// SetLevel sets the global log level by name ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return nil
}

// FlushLog closes the log file, if one was opened.
func FlushLog() {
	if file != nil {
		_ = file.Close()
	}
}

func Debug(format string, args ...interface{}) { log.Debugf(format, args...) }
func Info(format string, args ...interface{})  { log.Infof(format, args...) }
func Warn(format string, args ...interface{})  { log.Warnf(format, args...) }
func Error(format string, args ...interface{}) { log.Errorf(format, args...) }

// DebugX logs a debug message tagged with the owning module name.
func DebugX(module, format string, args ...interface{}) {
	log.WithField("module", module).Debugf(format, args...)
}

// InfoX logs an info message tagged with the owning module name.
func InfoX(module, format string, args ...interface{}) {
	log.WithField("module", module).Infof(format, args...)
}

// WarnX logs a warning tagged with the owning module name.
func WarnX(module, format string, args ...interface{}) {
	log.WithField("module", module).Warnf(format, args...)
}

// ErrorX logs an error tagged with the owning module name.
func ErrorX(module, format string, args ...interface{}) {
	log.WithField("module", module).Errorf(format, args...)
}
