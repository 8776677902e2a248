package util

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLogLevel = LevelInfo
	useColors       = IsTerminal(os.Stderr.Fd())
	logger          = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		ForceColors:     useColors,
		DisableColors:   !useColors,
	})
	return l
}

// Logger returns the shared structured logger.
// Services use it for WithFields logging; the helpers below wrap it for
// printf-style CLI output.
func Logger() *logrus.Logger {
	return logger
}

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	currentLogLevel = level
	switch level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsQuiet reports whether only errors are shown
func IsQuiet() bool {
	return currentLogLevel >= LevelError
}

// SetColors enables or disables colored output
func SetColors(enabled bool) {
	useColors = enabled
	if f, ok := logger.Formatter.(*logrus.TextFormatter); ok {
		f.ForceColors = enabled
		f.DisableColors = !enabled
	}
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// SuccessLog logs success messages (always shown unless quiet)
func SuccessLog(format string, args ...interface{}) {
	logger.WithField("result", "ok").Info(fmt.Sprintf(format, args...))
}
