package logger

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

var (
	std     = newStd()
	logFile *os.File
)

func newStd() *log.Logger {
	l := log.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	l.SetLevel(log.InfoLevel)
	return l
}

// InitLogger sets the level and, when filename is not empty, tees output
// to that file as well as the console.
func InitLogger(filename string, level string) error {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	std.SetLevel(lvl)

	if filename == "" {
		return nil
	}
	logFile, err = os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	std.SetOutput(io.MultiWriter(os.Stderr, logFile))
	return nil
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Fields is an alias so callers need not import logrus.
type Fields = log.Fields

// WithFields returns an entry carrying structured fields.
func WithFields(f Fields) *log.Entry {
	return std.WithFields(f)
}

// WithError returns an entry carrying err.
func WithError(err error) *log.Entry {
	return std.WithError(err)
}

func Debugf(format string, v ...interface{}) {
	std.Debugf(format, v...)
}

func Info(format string, v ...interface{}) {
	std.Infof(format, v...)
}

func Infof(format string, v ...interface{}) {
	Info(format, v...)
}

func Warn(format string, v ...interface{}) {
	std.Warnf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	Warn(format, v...)
}

func Error(format string, v ...interface{}) {
	std.Errorf(format, v...)
}

func Errorf(format string, v ...interface{}) {
	Error(format, v...)
}
