package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the service-wide structured logger. It writes to a rotating
// file and to stdout.
type Logger struct {
	*logrus.Logger
	file io.Closer
}

// New creates a Logger writing to <dir>/dispatch.log and stdout.
func New(dir, level string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create logs folder failed: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "dispatch.log"),
		MaxSize:    50,
		MaxBackups: 7,
		MaxAge:     28,
		Compress:   true,
	}
	l := NewWithWriter(io.MultiWriter(rotator, os.Stdout), level)
	l.file = rotator
	return l, nil
}

// NewWithWriter creates a Logger writing only to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		base.Warnf("Unknown log level %q, using info", level)
	}
	base.SetLevel(lvl)
	return &Logger{Logger: base}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
