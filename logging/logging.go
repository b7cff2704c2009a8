// Package logging provides the structured Logger interface the engine
// logs through, backed by github.com/sirupsen/logrus with optional
// file rotation via gopkg.in/natefinch/lumberjack.v2. Callers may
// substitute any implementation of Logger, matching the teacher's
// pattern of depending on an interface rather than logrus directly.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger instances provide the engine's logging capability.
type Logger interface {
	Error(...any)
	Errorf(string, ...any)
	Warn(...any)
	Warnf(string, ...any)
	Info(...any)
	Infof(string, ...any)
	Debug(...any)
	Debugf(string, ...any)
	WithFields(map[string]any) Logger
}

// Options configures the default Logger implementation.
type Options struct {
	Level string // parsed with logrus.ParseLevel; defaults to "info"

	// FilePath, when set, routes output through a rotating file
	// writer; empty routes to stdout.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// defaultLog wraps a *logrus.Logger and a set of sticky fields.
type defaultLog struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// New builds the default Logger implementation from Options,
// following rogeecn-any-hub's internal/logging/logger.go: JSON
// formatting, level from config, and a lumberjack-rotated file sink
// when a path is configured, falling back to stdout on setup failure.
func New(o Options) (Logger, error) {
	level := o.Level
	if level == "" {
		level = "info"
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	out, outErr := buildOutput(o)

	l := logrus.New()
	l.SetLevel(parsed)
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	dl := &defaultLog{logger: l, fields: logrus.Fields{}}

	if outErr != nil {
		dl.Warnf("falling back to stdout: %v", outErr)
	}

	return dl, nil
}

func buildOutput(o Options) (io.Writer, error) {
	if o.FilePath == "" {
		return os.Stdout, nil
	}

	dir := filepath.Dir(o.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.Stdout, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   o.FilePath,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		Compress:   o.Compress,
		LocalTime:  true,
	}, nil
}

func (d *defaultLog) Error(a ...any)              { d.logger.WithFields(d.fields).Error(a...) }
func (d *defaultLog) Errorf(f string, a ...any)   { d.logger.WithFields(d.fields).Errorf(f, a...) }
func (d *defaultLog) Warn(a ...any)               { d.logger.WithFields(d.fields).Warn(a...) }
func (d *defaultLog) Warnf(f string, a ...any)    { d.logger.WithFields(d.fields).Warnf(f, a...) }
func (d *defaultLog) Info(a ...any)               { d.logger.WithFields(d.fields).Info(a...) }
func (d *defaultLog) Infof(f string, a ...any)    { d.logger.WithFields(d.fields).Infof(f, a...) }
func (d *defaultLog) Debug(a ...any)              { d.logger.WithFields(d.fields).Debug(a...) }
func (d *defaultLog) Debugf(f string, a ...any)   { d.logger.WithFields(d.fields).Debugf(f, a...) }

func (d *defaultLog) WithFields(fields map[string]any) Logger {
	merged := make(logrus.Fields, len(d.fields)+len(fields))
	for k, v := range d.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &defaultLog{logger: d.logger, fields: merged}
}
