// Package logging builds the logrus logger handed to every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options controls logger construction
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New creates a logger from options; empty fields select info level text output on stderr
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	level := opts.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	default:
		return nil, fmt.Errorf("log format %s is invalid, must be 'text' or 'json'", opts.Format)
	}
	return logger, nil
}

// Discard returns an entry that drops everything, for tests and defaults
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// WithDevice returns a logger with device context
func WithDevice(l logrus.FieldLogger, device string) *logrus.Entry {
	return l.WithField("device", device)
}

// WithOperation returns a logger with operation context
func WithOperation(l logrus.FieldLogger, operation, id string) *logrus.Entry {
	return l.WithFields(logrus.Fields{"operation": operation, "op_id": id})
}
