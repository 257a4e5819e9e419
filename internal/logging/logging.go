// Package logging builds the leveled loggers shared by every component.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New creates the base logger writing to w at the given level. An
// unknown level falls back to info.
func New(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

// ForComponent returns a child of base whose lines are prefixed with name.
func ForComponent(base *log.Logger, name string) *log.Logger {
	if base == nil {
		base = log.Default()
	}
	return base.WithPrefix(name)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
