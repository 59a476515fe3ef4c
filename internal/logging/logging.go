// logging.go — Shared logrus setup and component-scoped child entries.
// Beacon logs to stderr by default so stdout stays clean for the control
// protocol transport; an optional file path redirects everything.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Re-exported so callers don't import logrus directly.
type (
	Logger = logrus.Logger
	Entry  = logrus.Entry
	Fields = logrus.Fields
)

var root = logrus.New()

func init() {
	root.SetOutput(os.Stderr)
	root.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
}

// Root returns the process-wide logger.
func Root() *Logger { return root }

// SetLevel adjusts the root log level ("debug", "info", "warn", "error").
// Unknown levels are ignored.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	root.SetLevel(parsed)
}

// SetupFile redirects the root logger to the given path, creating parent
// directories as needed. Returns the file's closer for shutdown cleanup.
func SetupFile(path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	root.SetOutput(f)
	return f, nil
}

// Named returns a child entry tagged with a component field.
func Named(component string) *Entry {
	return root.WithField("component", component)
}
