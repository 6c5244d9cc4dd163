package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Level names accepted in configuration and on the command line.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var level = new(slog.LevelVar)

var root atomic.Pointer[slog.Logger]

func init() {
	root.Store(newLogger(os.Stderr))
}

func newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String("time", a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "warning":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the level of every logger handed out by this package,
// including ones created earlier.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// SetOutput redirects all subsequently created component loggers to w.
func SetOutput(w io.Writer) {
	root.Store(newLogger(w))
	slog.SetDefault(root.Load())
}

// Default returns the process-wide logger.
func Default() *slog.Logger {
	return root.Load()
}

// NewComponentLogger returns a logger tagged with a component attribute.
func NewComponentLogger(component string) *slog.Logger {
	return root.Load().With("component", component)
}
