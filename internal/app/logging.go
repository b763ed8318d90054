package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/term"
)

// ParseLevel parses a level name. Accepted: debug, info, warn, warning, error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// LoggerConfig configures the application logger.
type LoggerConfig struct {
	// Level is the minimum level written anywhere.
	Level slog.Level

	// Output receives human-readable logs. Defaults to os.Stderr.
	Output io.Writer

	// File, when set, also receives JSON logs.
	File string
}

// NewLogger builds the application logger. The returned closer releases the
// log file, if any.
func NewLogger(cfg LoggerConfig) (*slog.Logger, io.Closer, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	pretty := tint.NewHandler(out, &tint.Options{
		Level:      cfg.Level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(out),
	})
	if cfg.File == "" {
		return slog.New(pretty), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, &ComponentError{Component: "logging", Action: "create log directory", Err: err}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, &ComponentError{Component: "logging", Action: "open log file", Err: err}
	}
	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.Level})
	return slog.New(slogmulti.Fanout(pretty, file)), f, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
