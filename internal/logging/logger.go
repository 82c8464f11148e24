package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"lintfix/internal/config"
)

// Options describes one log destination.
type Options struct {
	Level  string
	Format string // console or json
	// Output is "stderr" (the default), "stdout", or a file path opened for append.
	Output string
	// Color enables ANSI level labels on the console format.
	Color bool
}

// New constructs a logger for a single destination.
func New(opts Options) (*slog.Logger, error) {
	handler, err := newHandler(opts)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

func newHandler(opts Options) (slog.Handler, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	w, err := openOutput(opts.Output)
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	// Debug output includes the call site.
	addSource := level.Level() <= slog.LevelDebug

	if format == "json" {
		return newJSONHandler(w, level, addSource), nil
	}
	return newConsoleHandler(w, level, addSource, opts.Color), nil
}

// NewFromConfig builds the process logger. Console output goes to stderr;
// when logging.file is set, JSON lines are also appended to that file.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Color: IsTerminal(os.Stderr)})
	}

	console, err := newHandler(Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Color:  IsTerminal(os.Stderr),
	})
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(cfg.Logging.File)
	if path == "" {
		return slog.New(console), nil
	}
	file, err := newHandler(Options{Level: cfg.Logging.Level, Format: "json", Output: path})
	if err != nil {
		return nil, err
	}
	return slog.New(newFanoutHandler(console, file)), nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// parseLevel accepts slog level names in any case plus "warning".
// Anything else falls back to info.
func parseLevel(value string) slog.Level {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func openOutput(target string) (io.Writer, error) {
	switch target = strings.TrimSpace(target); target {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", target, err)
	}
	return file, nil
}
