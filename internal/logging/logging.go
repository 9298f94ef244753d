// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// levelRouter sends records below ERROR to one handler and ERROR and above
// to another.
type levelRouter struct {
	level slog.Leveler
	out   slog.Handler
	err   slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.level.Level()
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.err.Handle(ctx, r)
	}
	return lr.out.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{level: lr.level, out: lr.out.WithAttrs(attrs), err: lr.err.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{level: lr.level, out: lr.out.WithGroup(name), err: lr.err.WithGroup(name)}
}

// New builds a text logger that writes below-ERROR records to stdout and
// ERROR records to stderr. If logFile is set every record is also appended
// there. The logger becomes the slog default. The returned cleanup closes
// the log file; callers must defer it.
func New(level, logFile string) (*slog.Logger, func(), error) {
	return newLogger(level, logFile, os.Stdout, os.Stderr)
}

func newLogger(level, logFile string, stdout, stderr io.Writer) (*slog.Logger, func(), error) {
	cleanup := func() {}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { _ = f.Close() }
		stdout = io.MultiWriter(stdout, f)
		stderr = io.MultiWriter(stderr, f)
	}

	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	logger := slog.New(&levelRouter{
		level: lvl,
		out:   slog.NewTextHandler(stdout, opts),
		err:   slog.NewTextHandler(stderr, opts),
	})
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// ParseLevel maps debug, warn and error to their slog levels. Anything else
// is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
