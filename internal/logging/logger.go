// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/TobiSchelling/sentimcp/internal/config"
)

// New returns a logger writing to stderr, or appending to cfg.File when
// set. Stdout is never used: it carries the stdio protocol. The returned
// Closer releases the file.
func New(cfg config.Logging) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	noColor := !isatty.IsTerminal(os.Stderr.Fd())
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = SwallowErrors(f)
		closer = f
		noColor = true
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	})
	return slog.New(handler), closer, nil
}

// Init builds the logger with New and installs it as the slog default.
func Init(cfg config.Logging) (*slog.Logger, io.Closer, error) {
	logger, closer, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
// Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SwallowErrors wraps w so that write failures are dropped. A broken log
// sink must never interrupt request processing.
func SwallowErrors(w io.Writer) io.Writer {
	return swallowWriter{w: w}
}

type swallowWriter struct {
	w io.Writer
}

func (s swallowWriter) Write(p []byte) (int, error) {
	_, _ = s.w.Write(p)
	return len(p), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
