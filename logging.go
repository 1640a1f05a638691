package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// splitHandler sends records at error level and above to err, the rest to out
type splitHandler struct {
	out slog.Handler
	err slog.Handler
}

func (h splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelError {
		return h.err.Enabled(ctx, level)
	}
	return h.out.Enabled(ctx, level)
}

func (h splitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.err.Handle(ctx, r)
	}
	return h.out.Handle(ctx, r)
}

func (h splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return splitHandler{out: h.out.WithAttrs(attrs), err: h.err.WithAttrs(attrs)}
}

func (h splitHandler) WithGroup(name string) slog.Handler {
	return splitHandler{out: h.out.WithGroup(name), err: h.err.WithGroup(name)}
}

func newLogger(stdout, stderr io.Writer, verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	opts := log.Options{ReportTimestamp: true, Level: level}

	return slog.New(splitHandler{
		out: log.NewWithOptions(stdout, opts),
		err: log.NewWithOptions(stderr, opts),
	})
}
