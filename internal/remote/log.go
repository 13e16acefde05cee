package remote

import (
	"context"
	"log/slog"
)

// discardHandler is a no-op slog handler that discards all log records.
// Used when no logger is configured, so the hot path pays nothing.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
