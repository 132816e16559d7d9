// Package logger wires slog with context-carried attributes, so request and
// sync-cycle scoped fields ride along without threading a logger through
// every call.
package logger

import (
	"context"
	"io"
	"log/slog"
)

type contextKey string

const fieldsKey contextKey = "fields"

// New builds the root logger. Format is "json" or "text"; anything else
// falls back to text.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if format == "json" {
		base = slog.NewJSONHandler(w, opts)
	} else {
		base = slog.NewTextHandler(w, opts)
	}

	return slog.New(ContextHandler{Handler: base})
}

// ContextHandler decorates a base [slog.Handler], appending to every record
// the attributes stashed on the context by [Ctx].
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if fields, ok := ctx.Value(fieldsKey).([]slog.Attr); ok {
		record.AddAttrs(fields...)
	}

	return h.Handler.Handle(ctx, record)
}

// Ctx returns a context carrying the given attributes in addition to any
// already present.
func Ctx(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := ctx.Value(fieldsKey).([]slog.Attr)

	fields := make([]slog.Attr, 0, len(existing)+len(attrs))
	fields = append(fields, existing...)
	fields = append(fields, attrs...)

	return context.WithValue(ctx, fieldsKey, fields)
}
