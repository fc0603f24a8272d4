package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// AppendCtx returns a context carrying the given attrs in addition to any
// attrs already stored by previous calls.
func AppendCtx(parent context.Context, attrs ...slog.Attr) context.Context {
	if existing, ok := parent.Value(ctxKey{}).([]slog.Attr); ok {
		attrs = append(existing[:len(existing):len(existing)], attrs...)
	}

	return context.WithValue(parent, ctxKey{}, attrs)
}

// ContextHandler wraps a slog.Handler and adds attrs stored in the record's
// context by AppendCtx.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}
