package logging

import (
	"context"
	"io"
	"log/slog"
)

// formatHandler writes text or JSON depending on useJSON at the time of each
// record, so a config reload can switch the format of existing loggers.
type formatHandler struct {
	text    slog.Handler
	json    slog.Handler
	useJSON func() bool
}

func newFormatHandler(w io.Writer, level slog.Leveler, useJSON func() bool) *formatHandler {
	opts := &slog.HandlerOptions{Level: level}
	return &formatHandler{
		text:    slog.NewTextHandler(w, opts),
		json:    slog.NewJSONHandler(w, opts),
		useJSON: useJSON,
	}
}

func (h *formatHandler) current() slog.Handler {
	if h.useJSON() {
		return h.json
	}
	return h.text
}

func (h *formatHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.text.Enabled(ctx, level)
}

func (h *formatHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *formatHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &formatHandler{text: h.text.WithAttrs(attrs), json: h.json.WithAttrs(attrs), useJSON: h.useJSON}
}

func (h *formatHandler) WithGroup(name string) slog.Handler {
	return &formatHandler{text: h.text.WithGroup(name), json: h.json.WithGroup(name), useJSON: h.useJSON}
}
