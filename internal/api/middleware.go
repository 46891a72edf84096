package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camrecorder/internal/logging"
)

// quietPaths are polled by the control page and logged at debug level.
var quietPaths = map[string]bool{
	"/status":     true,
	"/api/status": true,
	"/api/health": true,
}

// HTTPLoggingMiddleware logs each request once it completes. Preview and SSE
// requests complete when the client leaves, so their duration is the session length.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	path := ctx.URL().Path
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query := ctx.URL().RawQuery; query != "" {
		attrs = append(attrs, slog.String("query", query))
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	message := "HTTP request completed"
	if path == "/stream.mjpg" || strings.HasSuffix(path, "/stream") || path == "/api/events" {
		message = "HTTP stream closed"
	}

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case method == "OPTIONS", quietPaths[path]:
		level = slog.LevelDebug
	}
	logger.LogAttrs(ctx.Context(), level, message, attrs...)
}
