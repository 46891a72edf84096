package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/logging"
)

// LogTextInput filters the plain text log.
type LogTextInput struct {
	Module string `query:"module" doc:"Only entries from this module"`
}

// LogTextOutput is the plain text log.
type LogTextOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// registerLogRoutes registers the log endpoints.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "logs-text",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "The buffered log entries as plain text, oldest first.",
		Tags:        []string{"logs"},
	}, func(_ context.Context, input *LogTextInput) (*LogTextOutput, error) {
		var sb strings.Builder
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				if input.Module != "" && entry.Module != input.Module {
					continue
				}
				sb.WriteString(logging.FormatLogLine(entry))
				sb.WriteByte('\n')
			}
		}
		return &LogTextOutput{ContentType: "text/plain; charset=utf-8", Body: []byte(sb.String())}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing logged in between is lost,
		// then skip live entries the replay already covered.
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var replayed uint64
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				if err := send.Data(LogEvent(entry)); err != nil {
					return
				}
				replayed = entry.Seq
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if entry, ok := ev.(events.LogEntryEvent); ok && entry.Seq != 0 && entry.Seq <= replayed {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}

// LogEvent converts a log line to its SSE form.
func LogEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
