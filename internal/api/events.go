package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/metrics/exporters"
)

// registerSSERoutes registers the event stream.
func (s *Server) registerSSERoutes() {
	eventTypes := map[string]any{
		"viewer-count-changed":    events.ViewerCountChangedEvent{},
		"recording-state-changed": events.RecordingStateChangedEvent{},
		"schedule-changed":        events.ScheduleChangedEvent{},
		"segment-opened":          events.SegmentOpenedEvent{},
		"segment-closed":          events.SegmentClosedEvent{},
		"segment-finalized":       events.SegmentFinalizedEvent{},
		"clock-changed":           events.ClockChangedEvent{},
		"encoder-state-changed":   events.EncoderStateChangedEvent{},
	}
	maps.Copy(eventTypes, exporters.GetEventTypesForEndpoint("events"))

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Viewer, recording, schedule, segment, clock and encoder events. The current status is sent first.",
		Tags:        []string{"events"},
	}, eventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ViewerCountChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RecordingStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ScheduleChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SegmentOpenedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SegmentClosedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SegmentFinalizedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ClockChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderMetricsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Late subscribers start from the current state rather than waiting
		// for the next change.
		st := s.options.Controller.Status()
		initial := []any{
			events.ViewerCountChangedEvent{Viewers: st.Viewers, Timestamp: events.Stamp(st.Now)},
			events.RecordingStateChangedEvent{Active: st.Recording, Name: st.Schedule.Name, Timestamp: events.Stamp(st.Now)},
			events.ScheduleChangedEvent{
				Name:      st.Schedule.Name,
				Ranges:    st.Schedule.RangesString(),
				Active:    !st.Schedule.Idle(),
				Timestamp: events.Stamp(st.Now),
			},
		}
		for _, ev := range initial {
			if err := send.Data(ev); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
