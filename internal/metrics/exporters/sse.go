package exporters

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/metrics"
)

// DefaultSSEInterval is how often encoder metrics are sampled.
const DefaultSSEInterval = time.Second

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter samples encoder metrics and publishes those that changed as
// EncoderMetricsEvent, so idle encoders do not flood /api/events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	last   map[string]metrics.EncoderMetrics
}

// NewSSEExporter creates an exporter publishing to eventBus.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: DefaultSSEInterval,
		last:     make(map[string]metrics.EncoderMetrics),
	}
}

// Start samples metrics until ctx is done or Stop is called.
func (s *SSEExporter) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop ends sampling and waits for the loop to exit. It may be called more
// than once, and before Start.
func (s *SSEExporter) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishChanged()
		}
	}
}

func (s *SSEExporter) publishChanged() {
	current := metrics.GetAllEncoderMetrics()
	for _, encoder := range slices.Sorted(maps.Keys(current)) {
		m := *current[encoder]
		if prev, ok := s.last[encoder]; ok && prev == m {
			continue
		}
		s.last[encoder] = m
		s.eventBus.Publish(events.EncoderMetricsEvent{
			EventType:       "encoder_metrics",
			Encoder:         encoder,
			FPS:             strconv.FormatFloat(m.FPS, 'f', 2, 64),
			DroppedFrames:   strconv.FormatFloat(m.DroppedFrames, 'f', 0, 64),
			DuplicateFrames: strconv.FormatFloat(m.DuplicateFrames, 'f', 0, 64),
			Speed:           strconv.FormatFloat(m.Speed, 'f', 2, 64),
		})
	}
	// Encoders that stopped report fresh values when they come back.
	for encoder := range s.last {
		if _, ok := current[encoder]; !ok {
			delete(s.last, encoder)
		}
	}
}

// GetEventTypesForEndpoint returns the SSE event names this package publishes
// on an endpoint, for huma's sse.Register.
func GetEventTypesForEndpoint(endpoint string) map[string]any {
	if endpoint != "events" {
		return map[string]any{}
	}
	return map[string]any{
		"encoder-metrics": events.EncoderMetricsEvent{},
	}
}
