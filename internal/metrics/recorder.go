package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	segmentsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "recorder",
		Name:      "segments_opened_total",
		Help:      "Recording segments opened",
	})

	segmentsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "recorder",
		Name:      "segments_finalized_total",
		Help:      "Segments muxed into a container",
	})

	finalizeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "recorder",
		Name:      "finalize_failures_total",
		Help:      "Segments the muxing tool failed to finalize",
	})

	finalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "recorder",
		Name:      "finalize_duration_seconds",
		Help:      "Time spent muxing a segment",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	framesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "recorder",
		Name:      "frames_written_total",
		Help:      "Encoded frames written to segments",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "recorder",
		Name:      "frames_dropped_total",
		Help:      "Encoded frames not written to any segment",
	}, []string{"reason"})

	bytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "recorder",
		Name:      "bytes_written_total",
		Help:      "Bytes written to raw segment files",
	})

	activeSegment atomic.Value
)

// Reasons a frame is not recorded.
const (
	DropNoSegment   = "no_segment"   // delta frame with no open segment
	DropUnscheduled = "unscheduled"  // keyframe outside every scheduled range
	DropWriteError  = "write_error"  // sink write failed
)

// SegmentOpened records that id is now being written.
func SegmentOpened(id string) {
	segmentsOpened.Inc()
	activeSegment.Store(id)
}

// SegmentClosed clears the active segment.
func SegmentClosed() {
	activeSegment.Store("")
}

// ActiveSegment returns the segment currently written, or "".
func ActiveSegment() string {
	id, _ := activeSegment.Load().(string)
	return id
}

// SegmentFinalized records the outcome of a finalize job.
func SegmentFinalized(success bool, took time.Duration) {
	finalizeDuration.Observe(took.Seconds())
	if success {
		segmentsFinalized.Inc()
		return
	}
	finalizeFailures.Inc()
}

// FrameWritten counts a frame of n bytes written to a segment.
func FrameWritten(n int) {
	framesWritten.Inc()
	bytesWritten.Add(float64(n))
}

// FrameDropped counts a frame discarded for reason.
func FrameDropped(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
}
