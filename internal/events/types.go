package events

import "time"

// Stamp formats a node clock timestamp (ns since the epoch) for event payloads.
func Stamp(ts int64) string {
	return time.Unix(0, ts).UTC().Format(time.RFC3339)
}

// Event type constants for kelindar/event.
const (
	TypeViewerCountChanged uint32 = iota + 1
	TypeRecordingStateChanged
	TypeScheduleChanged
	TypeSegmentOpened
	TypeSegmentClosed
	TypeSegmentFinalized
	TypeClockChanged
	TypeEncoderStateChanged
	TypeEncoderMetrics
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ViewerCountChangedEvent is published whenever a preview viewer connects or leaves.
type ViewerCountChangedEvent struct {
	Viewers   int    `json:"viewers" example:"2" doc:"Number of connected preview viewers"`
	Timestamp string `json:"timestamp" example:"2024-05-17T09:00:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ViewerCountChangedEvent.
func (e ViewerCountChangedEvent) Type() uint32 { return TypeViewerCountChanged }

// RecordingStateChangedEvent is published when the recording encoder is switched on or off.
// Active is true from the start of the pre-roll until the last scheduled range ends.
type RecordingStateChangedEvent struct {
	Active    bool   `json:"active" example:"true" doc:"Whether the recording encoder is running"`
	Name      string `json:"name,omitempty" example:"lecture" doc:"Recording name of the active schedule"`
	Timestamp string `json:"timestamp" example:"2024-05-17T08:57:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStateChangedEvent.
func (e RecordingStateChangedEvent) Type() uint32 { return TypeRecordingStateChanged }

// ScheduleChangedEvent is published after a schedule is set or cleared.
type ScheduleChangedEvent struct {
	Name      string `json:"name,omitempty" example:"lecture" doc:"Recording name"`
	Ranges    string `json:"ranges,omitempty" example:"08:00-12:00, 13:00-17:30" doc:"Scheduled time ranges"`
	Active    bool   `json:"active" example:"true" doc:"False when the schedule was cleared"`
	Timestamp string `json:"timestamp" example:"2024-05-17T07:45:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ScheduleChangedEvent.
func (e ScheduleChangedEvent) Type() uint32 { return TypeScheduleChanged }

// SegmentOpenedEvent is published when the recorder starts writing a new segment.
type SegmentOpenedEvent struct {
	SegmentID string `json:"segment_id" example:"lecture-2024-05-17T09:00:00" doc:"Segment identifier"`
	RawPath   string `json:"raw_path" example:"tmp/lecture-2024-05-17T09:00:00.h264" doc:"Raw elementary stream path"`
	Timestamp string `json:"timestamp" example:"2024-05-17T09:00:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SegmentOpenedEvent.
func (e SegmentOpenedEvent) Type() uint32 { return TypeSegmentOpened }

// SegmentClosedEvent is published when a segment is closed and handed to the finalizer.
type SegmentClosedEvent struct {
	SegmentID string `json:"segment_id" example:"lecture-2024-05-17T09:00:00" doc:"Segment identifier"`
	Frames    int64  `json:"frames" example:"89950" doc:"Frames written to the segment"`
	Bytes     int64  `json:"bytes" example:"734003200" doc:"Bytes written to the raw file"`
	Timestamp string `json:"timestamp" example:"2024-05-17T10:00:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SegmentClosedEvent.
func (e SegmentClosedEvent) Type() uint32 { return TypeSegmentClosed }

// SegmentFinalizedEvent is published when the muxing tool finishes with a segment.
type SegmentFinalizedEvent struct {
	SegmentID string `json:"segment_id" example:"lecture-2024-05-17T09:00:00" doc:"Segment identifier"`
	Output    string `json:"output" example:"recordings/lecture-2024-05-17T09:00:00.mkv" doc:"Finalized container path"`
	ExitCode  int    `json:"exit_code" example:"0" doc:"Exit code of the muxing tool"`
	Success   bool   `json:"success" example:"true" doc:"Whether the container was written"`
	Timestamp string `json:"timestamp" example:"2024-05-17T10:00:04Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SegmentFinalizedEvent.
func (e SegmentFinalizedEvent) Type() uint32 { return TypeSegmentFinalized }

// ClockChangedEvent is published after the node clock has been recalibrated.
type ClockChangedEvent struct {
	Now       string  `json:"now" example:"2024-05-17 08:12:00" doc:"Node time after the change"`
	Shift     float64 `json:"shift_seconds" example:"-3.25" doc:"How far the clock moved, in seconds"`
	Timestamp string  `json:"timestamp" example:"2024-05-17T08:12:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ClockChangedEvent.
func (e ClockChangedEvent) Type() uint32 { return TypeClockChanged }

// EncoderStateChangedEvent mirrors state transitions of the capture and encoder processes.
type EncoderStateChangedEvent struct {
	Encoder   string `json:"encoder" example:"recording" doc:"Process id: capture, preview or recording"`
	State     string `json:"state" example:"running" doc:"New process state"`
	Error     string `json:"error,omitempty" example:"process exited with code 1" doc:"Last error, if any"`
	Timestamp string `json:"timestamp" example:"2024-05-17T08:57:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EncoderStateChangedEvent.
func (e EncoderStateChangedEvent) Type() uint32 { return TypeEncoderStateChanged }

// EncoderMetricsEvent carries the latest ffmpeg progress figures of an encoder.
type EncoderMetricsEvent struct {
	EventType       string `json:"type"`
	Encoder         string `json:"encoder"`
	FPS             string `json:"fps"`
	DroppedFrames   string `json:"dropped_frames"`
	DuplicateFrames string `json:"duplicate_frames"`
	Speed           string `json:"speed"`
}

// Type returns the event type identifier for EncoderMetricsEvent.
func (e EncoderMetricsEvent) Type() uint32 { return TypeEncoderMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
