package recorder

import (
	"sync"

	"github.com/smazurov/camrecorder/internal/clock"
	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/metrics"
)

// SegmentSource decides which segment a frame at ts belongs to.
// *schedule.Schedule implements it.
type SegmentSource interface {
	ShouldRecord(ts int64) (string, bool)
}

// Publisher publishes events. *events.Bus implements it.
type Publisher interface {
	Publish(ev events.Event)
}

// Finalizer takes ownership of a closed segment.
type Finalizer interface {
	Finalize(files SegmentFiles)
}

// Options configures a Recorder.
type Options struct {
	Schedule  SegmentSource // required
	Clock     clock.Source  // required
	WorkDir   string        // raw and timestamp files, default "tmp"
	OutputDir string        // finalized containers, default "recordings"
	Finalizer Finalizer     // nil leaves closed segments in WorkDir
	Events    Publisher     // optional
	Logger    logging.Logger
}

// Recorder routes the recording encoder output into schedule segments.
// A new segment only starts on a keyframe; delta frames always follow the
// segment that is currently open.
type Recorder struct {
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	current *Segment
}

// New creates a recorder. No files are created until the first scheduled keyframe.
func New(opts Options) *Recorder {
	if opts.WorkDir == "" {
		opts.WorkDir = "tmp"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "recordings"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("recorder")
	}
	return &Recorder{opts: opts, logger: logger}
}

// Open implements Output. Segments are opened lazily.
func (r *Recorder) Open() error {
	return nil
}

// WriteFrame writes frame to the segment it belongs to, rotating segments on keyframes.
func (r *Recorder) WriteFrame(frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seg, err := r.output(frame)
	if err != nil || seg == nil {
		return err
	}

	if err := seg.WriteFrame(frame); err != nil {
		metrics.FrameDropped(metrics.DropWriteError)
		return err
	}
	metrics.FrameWritten(len(frame.Data))
	return nil
}

// Close finalizes the open segment, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finish()
	return nil
}

// Current returns the id of the open segment.
func (r *Recorder) Current() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", false
	}
	return r.current.ID(), true
}

// output selects the segment for frame. Must be called with mu held.
func (r *Recorder) output(frame Frame) (*Segment, error) {
	if frame.Delta {
		if r.current == nil {
			metrics.FrameDropped(metrics.DropNoSegment)
		}
		return r.current, nil
	}

	id, ok := r.opts.Schedule.ShouldRecord(r.opts.Clock.Now())
	if !ok {
		r.finish()
		metrics.FrameDropped(metrics.DropUnscheduled)
		return nil, nil
	}

	if r.current != nil && r.current.ID() != id {
		r.finish()
	}
	if r.current == nil {
		if err := r.open(id); err != nil {
			metrics.FrameDropped(metrics.DropWriteError)
			return nil, err
		}
	}
	return r.current, nil
}

func (r *Recorder) open(id string) error {
	files := NewSegmentFiles(r.opts.WorkDir, r.opts.OutputDir, id)
	seg := NewSegment(files, r.logger)
	if err := seg.Open(); err != nil {
		r.logger.Error("Failed to open segment", "segment", id, "error", err)
		return err
	}

	r.current = seg
	metrics.SegmentOpened(id)
	r.logger.Info("Segment opened", "segment", id, "raw", files.Raw)
	r.publish(events.SegmentOpenedEvent{
		SegmentID: id,
		RawPath:   files.Raw,
		Timestamp: events.Stamp(r.opts.Clock.Now()),
	})
	return nil
}

// finish closes the open segment and hands it to the finalizer.
func (r *Recorder) finish() {
	seg := r.current
	if seg == nil {
		return
	}
	r.current = nil

	if err := seg.Close(); err != nil {
		r.logger.Error("Failed to close segment", "segment", seg.ID(), "error", err)
	}
	metrics.SegmentClosed()
	r.logger.Info("Segment closed", "segment", seg.ID(), "frames", seg.Frames(), "bytes", seg.Bytes())
	r.publish(events.SegmentClosedEvent{
		SegmentID: seg.ID(),
		Frames:    seg.Frames(),
		Bytes:     seg.Bytes(),
		Timestamp: events.Stamp(r.opts.Clock.Now()),
	})

	if r.opts.Finalizer != nil {
		r.opts.Finalizer.Finalize(seg.Files())
	}
}

func (r *Recorder) publish(ev events.Event) {
	if r.opts.Events != nil {
		r.opts.Events.Publish(ev)
	}
}
