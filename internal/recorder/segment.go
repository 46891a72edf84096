package recorder

import (
	"time"

	"github.com/smazurov/camrecorder/internal/logging"
)

// Segment writes the frames of one recording segment. Timestamps are shifted
// so the first frame of the segment is at zero.
type Segment struct {
	files  SegmentFiles
	out    *FileOutput
	logger logging.Logger

	first  bool
	offset time.Duration
}

// NewSegment creates a segment writer for files. Nothing is created until Open.
func NewSegment(files SegmentFiles, logger logging.Logger) *Segment {
	return &Segment{
		files:  files,
		out:    NewFileOutput(files.Raw, files.PTS),
		logger: logger,
		first:  true,
	}
}

// ID returns the segment id.
func (s *Segment) ID() string {
	return s.files.ID
}

// Files returns the segment file layout.
func (s *Segment) Files() SegmentFiles {
	return s.files
}

// Open creates the raw and timestamp files.
func (s *Segment) Open() error {
	return s.out.Open()
}

// WriteFrame writes frame with its timestamp relative to the first frame.
func (s *Segment) WriteFrame(frame Frame) error {
	if s.first {
		s.first = false
		if frame.HasTimestamp {
			s.offset = frame.Timestamp
			s.logger.Info("Segment timestamp offset", "segment", s.files.ID, "offset", s.offset)
		}
	}
	if frame.HasTimestamp {
		frame.Timestamp -= s.offset
	}
	return s.out.WriteFrame(frame)
}

// Close flushes and closes the segment files.
func (s *Segment) Close() error {
	return s.out.Close()
}

// Frames returns the number of frames written.
func (s *Segment) Frames() int64 {
	return s.out.Frames()
}

// Bytes returns the number of bytes written to the raw file.
func (s *Segment) Bytes() int64 {
	return s.out.Bytes()
}
