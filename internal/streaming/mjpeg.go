package streaming

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
)

// Boundary separates frames in the multipart stream.
const Boundary = "FRAME"

// ContentType is the response content type of an MJPEG stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

type flusher interface {
	Flush()
}

// MJPEGWriter writes JPEG frames as multipart parts.
type MJPEGWriter struct {
	w     io.Writer
	parts *multipart.Writer
}

// NewMJPEGWriter wraps w. If w can be flushed it is flushed after every frame.
func NewMJPEGWriter(w io.Writer) *MJPEGWriter {
	parts := multipart.NewWriter(w)
	// Only fails for invalid boundaries.
	_ = parts.SetBoundary(Boundary)
	return &MJPEGWriter{w: w, parts: parts}
}

// WriteFrame writes a single JPEG image.
func (m *MJPEGWriter) WriteFrame(jpeg []byte) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "image/jpeg")
	header.Set("Content-Length", strconv.Itoa(len(jpeg)))

	part, err := m.parts.CreatePart(header)
	if err != nil {
		return fmt.Errorf("write part header: %w", err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if f, ok := m.w.(flusher); ok {
		f.Flush()
	}
	return nil
}

// Serve copies frames written after it starts from buf to w until ctx ends,
// the buffer stalls or a write fails. A write failure means the viewer went away.
func Serve(ctx context.Context, w io.Writer, buf *FrameBuffer) error {
	mw := NewMJPEGWriter(w)
	clientConnected()
	defer clientDisconnected()

	// The slot may hold the last frame of an encoder that has since stopped.
	seq := buf.Seq()
	// Send the response headers before the first frame arrives.
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	for {
		frame, err := buf.Wait(ctx, seq)
		if err != nil {
			return err
		}
		seq = frame.Seq

		if err := mw.WriteFrame(frame.Data); err != nil {
			return err
		}
		frameSent(len(frame.Data))
	}
}
