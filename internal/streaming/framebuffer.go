// Package streaming serves the live preview: a single-slot frame buffer that the
// preview encoder overwrites and any number of MJPEG viewers read from.
package streaming

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smazurov/camrecorder/internal/metrics"
)

// DefaultFrameTimeout is how long a viewer waits for the next frame.
const DefaultFrameTimeout = 10 * time.Second

// ErrFrameTimeout is returned by Wait when no new frame arrived in time.
var ErrFrameTimeout = errors.New("timed out waiting for frame")

// Frame is one encoded preview image.
type Frame struct {
	Data      []byte
	Seq       uint64
	Timestamp int64
}

// FrameBuffer holds the most recent frame only. Writers never block; slow
// readers skip frames.
type FrameBuffer struct {
	mu      sync.Mutex
	frame   Frame
	ready   chan struct{}
	timeout time.Duration
}

// NewFrameBuffer creates an empty buffer. A timeout <= 0 uses DefaultFrameTimeout.
func NewFrameBuffer(timeout time.Duration) *FrameBuffer {
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	return &FrameBuffer{
		ready:   make(chan struct{}),
		timeout: timeout,
	}
}

// Write replaces the current frame and wakes all waiting readers. The buffer
// takes ownership of data.
func (b *FrameBuffer) Write(data []byte, ts int64) {
	b.mu.Lock()
	b.frame = Frame{Data: data, Seq: b.frame.Seq + 1, Timestamp: ts}
	close(b.ready)
	b.ready = make(chan struct{})
	b.mu.Unlock()

	metrics.PreviewFrame()
}

// Latest returns the current frame, if any was written.
func (b *FrameBuffer) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame, b.frame.Seq > 0
}

// Seq returns the sequence number of the current frame, 0 before the first write.
func (b *FrameBuffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame.Seq
}

// Wait returns the first frame newer than lastSeq. Readers that only want
// frames written from now on pass Seq().
func (b *FrameBuffer) Wait(ctx context.Context, lastSeq uint64) (Frame, error) {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		frame, ready := b.frame, b.ready
		b.mu.Unlock()

		if frame.Seq > lastSeq {
			return frame, nil
		}

		select {
		case <-ready:
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-timer.C:
			return Frame{}, ErrFrameTimeout
		}
	}
}
