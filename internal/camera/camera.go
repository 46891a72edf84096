// Package camera drives the capture pipeline and its two encoders.
//
// The live preview encoder produces MJPEG frames for viewers; the recording
// encoder produces H.264 access units for the segmented recorder. Callers are
// expected to serialise calls and to start capture before any encoder.
package camera

import (
	"context"
	"errors"
)

// Encoder identifies one of the camera's encoders.
type Encoder string

// Encoders.
const (
	Preview   Encoder = "preview"
	Recording Encoder = "recording"
)

// Capture is the process id of the capture pipeline.
const Capture = "capture"

// ErrCaptureStopped is returned when an encoder is started without capture.
var ErrCaptureStopped = errors.New("capture is not running")

// Camera is the hardware the activation controller switches on and off.
type Camera interface {
	Configure(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	StartEncoder(ctx context.Context, enc Encoder) error
	StopEncoder(ctx context.Context, enc Encoder) error
}

// Valid reports whether enc is a known encoder.
func (e Encoder) Valid() bool {
	return e == Preview || e == Recording
}

func (e Encoder) String() string {
	return string(e)
}
