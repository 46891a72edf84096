package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/metrics/collectors"
	"github.com/smazurov/camrecorder/internal/process"
	"github.com/smazurov/camrecorder/internal/recorder"
)

// Clock provides frame timestamps and the overlay text.
type Clock interface {
	Now() int64
	String() string
}

// PreviewSink receives preview JPEG frames. It takes ownership of data.
type PreviewSink interface {
	Write(data []byte, ts int64)
}

// Publisher receives encoder state events.
type Publisher interface {
	Publish(ev events.Event)
}

// Options configures a ProcessCamera.
type Options struct {
	Source   string // camera device path or /dev/v4l id
	Loopback string // device capture writes to and encoders read from
	Width    int
	Height   int
	FPS      int

	CaptureCommand   string
	PreviewCommand   string
	RecordingCommand string

	OverlayPath     string
	OverlayInterval time.Duration // default 1s
	ProgressDir     string        // sockets for ffmpeg progress; empty disables encoder metrics

	Clock     Clock
	Preview   PreviewSink
	Recording recorder.Output
	Events    Publisher
	Logger    logging.Logger
}

// ProcessCamera runs capture and encoders as subprocesses.
type ProcessCamera struct {
	opts   Options
	logger logging.Logger
	pool   *process.Pool

	mu         sync.Mutex
	overlay    context.CancelFunc
	overlayEnd chan struct{}
	collectors map[Encoder]*collectors.FFmpegCollector
}

// New creates a camera. Nothing is started until Start.
func New(opts Options) *ProcessCamera {
	if opts.CaptureCommand == "" {
		opts.CaptureCommand = DefaultCaptureCommand
	}
	if opts.PreviewCommand == "" {
		opts.PreviewCommand = DefaultPreviewCommand
	}
	if opts.RecordingCommand == "" {
		opts.RecordingCommand = DefaultRecordingCommand
	}
	if opts.OverlayInterval <= 0 {
		opts.OverlayInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("camera")
	}

	c := &ProcessCamera{
		opts:       opts,
		logger:     logger,
		collectors: make(map[Encoder]*collectors.FFmpegCollector),
	}
	c.pool = process.NewPool(process.PoolOptions{
		CommandProvider:  c.command,
		OnStateChange:    c.onStateChange,
		ConfigureProcess: c.configureProcess,
		Logger:           logger,
	})
	return c
}

// Configure resolves the device and prepares the overlay file.
func (c *ProcessCamera) Configure(_ context.Context) error {
	source, err := ResolveDevice(c.opts.Source)
	if err != nil {
		return fmt.Errorf("configure camera: %w", err)
	}
	c.opts.Source = source

	if c.opts.Width <= 0 || c.opts.Height <= 0 || c.opts.FPS <= 0 {
		return fmt.Errorf("configure camera: invalid mode %dx%d@%d", c.opts.Width, c.opts.Height, c.opts.FPS)
	}
	if c.opts.OverlayPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.opts.OverlayPath), 0o755); err != nil {
			return fmt.Errorf("configure camera: %w", err)
		}
		if err := writeOverlay(c.opts.OverlayPath, c.opts.Clock.String()); err != nil {
			return fmt.Errorf("configure camera: %w", err)
		}
	}
	if c.opts.ProgressDir != "" {
		if err := os.MkdirAll(c.opts.ProgressDir, 0o755); err != nil {
			return fmt.Errorf("configure camera: %w", err)
		}
	}

	c.logger.Info("Camera configured", "source", source, "width", c.opts.Width, "height", c.opts.Height, "fps", c.opts.FPS)
	return nil
}

// Start starts the capture pipeline and the overlay updates.
func (c *ProcessCamera) Start(_ context.Context) error {
	if err := c.pool.Start(Capture); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.OverlayPath != "" && c.overlay == nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.overlay = cancel
		c.overlayEnd = make(chan struct{})
		go c.runOverlay(ctx, c.opts.OverlayInterval, c.overlayEnd)
	}
	return nil
}

// Stop stops the capture pipeline.
func (c *ProcessCamera) Stop(_ context.Context) error {
	c.mu.Lock()
	cancel, done := c.overlay, c.overlayEnd
	c.overlay, c.overlayEnd = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return c.pool.Stop(Capture)
}

// StartEncoder starts enc. Capture must be running.
func (c *ProcessCamera) StartEncoder(ctx context.Context, enc Encoder) error {
	if !enc.Valid() {
		return fmt.Errorf("unknown encoder %q", enc)
	}
	if !c.pool.GetStatus(Capture).State.Active() {
		return fmt.Errorf("start %s encoder: %w", enc, ErrCaptureStopped)
	}

	if c.opts.ProgressDir != "" {
		collector := collectors.NewFFmpegCollector(c.progressSocket(enc), string(enc))
		// The encoder outlives the request that started it.
		if err := collector.Start(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("Failed to start encoder metrics", "encoder", enc, "error", err)
		} else {
			c.mu.Lock()
			c.collectors[enc] = collector
			c.mu.Unlock()
		}
	}

	if err := c.pool.Start(string(enc)); err != nil {
		c.stopCollector(enc)
		return fmt.Errorf("start %s encoder: %w", enc, err)
	}
	return nil
}

// StopEncoder stops enc. The last access unit is flushed before it returns.
func (c *ProcessCamera) StopEncoder(_ context.Context, enc Encoder) error {
	if !enc.Valid() {
		return fmt.Errorf("unknown encoder %q", enc)
	}
	err := c.pool.Stop(string(enc))
	c.stopCollector(enc)
	return err
}

// Running reports whether the capture pipeline or an encoder process runs.
func (c *ProcessCamera) Running(id string) bool {
	return c.pool.IsRunning(id)
}

// Close stops every process.
func (c *ProcessCamera) Close() {
	_ = c.Stop(context.Background())
	c.pool.StopAll()
	for _, enc := range []Encoder{Preview, Recording} {
		c.stopCollector(enc)
	}
}

func (c *ProcessCamera) stopCollector(enc Encoder) {
	c.mu.Lock()
	collector := c.collectors[enc]
	delete(c.collectors, enc)
	c.mu.Unlock()

	if collector != nil {
		_ = collector.Stop()
	}
}

func (c *ProcessCamera) progressSocket(enc Encoder) string {
	return filepath.Join(c.opts.ProgressDir, string(enc)+".sock")
}

func (c *ProcessCamera) command(id string) (string, error) {
	values := c.opts.templateValues()

	var template string
	switch id {
	case Capture:
		template = c.opts.CaptureCommand
	case string(Preview):
		template = c.opts.PreviewCommand
	case string(Recording):
		template = c.opts.RecordingCommand
	default:
		return "", fmt.Errorf("unknown camera process %q", id)
	}
	if id != Capture {
		if c.opts.ProgressDir == "" {
			template = strings.ReplaceAll(template, progressFlag, "")
		} else {
			values["progress"] = c.progressSocket(Encoder(id))
		}
	}
	return process.Expand(template, values), nil
}

// discard ignores encoder output; the process drains it.
func discard(io.Reader) {}

func (c *ProcessCamera) configureProcess(id string, proc *process.Process) {
	proc.SetLogParser(c.logger, ParseLogLevel)

	switch Encoder(id) {
	case Preview:
		if c.opts.Preview == nil {
			proc.SetStdoutSink(discard)
			return
		}
		proc.SetStdoutSink(func(r io.Reader) {
			err := SplitJPEG(r, func(jpeg []byte) {
				c.opts.Preview.Write(jpeg, c.opts.Clock.Now())
			})
			if err != nil {
				c.logger.Warn("Preview stream ended", "error", err)
			}
		})
	case Recording:
		if c.opts.Recording == nil {
			proc.SetStdoutSink(discard)
			return
		}
		proc.SetStdoutSink(c.recordingSink)
	}
}

// recordingSink feeds access units to the recording output, timestamped from
// the start of the encoder so that clock changes do not disturb playback. The
// output is closed when the encoder exits, which finalizes the open segment.
func (c *ProcessCamera) recordingSink(r io.Reader) {
	out := c.opts.Recording
	if err := out.Open(); err != nil {
		c.logger.Error("Failed to open recording output", "error", err)
		return
	}
	defer func() {
		if err := out.Close(); err != nil {
			c.logger.Error("Failed to close recording output", "error", err)
		}
	}()

	start := time.Now()
	var failures int

	err := SplitH264(r, func(au AccessUnit) {
		frame := recorder.Frame{
			Data:         au.Data,
			Delta:        !au.Keyframe,
			Timestamp:    time.Since(start),
			HasTimestamp: true,
		}
		if err := out.WriteFrame(frame); err != nil {
			if failures == 0 {
				c.logger.Error("Failed to record frame", "error", err)
			}
			failures++
			return
		}
		if failures > 0 {
			c.logger.Info("Recording resumed", "failed_frames", failures)
			failures = 0
		}
	})
	if err != nil {
		c.logger.Warn("Recording stream ended", "error", err)
	}
}

func (c *ProcessCamera) onStateChange(id string, oldState, newState process.State, err error) {
	c.logger.Debug("Camera process state changed", "process", id, "from", oldState, "to", newState)
	if newState == process.StateError {
		c.logger.Error("Camera process failed", "process", id, "error", err)
	}
	if c.opts.Events == nil {
		return
	}

	ev := events.EncoderStateChangedEvent{
		Encoder:   id,
		State:     string(newState),
		Timestamp: events.Stamp(c.opts.Clock.Now()),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.opts.Events.Publish(ev)
}
