// Package control switches the camera's capture pipeline and encoders on and
// off as viewers come and go and as the recording schedule demands.
//
// Capture runs while there is at least one viewer or recording is active. The
// preview encoder runs while there are viewers and the recording encoder runs
// while the schedule wants it. Hardware is only touched on 0<->1 transitions.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/camrecorder/internal/camera"
	"github.com/smazurov/camrecorder/internal/clock"
	"github.com/smazurov/camrecorder/internal/events"
	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/smazurov/camrecorder/internal/metrics"
	"github.com/smazurov/camrecorder/internal/schedule"
)

// DefaultPollInterval is how often Run re-evaluates the schedule.
const DefaultPollInterval = time.Minute

// Clock is the settable node clock.
type Clock interface {
	clock.Source
	SetTime(wall int64)
}

// Publisher receives controller events.
type Publisher interface {
	Publish(ev events.Event)
}

// Options configures a Controller.
type Options struct {
	Camera       camera.Camera
	Schedule     *schedule.Schedule
	Clock        Clock
	PollInterval time.Duration
	Events       Publisher
	Logger       logging.Logger
}

// Status is a point-in-time view of the controller.
type Status struct {
	Viewers   int
	Recording bool
	Schedule  schedule.Snapshot
	Now       int64
}

// Controller owns the viewer count and the recording flag.
type Controller struct {
	opts   Options
	logger logging.Logger

	// transition serialises hardware calls. It is always taken before mu.
	transition sync.Mutex

	mu        sync.Mutex
	viewers   int
	recording bool
}

// New creates a controller. The camera is not touched until a viewer arrives
// or the schedule is evaluated.
func New(opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Schedule == nil {
		opts.Schedule = schedule.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("control")
	}
	c := &Controller{opts: opts, logger: logger}
	opts.Schedule.OnChange(c.publishSchedule)
	return c
}

// Status returns the current viewers, recording flag and schedule.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Viewers:   c.viewers,
		Recording: c.recording,
		Schedule:  c.opts.Schedule.Snapshot(),
		Now:       c.opts.Clock.Now(),
	}
}

func (c *Controller) state() (viewers int, recording bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewers, c.recording
}

// AddViewer registers a viewer. The first viewer starts capture (unless
// recording already runs it) and the preview encoder.
func (c *Controller) AddViewer(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	viewers, recording := c.state()
	if viewers == 0 {
		if !recording {
			if err := c.startCapture(ctx); err != nil {
				return err
			}
		}
		if err := c.startEncoder(ctx, camera.Preview); err != nil {
			if !recording {
				c.stopCaptureAfterFailure(ctx)
			}
			return err
		}
	}

	c.setViewers(viewers + 1)
	return nil
}

// RemoveViewer unregisters a viewer. The last viewer stops the preview
// encoder and capture, unless recording still needs it. Removing a viewer
// when none are registered is a no-op.
func (c *Controller) RemoveViewer(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	viewers, recording := c.state()
	if viewers == 0 {
		c.logger.Warn("RemoveViewer called without viewers")
		return nil
	}
	if viewers == 1 {
		if err := c.stopEncoder(ctx, camera.Preview); err != nil {
			return err
		}
		if !recording {
			if err := c.stopCapture(ctx); err != nil {
				c.restartEncoderAfterFailure(ctx, camera.Preview)
				return err
			}
		}
	}

	c.setViewers(viewers - 1)
	return nil
}

// EvaluateRecordingNeed starts or stops the recording encoder according to
// the schedule at now. It does nothing when the encoder is already in the
// wanted state.
func (c *Controller) EvaluateRecordingNeed(ctx context.Context, now int64) error {
	c.transition.Lock()
	defer c.transition.Unlock()
	return c.setRecording(ctx, c.opts.Schedule.ShouldRunEncoder(now))
}

// Record replaces the schedule and evaluates it right away. A parse error
// leaves the previous schedule in place.
func (c *Controller) Record(ctx context.Context, name, ranges string) error {
	if err := c.opts.Schedule.Set(ranges, name); err != nil {
		return err
	}

	return c.EvaluateRecordingNeed(ctx, c.opts.Clock.Now())
}

// StopRecording clears the schedule and stops the recording encoder.
func (c *Controller) StopRecording(ctx context.Context) error {
	c.opts.Schedule.Stop()

	c.transition.Lock()
	defer c.transition.Unlock()
	return c.setRecording(ctx, false)
}

// SetTime sets the node clock and re-evaluates the schedule, since the new
// time may be inside or outside a range.
func (c *Controller) SetTime(ctx context.Context, wall int64) error {
	before := c.opts.Clock.Now()
	c.opts.Clock.SetTime(wall)
	now := c.opts.Clock.Now()

	shift := time.Duration(now - before)
	c.logger.Info("Clock set", "now", clock.DisplayString(now), "shift", shift)
	c.publish(events.ClockChangedEvent{
		Now:       clock.DisplayString(now),
		Shift:     shift.Seconds(),
		Timestamp: events.Stamp(now),
	})

	return c.EvaluateRecordingNeed(ctx, now)
}

// Run evaluates the schedule now and then every poll interval until ctx ends.
// Together with Record and SetTime this is the only place the recording need
// is evaluated; the frame path never calls EvaluateRecordingNeed, so writing
// a frame cannot block on a hardware transition. Segments still close on time
// because the recorder asks the schedule on every keyframe.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.EvaluateRecordingNeed(ctx, c.opts.Clock.Now()); err != nil {
			c.logger.Error("Failed to apply schedule", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Shutdown stops everything that is running, regardless of viewers.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	viewers, _ := c.state()
	var firstErr error
	if err := c.setRecording(ctx, false); err != nil {
		firstErr = err
	}
	if viewers > 0 {
		if err := c.stopEncoder(ctx, camera.Preview); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.stopCapture(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		c.setViewers(0)
	}
	return firstErr
}

// setRecording turns the recording encoder on or off. Must be called with
// transition held.
func (c *Controller) setRecording(ctx context.Context, want bool) error {
	viewers, recording := c.state()
	if want == recording {
		return nil
	}

	if want {
		if viewers == 0 {
			if err := c.startCapture(ctx); err != nil {
				return err
			}
		}
		if err := c.startEncoder(ctx, camera.Recording); err != nil {
			if viewers == 0 {
				c.stopCaptureAfterFailure(ctx)
			}
			return err
		}
	} else {
		if err := c.stopEncoder(ctx, camera.Recording); err != nil {
			return err
		}
		if viewers == 0 {
			if err := c.stopCapture(ctx); err != nil {
				c.restartEncoderAfterFailure(ctx, camera.Recording)
				return err
			}
		}
	}

	c.mu.Lock()
	c.recording = want
	c.mu.Unlock()

	name := c.opts.Schedule.Snapshot().Name
	metrics.SetRecordingActive(want)
	c.logger.Info("Recording state changed", "active", want, "name", name)
	c.publish(events.RecordingStateChangedEvent{
		Active:    want,
		Name:      name,
		Timestamp: events.Stamp(c.opts.Clock.Now()),
	})
	return nil
}

func (c *Controller) setViewers(n int) {
	c.mu.Lock()
	c.viewers = n
	c.mu.Unlock()

	metrics.SetViewers(n)
	c.logger.Debug("Viewer count changed", "viewers", n)
	c.publish(events.ViewerCountChangedEvent{
		Viewers:   n,
		Timestamp: events.Stamp(c.opts.Clock.Now()),
	})
}

func (c *Controller) startCapture(ctx context.Context) error {
	return c.hardware(camera.Capture, "start", func() error { return c.opts.Camera.Start(ctx) })
}

func (c *Controller) stopCapture(ctx context.Context) error {
	return c.hardware(camera.Capture, "stop", func() error { return c.opts.Camera.Stop(ctx) })
}

func (c *Controller) startEncoder(ctx context.Context, enc camera.Encoder) error {
	return c.hardware(enc.String(), "start", func() error { return c.opts.Camera.StartEncoder(ctx, enc) })
}

func (c *Controller) stopEncoder(ctx context.Context, enc camera.Encoder) error {
	return c.hardware(enc.String(), "stop", func() error { return c.opts.Camera.StopEncoder(ctx, enc) })
}

// stopCaptureAfterFailure undoes a capture start when the encoder that needed
// it could not be started.
func (c *Controller) stopCaptureAfterFailure(ctx context.Context) {
	if err := c.stopCapture(ctx); err != nil {
		c.logger.Error("Failed to roll back capture start", "error", err)
	}
}

// restartEncoderAfterFailure undoes an encoder stop when capture could not be
// stopped afterwards.
func (c *Controller) restartEncoderAfterFailure(ctx context.Context, enc camera.Encoder) {
	if err := c.startEncoder(ctx, enc); err != nil {
		c.logger.Error("Failed to roll back encoder stop", "encoder", enc, "error", err)
	}
}

func (c *Controller) hardware(component, action string, fn func() error) error {
	err := fn()
	metrics.Transition(component, action, err)
	if err != nil {
		c.logger.Error("Camera transition failed", "component", component, "action", action, "error", err)
		return fmt.Errorf("%s %s: %w", action, component, err)
	}
	metrics.SetRunning(component, action == "start")
	c.logger.Debug("Camera transition", "component", component, "action", action)
	return nil
}

func (c *Controller) publishSchedule(snap schedule.Snapshot) {
	if snap.Idle() {
		c.logger.Info("Schedule cleared")
	} else {
		c.logger.Info("Schedule set", "name", snap.Name, "ranges", snap.RangesString())
	}
	c.publish(events.ScheduleChangedEvent{
		Name:      snap.Name,
		Ranges:    snap.RangesString(),
		Active:    !snap.Idle(),
		Timestamp: events.Stamp(c.opts.Clock.Now()),
	})
}

func (c *Controller) publish(ev events.Event) {
	if c.opts.Events != nil {
		c.opts.Events.Publish(ev)
	}
}
