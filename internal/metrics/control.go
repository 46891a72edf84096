package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	viewers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "control",
		Name:      "viewers",
		Help:      "Connected preview viewers",
	})

	recordingActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "control",
		Name:      "recording_active",
		Help:      "1 while the recording encoder is running",
	})

	hardwareRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "control",
		Name:      "running",
		Help:      "1 while the capture pipeline or an encoder is running",
	}, []string{"component"})

	hardwareTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "control",
		Name:      "transitions_total",
		Help:      "Start and stop calls issued to the camera",
	}, []string{"component", "action", "result"})

	previewFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "streaming",
		Name:      "frames_total",
		Help:      "Preview frames published to the frame buffer",
	})
)

// SetViewers sets the viewer gauge.
func SetViewers(n int) {
	viewers.Set(float64(n))
}

// SetRecordingActive sets the recording gauge.
func SetRecordingActive(active bool) {
	recordingActive.Set(boolToFloat(active))
}

// SetRunning sets whether component (capture, preview, recording) is running.
func SetRunning(component string, running bool) {
	hardwareRunning.WithLabelValues(component).Set(boolToFloat(running))
}

// Transition counts a start or stop call and its result.
func Transition(component, action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	hardwareTransitions.WithLabelValues(component, action, result).Inc()
}

// PreviewFrame counts a preview frame.
func PreviewFrame() {
	previewFrames.Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
