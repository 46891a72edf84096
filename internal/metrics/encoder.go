// Package metrics provides Prometheus metrics for the encoders, the recorder and
// the activation controller.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric exported by camrecorder.
const Namespace = "camrecorder"

var (
	encoderFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "encoder",
		Name:      "fps",
		Help:      "Current encoding FPS reported by ffmpeg",
	}, []string{"encoder"})

	encoderDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "encoder",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by ffmpeg since the encoder started",
	}, []string{"encoder"})

	encoderDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "encoder",
		Name:      "duplicate_frames_total",
		Help:      "Frames duplicated by ffmpeg since the encoder started",
	}, []string{"encoder"})

	encoderSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "encoder",
		Name:      "processing_speed",
		Help:      "ffmpeg processing speed multiplier",
	}, []string{"encoder"})

	// Local cache for SSE exporter access.
	encoderCache   = make(map[string]*EncoderMetrics)
	encoderCacheMu sync.RWMutex
)

// EncoderMetrics holds current metric values for an encoder process.
type EncoderMetrics struct {
	FPS             float64
	DroppedFrames   float64
	DuplicateFrames float64
	Speed           float64
}

// SetEncoderFPS sets the current FPS for an encoder.
func SetEncoderFPS(encoder string, fps float64) {
	encoderFPS.WithLabelValues(encoder).Set(fps)
	updateCache(encoder, func(m *EncoderMetrics) { m.FPS = fps })
}

// SetEncoderDroppedFrames sets the dropped frames count for an encoder.
func SetEncoderDroppedFrames(encoder string, count float64) {
	encoderDroppedFrames.WithLabelValues(encoder).Set(count)
	updateCache(encoder, func(m *EncoderMetrics) { m.DroppedFrames = count })
}

// SetEncoderDuplicateFrames sets the duplicate frames count for an encoder.
func SetEncoderDuplicateFrames(encoder string, count float64) {
	encoderDuplicateFrames.WithLabelValues(encoder).Set(count)
	updateCache(encoder, func(m *EncoderMetrics) { m.DuplicateFrames = count })
}

// SetEncoderSpeed sets the processing speed for an encoder.
func SetEncoderSpeed(encoder string, speed float64) {
	encoderSpeed.WithLabelValues(encoder).Set(speed)
	updateCache(encoder, func(m *EncoderMetrics) { m.Speed = speed })
}

// DeleteEncoderMetrics removes all metrics for an encoder.
func DeleteEncoderMetrics(encoder string) {
	encoderFPS.DeleteLabelValues(encoder)
	encoderDroppedFrames.DeleteLabelValues(encoder)
	encoderDuplicateFrames.DeleteLabelValues(encoder)
	encoderSpeed.DeleteLabelValues(encoder)

	encoderCacheMu.Lock()
	delete(encoderCache, encoder)
	encoderCacheMu.Unlock()
}

// GetEncoderMetrics returns current metric values for an encoder.
func GetEncoderMetrics(encoder string) *EncoderMetrics {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	if m, ok := encoderCache[encoder]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllEncoderMetrics returns metrics for all running encoders.
func GetAllEncoderMetrics() map[string]*EncoderMetrics {
	encoderCacheMu.RLock()
	defer encoderCacheMu.RUnlock()
	result := make(map[string]*EncoderMetrics, len(encoderCache))
	for id, m := range encoderCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(encoder string, update func(*EncoderMetrics)) {
	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()
	m, ok := encoderCache[encoder]
	if !ok {
		m = &EncoderMetrics{}
		encoderCache[encoder] = m
	}
	update(m)
}
