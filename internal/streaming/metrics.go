package streaming

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/camrecorder/internal/metrics"
)

var (
	mjpegClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metrics.Namespace,
		Subsystem: "mjpeg",
		Name:      "active_clients",
		Help:      "Number of connected MJPEG clients",
	})

	mjpegFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "mjpeg",
		Name:      "frames_sent_total",
		Help:      "Frames written to MJPEG clients",
	})

	mjpegBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "mjpeg",
		Name:      "bytes_sent_total",
		Help:      "JPEG payload bytes written to MJPEG clients",
	})
)

func clientConnected()    { mjpegClients.Inc() }
func clientDisconnected() { mjpegClients.Dec() }

func frameSent(bytes int) {
	mjpegFramesSent.Inc()
	mjpegBytesSent.Add(float64(bytes))
}
