// Package exporters exposes metrics over HTTP and on the event bus.
package exporters

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/camrecorder/internal/metrics"
	"github.com/smazurov/camrecorder/internal/version"
)

var buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: metrics.Namespace,
	Name:      "build_info",
	Help:      "Build metadata, always 1",
}, []string{"version", "commit", "go_version"})

var registerBuildInfo sync.Once

// HTTPHandler serves everything registered with the default registry, which
// includes the promauto metrics of this module. A collector that fails does
// not hide the others.
func HTTPHandler() http.Handler {
	registerBuildInfo.Do(func() {
		info := version.Get()
		buildInfo.WithLabelValues(info.Version, info.GitCommit, info.GoVersion).Set(1)
	})
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorHandling:     promhttp.ContinueOnError,
			EnableOpenMetrics: true,
		}))
}
