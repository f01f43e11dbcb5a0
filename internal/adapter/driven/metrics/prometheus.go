// Package metrics implements the driven.Metrics port with Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

const metricsNamespace = "appdepo"

// Compile-time interface satisfaction check.
var _ driven.Metrics = (*Recorder)(nil)

// Recorder holds the release-check and download collectors.
type Recorder struct {
	checksTotal     *prometheus.CounterVec
	checkDuration   *prometheus.HistogramVec
	downloadsTotal  *prometheus.CounterVec
	downloadedBytes prometheus.Counter
}

// NewRecorder creates the collectors and registers them with reg when it is non-nil.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "check",
			Name:      "total",
			Help:      "Release checks by outcome.",
		}, []string{"outcome"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "check",
			Name:      "duration_seconds",
			Help:      "Latency of a single release check.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		downloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "download",
			Name:      "total",
			Help:      "APK downloads by final state.",
		}, []string{"outcome"}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Bytes written to disk by APK downloads.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.checksTotal, r.checkDuration, r.downloadsTotal, r.downloadedBytes)
	}
	return r
}

// ObserveCheck records one release check.
func (r *Recorder) ObserveCheck(outcome string, duration time.Duration) {
	r.checksTotal.WithLabelValues(outcome).Inc()
	r.checkDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveDownload records a finished download and the bytes it copied.
func (r *Recorder) ObserveDownload(outcome string, bytes int64) {
	r.downloadsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		r.downloadedBytes.Add(float64(bytes))
	}
}
