// Package telemetry はPrometheusメトリクスを公開します。
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	UploadsAccepted = prometheus.NewCounter(prometheus.CounterOpts{Name: "pdf_uploads_accepted_total", Help: "Uploads accepted and queued"})
	UploadsRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "pdf_uploads_rejected_total", Help: "Uploads rejected by validation"})
	JobsDone        = prometheus.NewCounter(prometheus.CounterOpts{Name: "pdf_jobs_done_total", Help: "Jobs completed successfully"})
	JobsFailed      = prometheus.NewCounter(prometheus.CounterOpts{Name: "pdf_jobs_failed_total", Help: "Jobs that ended in the failed state"})
	InFlightGauge   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "pdf_jobs_inflight", Help: "Jobs currently being processed"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			UploadsAccepted,
			UploadsRejected,
			JobsDone,
			JobsFailed,
			InFlightGauge,
		)
	})
	return promhttp.Handler()
}
