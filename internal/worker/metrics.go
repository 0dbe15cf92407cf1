package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the dispatch boundary. The pool wraps every processing
// call explicitly: start the timer before invoking the processor, record the
// outcome after it returns.
type Metrics struct {
	Processed *prometheus.CounterVec
	Duration  prometheus.Histogram
	Alive     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Processed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "video_jobs_processed_total",
			Help: "Processed job refs by outcome.",
		}, []string{"outcome"}),
		Duration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "video_job_duration_seconds",
			Help:    "Conversion job duration in seconds.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 900, 1200},
		}),
		Alive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "video_workers_alive",
			Help: "Number of running worker goroutines.",
		}),
	}
}
