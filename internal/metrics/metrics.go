// Package metrics exposes queue and worker gauges in Prometheus format.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sprocket/internal/logging"
	"sprocket/internal/queue"
	"sprocket/internal/worker"
)

var (
	jobsByStatusDesc = prometheus.NewDesc(
		"sprocket_jobs_total",
		"Number of jobs in the store by status.",
		[]string{"status"}, nil,
	)
	queueDepthDesc = prometheus.NewDesc(
		"sprocket_queue_depth",
		"Number of jobs waiting for a worker.",
		nil, nil,
	)
	runningWorkersDesc = prometheus.NewDesc(
		"sprocket_workers_busy",
		"Number of workers currently executing a job.",
		nil, nil,
	)
	workerCapacityDesc = prometheus.NewDesc(
		"sprocket_workers_total",
		"Configured worker pool size.",
		nil, nil,
	)
)

// Collector reads gauge values on every scrape rather than tracking
// them incrementally, so metrics stay consistent with the store.
type Collector struct {
	store   *queue.Store
	queue   *queue.Queue
	pool    *worker.Pool
	workers int
	logger  *slog.Logger
}

func NewCollector(store *queue.Store, q *queue.Queue, pool *worker.Pool, workers int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Collector{
		store:   store,
		queue:   q,
		pool:    pool,
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "metrics"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- jobsByStatusDesc
	ch <- queueDepthDesc
	ch <- runningWorkersDesc
	ch <- workerCapacityDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.store.Stats(ctx)
	if err != nil {
		c.logger.Warn("stats collection failed", logging.Error(err))
	} else {
		for _, status := range queue.AllStatuses() {
			ch <- prometheus.MustNewConstMetric(
				jobsByStatusDesc, prometheus.GaugeValue,
				float64(counts[status]), string(status),
			)
		}
	}
	ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(c.queue.Depth()))
	ch <- prometheus.MustNewConstMetric(runningWorkersDesc, prometheus.GaugeValue, float64(c.pool.RunningCount()))
	ch <- prometheus.MustNewConstMetric(workerCapacityDesc, prometheus.GaugeValue, float64(c.workers))
}

// Handler returns an HTTP handler serving the collector on a private
// registry so default process metrics do not leak into the output.
func Handler(c *Collector) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
