package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for controller operations.
var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_batches_total",
		Help: "Total number of image batches issued",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_batch_duration_seconds",
		Help:    "Image batch duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_items_total",
		Help: "Total feed items by outcome",
	}, []string{"status"}) // "loaded", "failed"

	urlPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_url_pages_total",
		Help: "Total URL page fetches by outcome",
	}, []string{"status"}) // "ok", "empty", "error"

	bufferLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_url_buffer_length",
		Help: "Current length of the URL buffer",
	})

	invalidURLsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_invalid_urls_total",
		Help: "Total rows dropped by URL validation",
	})
)
