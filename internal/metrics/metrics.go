package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "galleryrip",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "galleryrip",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	RunningDownloads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "galleryrip",
		Name:      "running_downloads",
		Help:      "Number of image downloads currently in flight.",
	})

	PendingImages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "galleryrip",
		Name:      "pending_images",
		Help:      "Number of images waiting for admission.",
	})

	ImagesInError = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "galleryrip",
		Name:      "images_in_error",
		Help:      "Number of images in error status across all posts.",
	})

	DownloadsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "galleryrip",
		Name:      "downloads_started_total",
		Help:      "Total number of image download tasks launched.",
	})

	DownloadFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "galleryrip",
		Name:      "download_failures_total",
		Help:      "Total number of image downloads that exhausted their retries.",
	})

	DownloadedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "galleryrip",
		Name:      "downloaded_bytes_total",
		Help:      "Total bytes of finished images.",
	})
)

// Register registers all collectors on the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RunningDownloads,
		PendingImages,
		ImagesInError,
		DownloadsStartedTotal,
		DownloadFailuresTotal,
		DownloadedBytesTotal,
	)
}
