// ABOUTME: Prometheus instruments for the generation API.
package imagegen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptmint_imagegen_generate_total",
		Help: "Generate requests by outcome code",
	}, []string{"code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promptmint_imagegen_request_duration_seconds",
		Help:    "HTTP request latency of the generation API",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120},
	}, []string{"method", "status"})
)
