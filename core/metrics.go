// ABOUTME: Prometheus metrics for the state controller.
// ABOUTME: Counts changes dropped for subscribers that fell behind.
package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var broadcastDrops = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "promptmint_core_broadcast_dropped_total",
	Help: "State changes dropped because a lossy subscriber buffer was full",
}, []string{"action"})
