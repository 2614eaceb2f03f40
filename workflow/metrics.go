// ABOUTME: Prometheus counters for workflow outcomes and retries.
package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptmint_workflow_outcomes_total",
		Help: "Finished workflows by type and outcome kind",
	}, []string{"workflow", "outcome"})

	workflowRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptmint_workflow_retries_total",
		Help: "Retries scheduled by the retry engine per workflow",
	}, []string{"workflow"})
)

func recordOutcome(workflow, outcome string) {
	workflowOutcomes.WithLabelValues(workflow, outcome).Inc()
}
