package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations.
	OutcomeError = "error"
	// OutcomeDiscarded labels poll results dropped by staleness fencing.
	OutcomeDiscarded = "discarded"
)

var (
	pollerFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autonex_console",
			Name:      "poller_fetches_total",
			Help:      "Total poll fetches, partitioned by poller name and outcome.",
		},
		[]string{"poller", "outcome"},
	)

	demoRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autonex_console",
			Name:      "demo_runs_total",
			Help:      "Total demo workflow runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	demoRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "autonex_console",
			Name:      "demo_run_seconds",
			Help:      "End-to-end demo workflow latency in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 45, 60, 90},
		},
	)

	approvalDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autonex_console",
			Name:      "approval_decisions_total",
			Help:      "Remediation action decisions, partitioned by decision and outcome.",
		},
		[]string{"decision", "outcome"},
	)
)

// Register attaches console collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pollerFetchesTotal,
		demoRunsTotal,
		demoRunSeconds,
		approvalDecisionsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePollerFetch counts one poll fetch outcome.
func ObservePollerFetch(poller, outcome string) {
	pollerFetchesTotal.WithLabelValues(poller, outcome).Inc()
}

// ObserveDemoRun records a demo workflow run and its duration.
func ObserveDemoRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	demoRunsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	demoRunSeconds.Observe(duration.Seconds())
}

// ObserveApprovalDecision counts one approve/reject decision outcome.
func ObserveApprovalDecision(decision, outcome string) {
	approvalDecisionsTotal.WithLabelValues(decision, outcome).Inc()
}
