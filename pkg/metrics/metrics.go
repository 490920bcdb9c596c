// Package metrics instruments the SDK's own operational behavior —
// executor and process phase durations and outcome counts — with
// Prometheus client_golang. It never parses Firecracker's own /metrics
// output; that is an Extension's concern per the facade package.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every metric this SDK exports. Callers register it with
// their own prometheus.Registerer (or the default one via MustRegister) so
// multiple SDK instances in one process don't collide on metric names.
type Collector struct {
	phaseDuration *prometheus.HistogramVec
	phaseTotal    *prometheus.CounterVec
	activeVMs     prometheus.Gauge
}

// NewCollector builds a Collector with SDK-namespaced metric names. It does
// not register them; call Register.
func NewCollector() *Collector {
	return &Collector{
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "firecracker_sdk",
			Name:      "phase_duration_seconds",
			Help:      "Duration of executor/process lifecycle phases.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase", "executor_kind"}),
		phaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firecracker_sdk",
			Name:      "phase_total",
			Help:      "Count of executor/process lifecycle phase completions by outcome.",
		}, []string{"phase", "executor_kind", "outcome"}),
		activeVMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firecracker_sdk",
			Name:      "active_processes",
			Help:      "Number of VmmProcess instances currently in StateStarted.",
		}),
	}
}

// Register adds every metric to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{c.phaseDuration, c.phaseTotal, c.activeVMs} {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Outcome labels a completed phase for phaseTotal.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// Phase labels which of the four executor operations (or process
// equivalents) ran: "prepare", "invoke", "cleanup", "shutdown".
type Phase string

const (
	PhasePrepare  Phase = "prepare"
	PhaseInvoke   Phase = "invoke"
	PhaseCleanup  Phase = "cleanup"
	PhaseShutdown Phase = "shutdown"
)

// ExecutorKind labels which executor flavor recorded the observation.
type ExecutorKind string

const (
	ExecutorUnrestricted ExecutorKind = "unrestricted"
	ExecutorJailed       ExecutorKind = "jailed"
)

// ObservePhase records one phase completion's duration and outcome.
func (c *Collector) ObservePhase(phase Phase, kind ExecutorKind, outcome Outcome, duration time.Duration) {
	c.phaseDuration.WithLabelValues(string(phase), string(kind)).Observe(duration.Seconds())
	c.phaseTotal.WithLabelValues(string(phase), string(kind), string(outcome)).Inc()
}

// IncActive and DecActive track how many processes are currently Started.
func (c *Collector) IncActive() { c.activeVMs.Inc() }
func (c *Collector) DecActive() { c.activeVMs.Dec() }

// Timer returns a function that, when called, records the elapsed time
// since Timer was called as one ObservePhase call with the given outcome
// supplied at call time.
func (c *Collector) Timer(phase Phase, kind ExecutorKind) func(outcome Outcome) {
	start := time.Now()
	return func(outcome Outcome) {
		c.ObservePhase(phase, kind, outcome, time.Since(start))
	}
}
