// Package metrics exposes the scheduler's Prometheus instrumentation,
// served the way the teacher wires promhttp.Handler() into its chi router
// (internal/api/server.go).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters/histograms/gauges the scheduler updates
// during a request (spec.md SPEC_FULL domain stack: prometheus/
// client_golang).
type Metrics struct {
	schedules      *prometheus.CounterVec
	jobsAssigned   prometheus.Histogram
	replicasChosen *prometheus.CounterVec
	workcacheSlots *prometheus.GaugeVec
}

// New registers and returns a Metrics set on reg. Pass
// prometheus.NewRegistry() in tests to avoid polluting the default
// registry across package-level test runs.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		schedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mgesched_schedule_total",
			Help: "SEAS schedule invocations by admission outcome.",
		}, []string{"admitted"}),
		jobsAssigned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mgesched_jobs_assigned",
			Help:    "Number of jobs assigned per SEAS invocation.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}),
		replicasChosen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mgesched_rlrepl_replicas_chosen_total",
			Help: "RL-Repl replica-count choices by chosen count and strategy.",
		}, []string{"replicas", "strategy"}),
		workcacheSlots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mgesched_workcache_slots",
			Help: "Current WorkCache slot counts by state.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.schedules, m.jobsAssigned, m.replicasChosen, m.workcacheSlots)
	return m
}

// ObserveSchedule records one SEAS invocation's outcome.
func (m *Metrics) ObserveSchedule(admitted bool, jobsAssigned int) {
	m.schedules.WithLabelValues(boolLabel(admitted)).Inc()
	m.jobsAssigned.Observe(float64(jobsAssigned))
}

// ObserveReplicaChoice records one RL-Repl action selection.
func (m *Metrics) ObserveReplicaChoice(replicas int, explorative bool) {
	m.replicasChosen.WithLabelValues(strconv.Itoa(replicas), strategyLabel(explorative)).Inc()
}

// SetWorkcacheSlots updates the slot-state gauges from a workcache.Counts()
// snapshot.
func (m *Metrics) SetWorkcacheSlots(empty, present, claimed int) {
	m.workcacheSlots.WithLabelValues("empty").Set(float64(empty))
	m.workcacheSlots.WithLabelValues("present").Set(float64(present))
	m.workcacheSlots.WithLabelValues("claimed").Set(float64(claimed))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func strategyLabel(explorative bool) string {
	if explorative {
		return "explorative"
	}
	return "exploitative"
}
