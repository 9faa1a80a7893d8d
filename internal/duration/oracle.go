// Package duration implements the DurationOracle (spec.md §4.6, C7): a
// static flops-based estimate, overridden by the host's authoritative
// observed average turnaround once one is available.
package duration

import (
	"github.com/mge-net/mgesched/internal/store"
)

// Workunit is the subset of workunit fields the static estimate needs.
type Workunit struct {
	FlopsEstimate float64 // rsc_fpops_est equivalent
}

// AppVersion describes the host-specific performance figure used to turn
// flops into seconds.
type AppVersion struct {
	HostFlops float64 // estimated flops/sec this app version achieves on the host
}

// Oracle implements Estimate and AvgTurnaround.
type Oracle struct {
	history *store.HistoryStore
}

// New returns an Oracle backed by history.
func New(history *store.HistoryStore) *Oracle {
	return &Oracle{history: history}
}

// Estimate returns a static prediction from workunit flops and host
// benchmarks.
func (o *Oracle) Estimate(wu Workunit, av AppVersion) float64 {
	if av.HostFlops <= 0 {
		return 0
	}
	return wu.FlopsEstimate / av.HostFlops
}

// AvgTurnaround returns the host's observed average turnaround, or 0 when
// no data exists yet (spec.md §4.6).
func (o *Oracle) AvgTurnaround(hostID int64) float64 {
	avg, err := o.history.AvgTurnaround(hostID)
	if err != nil {
		return 0
	}
	return avg
}

// Resolve picks avg_turnaround when it is strictly positive (authoritative),
// falling back to the static estimate (marked "estimated") otherwise
// (spec.md §4.6).
func (o *Oracle) Resolve(hostID int64, wu Workunit, av AppVersion) (seconds float64, estimated bool) {
	if avg := o.AvgTurnaround(hostID); avg > 0 {
		return avg, false
	}
	return o.Estimate(wu, av), true
}
