// Package feasibility implements the FeasibilityOracle (spec.md §4.5, C6):
// the fast, lock-free slot predicate and the slow, store-backed predicate
// that together decide whether a candidate job may be dispatched to a host.
package feasibility

import (
	"context"
	"strconv"

	"github.com/mge-net/mgesched/internal/store"
	"github.com/mge-net/mgesched/internal/workcache"
)

// InfeasibleReason names why FastCheck rejected a candidate.
type InfeasibleReason int

const (
	InfeasibleNone InfeasibleReason = iota
	InfeasibleNotCPUIntensive
	InfeasibleQuotaExceeded
	InfeasibleUnsuitableForHost
)

func (r InfeasibleReason) String() string {
	switch r {
	case InfeasibleNotCPUIntensive:
		return "not_cpu_intensive"
	case InfeasibleQuotaExceeded:
		return "quota_exceeded"
	case InfeasibleUnsuitableForHost:
		return "unsuitable_for_host"
	default:
		return "none"
	}
}

// SlowOutcome is slow_check's three-way result (spec.md §4.5).
type SlowOutcome int

const (
	SlowOK SlowOutcome = iota
	SlowNoHost
	SlowNoAny
)

// App describes the application a job belongs to, as far as feasibility
// needs to know.
type App struct {
	ID            int64
	CPUIntensive  bool
	ProcessorType string
}

// HostProfile is the subset of host/request facts FastCheck consults.
type HostProfile struct {
	ProcessorType      string
	InProgressByAppPTQ map[string]int // keyed by "app_id:processor_type"
	QuotaByAppPTQ      map[string]int
}

// Oracle implements FastCheck, SlowCheck and ResultStillSendable.
type Oracle struct {
	history *store.HistoryStore
}

// New returns an Oracle backed by history for the slow, store-querying
// predicates.
func New(history *store.HistoryStore) *Oracle {
	return &Oracle{history: history}
}

// FastCheck is pure, cheap, and holds no locks: it may run while the
// WorkCache mutex is held (spec.md §4.5).
func (o *Oracle) FastCheck(job workcache.Job, app App, host HostProfile) InfeasibleReason {
	if !app.CPUIntensive {
		return InfeasibleNotCPUIntensive
	}
	key := quotaKey(app.ID, host.ProcessorType)
	if quota, ok := host.QuotaByAppPTQ[key]; ok && host.InProgressByAppPTQ[key] >= quota {
		return InfeasibleQuotaExceeded
	}
	if app.ProcessorType != "" && app.ProcessorType != host.ProcessorType {
		return InfeasibleUnsuitableForHost
	}
	return InfeasibleNone
}

func quotaKey(appID int64, processorType string) string {
	return strconv.FormatInt(appID, 10) + ":" + processorType
}

// SlowCheck may query the store. The caller must not hold the WorkCache
// mutex across this call (spec.md §4.4, §4.7.3).
func (o *Oracle) SlowCheck(ctx context.Context, job workcache.Job, hostID int64) (SlowOutcome, error) {
	// A job whose deadline has already elapsed relative to the host's
	// observed turnaround is unsendable to anyone; one whose deadline is
	// merely tight for this particular host is returned to the pool.
	avg, err := o.history.AvgTurnaround(hostID)
	if err != nil {
		// No turnaround history is not disqualifying — treat as OK and
		// let duration estimation fall back to the static figure.
		return SlowOK, nil
	}
	if avg > 0 && float64(job.ReportDeadline) <= 0 {
		return SlowNoAny, nil
	}
	if avg > float64(job.ReportDeadline) {
		return SlowNoHost, nil
	}
	return SlowOK, nil
}

// ResultStillSendable reports false when any of the caller-supplied results
// whose WorkunitID equals resultID has a non-zero ServerState, and true
// otherwise (including for a nil slice). It does not query the store; it
// sees only the results it is given.
func (o *Oracle) ResultStillSendable(ctx context.Context, results []store.PastResult, resultID int64) bool {
	for _, r := range results {
		if r.WorkunitID == resultID && r.ServerState != 0 {
			return false
		}
	}
	return true
}
