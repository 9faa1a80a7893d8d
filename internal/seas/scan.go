package seas

import (
	"context"
	"math"

	"github.com/mge-net/mgesched/internal/feasibility"
)

// scan implements spec.md §4.7.3: the per-slot budget-aware scan, including
// the backoff-avoidance single-job exception (§4.7.3 "Backoff-avoidance
// exception", Open Question #2). Unlike admit's whole-request gate, this
// exception fires mid-scan: remaining can still be positive, but the
// in-progress pipeline for a given candidate exceeds it while CPUs sit
// free, which is exactly the scenario the override exists to cover.
func (e *Engine) scan(ctx context.Context, req RequestContext, workunits []Workunit, pred prediction) []AssignedJob {
	backoffEligible := e.cfg.BackoffAvoidanceEnabled
	inProgress := 0.0
	for _, s := range req.InProgressOtherSecs {
		inProgress += s
	}
	currentJobs := int64(req.CurrentJobsThisProject)
	totalCPUs := pred.totalCPUs
	if totalCPUs <= 0 {
		totalCPUs = 1
	}
	availableCPUs := req.RequestedCPUInstances
	onExternalPower := req.Device.OnACPower || req.Device.OnUSBPower

	var assigned []AssignedJob
	sent := int64(0)
	backoffUsed := false

	byID := make(map[int64]Workunit, len(workunits))
	for _, wu := range workunits {
		byID[wu.ID] = wu
	}
	pid := e.nextPID()

	e.cache.Visit(func(i int) (stop bool) {
		if availableCPUs <= 0 && len(assigned) > 0 {
			return true
		}

		job, ok := e.cache.Peek(i)
		if !ok {
			return false
		}
		wu, ok := byID[job.WorkunitID]
		if !ok {
			return false
		}

		if reason := e.feas.FastCheck(wu.Job, wu.App, req.HostProfile); reason != feasibility.InfeasibleNone {
			return false
		}

		seconds, estimated := e.dur.Resolve(req.HostID, wu.Duration, wu.AppVersion)

		if currentJobs >= totalCPUs && availableCPUs <= 0 && estimated {
			return true
		}

		pipelineJobs := currentJobs + sent
		ewop := seconds * math.Ceil(float64(pipelineJobs)/float64(totalCPUs))
		totBusy := inProgress + ewop
		if pipelineJobs%totalCPUs == 0 {
			totBusy += seconds
		}

		if totBusy > wu.Job.ReportDeadline && availableCPUs <= 0 {
			return true
		}

		if totBusy > pred.remaining && !onExternalPower && !estimated {
			if backoffEligible && !backoffUsed && availableCPUs > 0 {
				backoffUsed = true
				// fall through: dispatch exactly this one job, then stop.
			} else {
				return true
			}
		}

		claimedJob, ok := e.cache.TryClaim(i, pid)
		if !ok {
			return false
		}
		outcome, err := e.feas.SlowCheck(ctx, claimedJob, req.HostID)
		if err != nil {
			e.cache.Restore(i, pid)
			return false
		}
		switch outcome {
		case feasibility.SlowNoHost:
			e.cache.Restore(i, pid)
			return false
		case feasibility.SlowNoAny:
			e.cache.Release(i, pid)
			return false
		}
		if !e.feas.ResultStillSendable(ctx, nil, claimedJob.ResultID) {
			e.cache.Release(i, pid)
			return false
		}
		e.cache.Release(i, pid)

		assigned = append(assigned, AssignedJob{Job: claimedJob, Seconds: seconds, Estimated: estimated})
		sent++
		availableCPUs--

		if backoffUsed {
			return true
		}
		return false
	})

	return assigned
}
