// Package seas implements the SEAS admission and per-slot assignment engine
// (spec.md §4.7, C8): battery-uptime prediction, admission gating, and a
// deadline/uptime-budget-aware scan of the WorkCache.
package seas

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mge-net/mgesched/internal/device"
	"github.com/mge-net/mgesched/internal/duration"
	"github.com/mge-net/mgesched/internal/feasibility"
	"github.com/mge-net/mgesched/internal/logging"
	"github.com/mge-net/mgesched/internal/metrics"
	"github.com/mge-net/mgesched/internal/schedblob"
	"github.com/mge-net/mgesched/internal/store"
	"github.com/mge-net/mgesched/internal/workcache"
)

// Config tunes the engine. Zero value is not usable; call Default().
type Config struct {
	// ResetGap is the idle period after which uptime tracking starts over
	// (spec.md §4.7.1 step 1). Default 6h.
	ResetGap time.Duration

	// ChargeEpsilonPct is the "practically unchanged" threshold for
	// battery_charge_pct comparisons (spec.md §4.7.1 step 2). Default 0.1.
	ChargeEpsilonPct float64

	// DefaultDischargeRate seeds dr (seconds/percent) the first time it
	// has no positive value yet. Default 300.
	DefaultDischargeRate float64

	// BackoffAvoidanceEnabled gates scan's single-job exception: when the
	// in-progress pipeline alone would exceed the remaining uptime budget
	// but a CPU is still free, dispatch exactly one job anyway instead of
	// sending the client into RPC backoff (spec.md §4.7.3, Open Question
	// #2). Default true.
	BackoffAvoidanceEnabled bool

	// Now returns the current wall-clock epoch seconds; injectable for
	// deterministic tests.
	Now func() float64
}

// Default returns production defaults.
func Default() Config {
	return Config{
		ResetGap:                6 * time.Hour,
		ChargeEpsilonPct:        0.1,
		DefaultDischargeRate:    300,
		BackoffAvoidanceEnabled: true,
		Now:                     func() float64 { return float64(time.Now().Unix()) },
	}
}

// Workunit is the subset of job attributes the scan loop needs beyond what
// workcache.Job already carries.
type Workunit struct {
	ID         int64
	Job        workcache.Job
	SlotIndex  int
	App        feasibility.App
	AppVersion duration.AppVersion
	Duration   duration.Workunit
}

// RequestContext is the per-RPC input, built fresh by the caller instead of
// read from process globals (spec.md §9 design note).
type RequestContext struct {
	HostID                 int64
	Device                 device.Status
	DeviceStatusTime       float64 // epoch seconds, report time
	RequestedCPUInstances  int
	BatteryChargeMinPct    float64
	InProgressOtherSecs    []float64 // estimated_completion_time, other projects
	CurrentJobsThisProject int
	HostProfile            feasibility.HostProfile
}

// AssignedJob is one job placed into the reply.
type AssignedJob struct {
	Job       workcache.Job
	Seconds   float64
	Estimated bool
}

// Reply is the engine's output for one request.
type Reply struct {
	Jobs          []AssignedJob
	SchedBlobB64  string
	RemainingSecs float64
	Admitted      bool
}

// Engine runs the SEAS algorithm over a WorkCache, consulting the store,
// feasibility and duration oracles.
type Engine struct {
	cfg     Config
	status  *store.HostStatusStore
	cache   *workcache.Cache
	feas    *feasibility.Oracle
	dur     *duration.Oracle
	log     *logging.Logger
	metrics *metrics.Metrics
	pidSeq  int64
}

// nextPID hands out a claim identity distinct per in-flight scan, standing
// in for the original's OS pid (spec.md §4.4 "at most one pid may hold
// CLAIMED on a given slot").
func (e *Engine) nextPID() int {
	return int(atomic.AddInt64(&e.pidSeq, 1))
}

// New wires an Engine from its collaborators.
func New(cfg Config, status *store.HostStatusStore, cache *workcache.Cache, feas *feasibility.Oracle, dur *duration.Oracle, log *logging.Logger, m *metrics.Metrics) *Engine {
	return &Engine{cfg: cfg, status: status, cache: cache, feas: feas, dur: dur, log: log, metrics: m}
}

// prediction carries the working state for one request's uptime math
// (spec.md §4.7.1), threaded explicitly instead of stored on Engine.
type prediction struct {
	uptimeAvg float64
	samples   int64
	startTime float64
	dr        float64
	newCharge float64
	newTime   float64
	totalCPUs int64
	available float64
	remaining float64
}

// Schedule runs one full SEAS request: decode -> predict -> admit -> scan ->
// persist, always reaching persist (spec.md §4.9).
func (e *Engine) Schedule(ctx context.Context, req RequestContext, workunits []Workunit) (Reply, error) {
	row, err := e.status.Get(req.HostID)
	if err != nil && err != store.ErrNotFound {
		e.log.Errorf("[seas] host %d: status lookup failed, using fresh state: %v", req.HostID, err)
	}
	blob := schedblob.Decode(row.SchedData)

	pred := e.predict(req, blob)
	e.log.Debugf("host %d: remaining=%s dr=%.1fs/pct uptime_avg=%s",
		req.HostID,
		humanize.RelTime(time.Now(), time.Now().Add(time.Duration(pred.remaining)*time.Second), "", ""),
		pred.dr,
		humanize.RelTime(time.Now(), time.Now().Add(time.Duration(pred.uptimeAvg)*time.Second), "", ""))

	reply := Reply{RemainingSecs: pred.remaining}
	admitted := e.admit(req, pred)
	reply.Admitted = admitted

	if admitted {
		reply.Jobs = e.scan(ctx, req, workunits, pred)
	}

	if err := e.persist(req, pred, row); err != nil {
		e.log.Errorf("[seas] host %d: persist failed: %v", req.HostID, err)
	}
	reply.SchedBlobB64 = schedblob.Encode(schedblob.Blob{
		UptimeAvg:      pred.uptimeAvg,
		Samples:        pred.samples,
		StartTime:      pred.startTime,
		DischargeRate:  pred.dr,
		LastChargePct:  pred.newCharge,
		LastUpdateTime: pred.newTime,
		TotalCPUs:      pred.totalCPUs,
	})
	if e.metrics != nil {
		e.metrics.ObserveSchedule(admitted, len(reply.Jobs))
	}
	return reply, nil
}

// predict implements spec.md §4.7.1.
func (e *Engine) predict(req RequestContext, blob schedblob.Blob) prediction {
	now := e.cfg.Now()
	newCharge := req.Device.BatteryChargePct
	newTime := req.DeviceStatusTime

	uptimeAvg := blob.UptimeAvg
	samples := blob.Samples
	startTime := blob.StartTime
	dr := blob.DischargeRate
	oldCharge := blob.LastChargePct
	oldTime := blob.LastUpdateTime

	// Step 1: reset on long gap. The reset itself still counts as "new
	// data" for step 5 below, even though last_charge := new_charge would
	// otherwise make this report look unchanged.
	justReset := false
	if now-oldTime > e.cfg.ResetGap.Seconds() {
		oldTime = newTime
		oldCharge = newCharge
		startTime = newTime
		uptimeAvg = 0
		samples = 0
		dr = 0 // don't persist a spurious rate computed across the gap
		justReset = true
	}

	// Step 2: discharge rate.
	chargeChanged := !nearlyEqualPct(oldCharge, newCharge, e.cfg.ChargeEpsilonPct)
	if chargeChanged && newTime > oldTime {
		dr = (newTime - oldTime) / (oldCharge - newCharge)
	}
	if dr <= 0 {
		dr = e.cfg.DefaultDischargeRate
	}

	// Step 3: available charge.
	available := newCharge - req.BatteryChargeMinPct
	if available < 0 {
		available = 0
	}

	// Step 4: instantaneous uptime sample.
	uptime := (newTime - startTime) + available*dr

	// Step 5: running mean, on a genuine charge-change report or the first
	// report after a reset.
	if chargeChanged || justReset {
		samples++
		uptimeAvg += (uptime - uptimeAvg) / float64(samples)
	}

	// Step 6: remaining uptime.
	var remaining float64
	if uptimeAvg > 1 {
		remaining = uptimeAvg - (newTime - startTime)
	} else {
		remaining = uptime
	}

	totalCPUs := blob.TotalCPUs
	if int64(req.RequestedCPUInstances) > totalCPUs {
		totalCPUs = int64(req.RequestedCPUInstances)
	}

	return prediction{
		uptimeAvg: uptimeAvg,
		samples:   samples,
		startTime: startTime,
		dr:        dr,
		newCharge: newCharge,
		newTime:   newTime,
		totalCPUs: totalCPUs,
		available: available,
		remaining: remaining,
	}
}

func nearlyEqualPct(a, b, epsilonPct float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= epsilonPct
}

// admit implements spec.md §4.7.2's whole-request gate: no CPU work
// requested, no available charge left, or the total uptime budget is
// already spent with no external power to fall back on. This is distinct
// from the backoff-avoidance exception (§4.7.3), which is a per-slot
// override applied inside scan once admission has already succeeded.
func (e *Engine) admit(req RequestContext, pred prediction) bool {
	if req.RequestedCPUInstances <= 0 {
		return false
	}
	onExternalPower := req.Device.OnACPower || req.Device.OnUSBPower
	if pred.available == 0 {
		return false
	}
	if pred.remaining <= 0 && !onExternalPower {
		return false
	}
	return true
}

// persist implements spec.md §4.7.4: always attempted exactly once.
func (e *Engine) persist(req RequestContext, pred prediction, prior store.HostStatusRow) error {
	status := req.Device
	row := store.HostStatusRow{
		HostID:         req.HostID,
		Status:         status,
		LastUpdateTime: pred.newTime,
		SchedData: schedblob.Encode(schedblob.Blob{
			UptimeAvg:      pred.uptimeAvg,
			Samples:        pred.samples,
			StartTime:      pred.startTime,
			DischargeRate:  pred.dr,
			LastChargePct:  pred.newCharge,
			LastUpdateTime: pred.newTime,
			TotalCPUs:      pred.totalCPUs,
		}),
	}
	return e.status.Upsert(row)
}
