package seas

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mge-net/mgesched/internal/device"
	"github.com/mge-net/mgesched/internal/duration"
	"github.com/mge-net/mgesched/internal/feasibility"
	"github.com/mge-net/mgesched/internal/logging"
	"github.com/mge-net/mgesched/internal/metrics"
	"github.com/mge-net/mgesched/internal/schedblob"
	"github.com/mge-net/mgesched/internal/store"
	"github.com/mge-net/mgesched/internal/workcache"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestEngine(t *testing.T, now float64) (*Engine, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mgesched.db"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := Default()
	cfg.Now = func() float64 { return now }

	status := store.NewHostStatusStore(db)
	history := store.NewHistoryStore(db)
	cache := workcache.New(4, 1)
	feas := feasibility.New(history)
	dur := duration.New(history)
	log := logging.New("seas-test", nil, false)
	m := metrics.New(prometheus.NewRegistry())

	return New(cfg, status, cache, feas, dur, log, m), db
}

func TestSchedule_FreshDeviceGoodBattery(t *testing.T) {
	e, db := newTestEngine(t, 1_700_000_000)
	req := RequestContext{
		HostID:                1,
		Device:                device.Status{BatteryChargePct: 95, OnACPower: false},
		DeviceStatusTime:      1_700_000_000,
		RequestedCPUInstances: 1,
		BatteryChargeMinPct:   0,
	}
	reply, err := e.Schedule(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if !reply.Admitted {
		t.Fatal("Admitted = false, want true for a fresh device with good battery")
	}
	if reply.RemainingSecs < 28000 || reply.RemainingSecs > 29000 {
		t.Errorf("RemainingSecs = %v, want ~28500 (95 * 300)", reply.RemainingSecs)
	}

	row, err := store.NewHostStatusStore(db).Get(1)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if row.SchedData == "" {
		t.Error("expected a persisted SchedBlob")
	}
}

func TestPredict_ChargeDropUpdatesDischargeRate(t *testing.T) {
	e, _ := newTestEngine(t, 1_700_000_600)
	blob := schedblob.Blob{
		UptimeAvg:      0,
		Samples:        1,
		StartTime:      1_700_000_000,
		DischargeRate:  0,
		LastChargePct:  90,
		LastUpdateTime: 1_700_000_000,
	}
	req := RequestContext{
		HostID:                1,
		Device:                device.Status{BatteryChargePct: 88},
		DeviceStatusTime:      1_700_000_600,
		RequestedCPUInstances: 1,
	}
	pred := e.predict(req, blob)
	if pred.dr != 300 {
		t.Errorf("dr = %v, want 300 (600s / 2%%)", pred.dr)
	}
}

func TestSchedule_BatteryTooLowToFinish(t *testing.T) {
	e, _ := newTestEngine(t, 1_700_000_000)
	req := RequestContext{
		HostID:                1,
		Device:                device.Status{BatteryChargePct: 5},
		DeviceStatusTime:      1_700_000_000,
		RequestedCPUInstances: 1,
		BatteryChargeMinPct:   5,
	}
	reply, err := e.Schedule(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if reply.Admitted {
		t.Error("Admitted = true, want false (available charge == 0)")
	}
	if len(reply.Jobs) != 0 {
		t.Errorf("Jobs = %v, want none", reply.Jobs)
	}
}

func TestSchedule_LongGapResetsSamples(t *testing.T) {
	e, db := newTestEngine(t, 1_700_000_000)
	status := store.NewHostStatusStore(db)
	status.Upsert(store.HostStatusRow{
		HostID: 1,
		SchedData: schedblob.Encode(schedblob.Blob{
			UptimeAvg:      50,
			Samples:        10,
			StartTime:      1_699_900_000,
			DischargeRate:  300,
			LastChargePct:  90,
			LastUpdateTime: 1_699_900_000 - 7*3600,
			TotalCPUs:      1,
		}),
	})

	req := RequestContext{
		HostID:                1,
		Device:                device.Status{BatteryChargePct: 91},
		DeviceStatusTime:      1_700_000_000,
		RequestedCPUInstances: 1,
	}
	if _, err := e.Schedule(context.Background(), req, nil); err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}

	row, err := status.Get(1)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	blob := schedblob.Decode(row.SchedData)
	if blob.Samples != 1 {
		t.Errorf("Samples = %d, want 1 after reset + one new sample", blob.Samples)
	}
	if blob.StartTime != 1_700_000_000 {
		t.Errorf("StartTime = %v, want 1700000000 (reset to new_time)", blob.StartTime)
	}
}

func TestAdmit_RemainingExhaustedRejectsAdmission(t *testing.T) {
	e, _ := newTestEngine(t, 1_700_000_000)
	req := RequestContext{RequestedCPUInstances: 1}
	pred := prediction{available: 50, remaining: -10}
	if e.admit(req, pred) {
		t.Error("admit() = true, want false (remaining<=0, no external power)")
	}
}

func TestAdmit_OnACPowerOverridesRemainingCheck(t *testing.T) {
	e, _ := newTestEngine(t, 1_700_000_000)
	req := RequestContext{
		RequestedCPUInstances: 1,
		Device:                device.Status{OnACPower: true},
	}
	pred := prediction{available: 50, remaining: -10}
	if !e.admit(req, pred) {
		t.Error("admit() = false, want true: on-AC power overrides the remaining<=0 check")
	}
}

func TestAdmit_NoCPURequestedYieldsNoAdmission(t *testing.T) {
	e, _ := newTestEngine(t, 1_700_000_000)
	if e.admit(RequestContext{RequestedCPUInstances: 0}, prediction{available: 50, remaining: 100}) {
		t.Error("admit() = true, want false when RequestedCPUInstances == 0")
	}
}

// TestSchedule_BackoffAvoidanceReachableThroughPublicAPI walks spec.md §8
// scenario 4 through the real Schedule() entry point: remaining is positive
// (admit() succeeds), but the in-progress pipeline for the only cache
// candidate exceeds it while a CPU sits free. The exception must still
// dispatch exactly one job.
func TestSchedule_BackoffAvoidanceReachableThroughPublicAPI(t *testing.T) {
	e, db := newTestEngine(t, 1_700_000_000)
	e.cache = workcache.New(4, 1)
	e.cache.Fill(0, workcache.Job{WorkunitID: 1, ReportDeadline: 1_000_000})

	if _, err := db.Exec(`INSERT INTO workunit (id, target_nresults, delay_bound, mod_time) VALUES (99, 1, 86400, 1)`); err != nil {
		t.Fatalf("seed workunit: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO result (workunit_id, host_id, sent_time, received_time, outcome) VALUES (99, 1, 0, 10000, 1)`); err != nil {
		t.Fatalf("seed result: %v", err)
	}

	status := store.NewHostStatusStore(db)
	status.Upsert(store.HostStatusRow{
		HostID: 1,
		SchedData: schedblob.Encode(schedblob.Blob{
			UptimeAvg:      1800,
			Samples:        3,
			StartTime:      1_700_000_000 - 10,
			DischargeRate:  300,
			LastChargePct:  50,
			LastUpdateTime: 1_700_000_000 - 10,
			TotalCPUs:      2,
		}),
	})

	req := RequestContext{
		HostID:                1,
		Device:                device.Status{BatteryChargePct: 50, OnACPower: false},
		DeviceStatusTime:      1_700_000_000,
		RequestedCPUInstances: 1,
		InProgressOtherSecs:   []float64{3600},
	}
	workunits := []Workunit{
		{ID: 1, Job: workcache.Job{WorkunitID: 1}, App: feasibility.App{CPUIntensive: true}, AppVersion: duration.AppVersion{HostFlops: 1}, Duration: duration.Workunit{FlopsEstimate: 100}},
	}

	reply, err := e.Schedule(context.Background(), req, workunits)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if !reply.Admitted {
		t.Fatal("Admitted = false, want true (remaining is positive)")
	}
	if reply.RemainingSecs <= 0 {
		t.Fatalf("RemainingSecs = %v, want positive (scenario 4 requires remaining > 0)", reply.RemainingSecs)
	}
	if len(reply.Jobs) != 1 {
		t.Fatalf("Jobs = %d, want exactly 1 (backoff-avoidance through Schedule())", len(reply.Jobs))
	}
}

func TestSchedule_BackoffAvoidanceDisabledYieldsNoJobs(t *testing.T) {
	e, db := newTestEngine(t, 1_700_000_000)
	e.cfg.BackoffAvoidanceEnabled = false
	e.cache = workcache.New(4, 1)
	e.cache.Fill(0, workcache.Job{WorkunitID: 1, ReportDeadline: 1_000_000})

	if _, err := db.Exec(`INSERT INTO workunit (id, target_nresults, delay_bound, mod_time) VALUES (99, 1, 86400, 1)`); err != nil {
		t.Fatalf("seed workunit: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO result (workunit_id, host_id, sent_time, received_time, outcome) VALUES (99, 1, 0, 10000, 1)`); err != nil {
		t.Fatalf("seed result: %v", err)
	}

	status := store.NewHostStatusStore(db)
	status.Upsert(store.HostStatusRow{
		HostID: 1,
		SchedData: schedblob.Encode(schedblob.Blob{
			UptimeAvg:      1800,
			Samples:        3,
			StartTime:      1_700_000_000 - 10,
			DischargeRate:  300,
			LastChargePct:  50,
			LastUpdateTime: 1_700_000_000 - 10,
			TotalCPUs:      2,
		}),
	})

	req := RequestContext{
		HostID:                1,
		Device:                device.Status{BatteryChargePct: 50, OnACPower: false},
		DeviceStatusTime:      1_700_000_000,
		RequestedCPUInstances: 1,
		InProgressOtherSecs:   []float64{3600},
	}
	workunits := []Workunit{
		{ID: 1, Job: workcache.Job{WorkunitID: 1}, App: feasibility.App{CPUIntensive: true}, AppVersion: duration.AppVersion{HostFlops: 1}, Duration: duration.Workunit{FlopsEstimate: 100}},
	}

	reply, err := e.Schedule(context.Background(), req, workunits)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if len(reply.Jobs) != 0 {
		t.Fatalf("Jobs = %d, want 0 with BackoffAvoidanceEnabled=false", len(reply.Jobs))
	}
}
