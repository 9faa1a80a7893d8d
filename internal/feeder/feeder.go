// Package feeder generates synthetic workunit/result history for demos and
// the bench-rlrepl CLI command, standing in for the real BOINC feeder
// daemon this scheduler would otherwise sit behind (spec.md §1, "feeder"
// named but out of scope to implement). IDs are synthesized from
// github.com/google/uuid rather than an auto-increment counter, the way a
// test harness simulating multiple independent scheduler workers in one
// process would hand out claim tokens with no real OS pid to borrow.
package feeder

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/mge-net/mgesched/internal/store"
)

// NewSyntheticID derives a positive int64 from a fresh random UUID, for
// callers that need a workunit/result/host ID with no natural source.
func NewSyntheticID() int64 {
	id := uuid.New()
	n := int64(binary.BigEndian.Uint64(id[:8]))
	if n < 0 {
		n = -n
	}
	if n == 0 {
		n = 1
	}
	return n
}

// Scenario describes one synthetic past-workunit outcome to seed.
type Scenario struct {
	Replicas                int
	DelayBound              int64
	ResultOutcomes          []int // store.OutcomeSuccess / store.OutcomeFailure, one per synthesized result
	RoundTripSeconds        float64
	InitialBatteryChargePct float64
	FinalBatteryChargePct   float64
}

// Feeder seeds synthetic history into a store.DB.
type Feeder struct {
	db *store.DB
}

// New returns a Feeder over db.
func New(db *store.DB) *Feeder {
	return &Feeder{db: db}
}

// Seed writes one workunit row and len(sc.ResultOutcomes) result rows for
// sc, returning the synthesized workunit ID.
func (f *Feeder) Seed(sc Scenario) (int64, error) {
	workunitID := NewSyntheticID()
	if _, err := f.db.Exec(
		`INSERT INTO workunit (id, target_nresults, delay_bound, mod_time) VALUES (?, ?, ?, ?)`,
		workunitID, sc.Replicas, sc.DelayBound, float64(workunitID),
	); err != nil {
		return 0, err
	}

	for _, outcome := range sc.ResultOutcomes {
		hostID := NewSyntheticID()
		received := sc.RoundTripSeconds
		if outcome != store.OutcomeSuccess {
			received = 0 // in-flight / never completed
		}
		if _, err := f.db.Exec(
			`INSERT INTO result (workunit_id, host_id, sent_time, received_time, initial_battery_charge_pct, final_battery_charge_pct, outcome)
			 VALUES (?, ?, 0, ?, ?, ?, ?)`,
			workunitID, hostID, received, sc.InitialBatteryChargePct, sc.FinalBatteryChargePct, outcome,
		); err != nil {
			return 0, err
		}
	}
	return workunitID, nil
}
