package feeder

import (
	"path/filepath"
	"testing"

	"github.com/mge-net/mgesched/internal/store"
)

func TestNewSyntheticID_AlwaysPositive(t *testing.T) {
	for i := 0; i < 50; i++ {
		if id := NewSyntheticID(); id <= 0 {
			t.Fatalf("NewSyntheticID() = %d, want > 0", id)
		}
	}
}

func TestSeed_WritesWorkunitAndResults(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "mgesched.db"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	defer db.Close()

	f := New(db)
	workunitID, err := f.Seed(Scenario{
		Replicas:                2,
		DelayBound:              86400,
		ResultOutcomes:          []int{store.OutcomeSuccess, store.OutcomeSuccess},
		RoundTripSeconds:        120,
		InitialBatteryChargePct: 90,
		FinalBatteryChargePct:   88,
	})
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}

	history := store.NewHistoryStore(db)
	results, err := history.ResultsOf(workunitID)
	if err != nil {
		t.Fatalf("ResultsOf() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Outcome != store.OutcomeSuccess {
			t.Errorf("Outcome = %d, want OutcomeSuccess", r.Outcome)
		}
		if r.ReceivedTime != 120 {
			t.Errorf("ReceivedTime = %v, want 120", r.ReceivedTime)
		}
	}
}

func TestSeed_FailureOutcomeLeavesReceivedTimeZero(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "mgesched.db"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	defer db.Close()

	f := New(db)
	workunitID, err := f.Seed(Scenario{
		Replicas:         1,
		DelayBound:       3600,
		ResultOutcomes:   []int{store.OutcomeFailure},
		RoundTripSeconds: 500,
	})
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}

	history := store.NewHistoryStore(db)
	results, err := history.ResultsOf(workunitID)
	if err != nil {
		t.Fatalf("ResultsOf() error: %v", err)
	}
	if results[0].ReceivedTime != 0 {
		t.Errorf("ReceivedTime = %v, want 0 for a failed/in-flight result", results[0].ReceivedTime)
	}
}
