package rlrepl

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mge-net/mgesched/internal/store"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mgesched.db"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	history := store.NewHistoryStore(db)
	return New(cfg, history, 1), db
}

func seedWorkunit(t *testing.T, db *store.DB, id int64, targetNResults int, delayBound int64) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO workunit (id, target_nresults, delay_bound, mod_time) VALUES (?, ?, ?, ?)`,
		id, targetNResults, delayBound, float64(id)); err != nil {
		t.Fatalf("seed workunit %d: %v", id, err)
	}
}

func seedResult(t *testing.T, db *store.DB, workunitID, hostID int64, sent, received, initialPct, finalPct float64, outcome int) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO result (workunit_id, host_id, sent_time, received_time, initial_battery_charge_pct, final_battery_charge_pct, outcome) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		workunitID, hostID, sent, received, initialPct, finalPct, outcome); err != nil {
		t.Fatalf("seed result for workunit %d: %v", workunitID, err)
	}
}

func TestRewardFor_NoHistoryReturnsNotOK(t *testing.T) {
	e, _ := newTestEngine(t, Default())
	reward, ok, err := e.rewardFor(2, 999, 600)
	if err != nil {
		t.Fatalf("rewardFor() error: %v", err)
	}
	if ok {
		t.Errorf("ok = true, want false with no past workunits at this replica count")
	}
	if reward != 0 {
		t.Errorf("reward = %v, want 0", reward)
	}
}

func TestRewardFor_GoodHistoryLowWastedEnergy(t *testing.T) {
	e, db := newTestEngine(t, Default())
	seedWorkunit(t, db, 1, 2, 86400)
	seedResult(t, db, 1, 10, 0, 100, 90, 89, store.OutcomeSuccess)
	seedResult(t, db, 1, 11, 0, 120, 90, 89, store.OutcomeSuccess)

	reward, ok, err := e.rewardFor(2, 999, 600)
	if err != nil {
		t.Fatalf("rewardFor() error: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if reward <= 0 || reward > KFactor {
		t.Errorf("reward = %v, want in (0, %v] for a good, low-wasted-energy history", reward, KFactor)
	}
}

func TestRewardFor_ExtraReplicasNeededIsQoSFailure(t *testing.T) {
	e, db := newTestEngine(t, Default())
	seedWorkunit(t, db, 1, 2, 86400)
	// Three results recorded against a workunit with target_nresults=2: the
	// client needed an extra replica to get a usable result.
	seedResult(t, db, 1, 10, 0, 100, 90, 89, store.OutcomeFailure)
	seedResult(t, db, 1, 11, 0, 110, 90, 89, store.OutcomeFailure)
	seedResult(t, db, 1, 12, 0, 120, 90, 89, store.OutcomeSuccess)

	reward, ok, err := e.rewardFor(2, 999, 600)
	if err != nil {
		t.Fatalf("rewardFor() error: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if reward != -KFactor {
		t.Errorf("reward = %v, want -%v (QoS failure)", reward, KFactor)
	}
}

func TestRewardFor_MissedDelayBoundIsNotFoundGood(t *testing.T) {
	e, db := newTestEngine(t, Default())
	seedWorkunit(t, db, 1, 1, 10) // delay_bound = 10s
	seedResult(t, db, 1, 10, 0, 1000, 90, 80, store.OutcomeSuccess)

	reward, ok, err := e.rewardFor(1, 999, 600)
	if err != nil {
		t.Fatalf("rewardFor() error: %v", err)
	}
	if !ok {
		t.Fatal("ok = false, want true")
	}
	if reward != -KFactor {
		t.Errorf("reward = %v, want -%v (round trip exceeded delay_bound)", reward, KFactor)
	}
}

func TestRewardFor_ExcludesCurrentWorkunit(t *testing.T) {
	e, db := newTestEngine(t, Default())
	seedWorkunit(t, db, 5, 2, 86400)
	seedResult(t, db, 5, 10, 0, 100, 90, 89, store.OutcomeSuccess)

	reward, ok, err := e.rewardFor(2, 5, 600)
	if err != nil {
		t.Fatalf("rewardFor() error: %v", err)
	}
	if ok {
		t.Errorf("ok = true, want false: workunit 5 excluded from its own reward computation, reward=%v", reward)
	}
}

func TestChooseReplicas_ZeroExplorationPicksBestReward(t *testing.T) {
	cfg := Default()
	cfg.ExplorativeProb = 0
	e, db := newTestEngine(t, cfg)

	// r=2: clean history, good reward.
	seedWorkunit(t, db, 1, 2, 86400)
	seedResult(t, db, 1, 10, 0, 100, 90, 89, store.OutcomeSuccess)
	seedResult(t, db, 1, 11, 0, 110, 90, 89, store.OutcomeSuccess)

	// r=3: needed an extra replica beyond target_nresults, a QoS failure.
	seedWorkunit(t, db, 2, 3, 86400)
	seedResult(t, db, 2, 10, 0, 100, 90, 80, store.OutcomeFailure)
	seedResult(t, db, 2, 11, 0, 110, 90, 80, store.OutcomeFailure)
	seedResult(t, db, 2, 12, 0, 120, 90, 80, store.OutcomeFailure)
	seedResult(t, db, 2, 13, 0, 130, 90, 80, store.OutcomeSuccess)

	reps, quorum, explorative, err := e.ChooseReplicas(context.Background(), 999, 600, 3)
	if err != nil {
		t.Fatalf("ChooseReplicas() error: %v", err)
	}
	if explorative {
		t.Error("explorative = true, want false with ExplorativeProb=0")
	}
	if quorum != 1 {
		t.Errorf("quorum = %d, want 1", quorum)
	}
	if reps != 2 {
		t.Errorf("reps = %d, want 2 (best scored, non-QoS-failing replica count)", reps)
	}
}

func TestChooseReplicas_NoHistoryStillExploresWithZeroExplorativeProb(t *testing.T) {
	cfg := Default()
	cfg.ExplorativeProb = 0
	e, _ := newTestEngine(t, cfg)

	reps, quorum, explorative, err := e.ChooseReplicas(context.Background(), 999, 600, 3)
	if err != nil {
		t.Fatalf("ChooseReplicas() error: %v", err)
	}
	if !explorative {
		t.Error("explorative = false, want true: an empty reward map always falls back to exploration")
	}
	if quorum != 1 {
		t.Errorf("quorum = %d, want 1", quorum)
	}
	if reps < 1 || reps > 3 {
		t.Errorf("reps = %d, want in [1,3]", reps)
	}
}

func TestChooseReplicas_AlwaysExploratoryWhenProbIsOne(t *testing.T) {
	cfg := Default()
	cfg.ExplorativeProb = 1
	e, db := newTestEngine(t, cfg)

	seedWorkunit(t, db, 1, 2, 86400)
	seedResult(t, db, 1, 10, 0, 100, 90, 89, store.OutcomeSuccess)

	for i := 0; i < 5; i++ {
		_, _, explorative, err := e.ChooseReplicas(context.Background(), int64(1000+i), 600, 2)
		if err != nil {
			t.Fatalf("ChooseReplicas() error: %v", err)
		}
		if !explorative {
			t.Errorf("iteration %d: explorative = false, want true with ExplorativeProb=1", i)
		}
	}
}

func TestChooseReplicas_MaxReplicasBelowOneClampsToOne(t *testing.T) {
	e, _ := newTestEngine(t, Default())
	reps, quorum, _, err := e.ChooseReplicas(context.Background(), 999, 600, 0)
	if err != nil {
		t.Fatalf("ChooseReplicas() error: %v", err)
	}
	if reps != 1 {
		t.Errorf("reps = %d, want 1 when maxReplicas clamps up from 0", reps)
	}
	if quorum != 1 {
		t.Errorf("quorum = %d, want 1", quorum)
	}
}
