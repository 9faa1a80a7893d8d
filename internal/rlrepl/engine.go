// Package rlrepl implements the RL-Repl replica-count bandit (spec.md §4.8,
// C9): an epsilon-greedy action selector over a per-replica-count reward
// map built from recent workunit/result history.
package rlrepl

import (
	"context"

	"golang.org/x/exp/rand"

	"github.com/mge-net/mgesched/internal/store"
)

// Tunables, named for the constants in the original calc_workunit_replicas
// (spec.md §4.8).
const (
	KFactor             = 10.0
	KWastedEnergyImpact = 7.0
	ExplorativeProb     = 0.2
	maxPastWorkunits    = 5
)

// Config bounds and seeds one Engine.
type Config struct {
	// ExplorativeProb is the probability of ignoring the reward map and
	// picking uniformly at random. Default ExplorativeProb (0.2); set to
	// 0 for the zero-exploration convergence law (spec.md §8).
	ExplorativeProb float64

	// KFactor is the magnitude of both the best-case reward and the QoS
	// failure penalty. Default KFactor (10).
	KFactor float64

	// KWastedEnergyImpact scales how much wasted battery percentage (summed
	// over all of a past workunit's results) discounts a good-outcome reward. Default
	// KWastedEnergyImpact (7).
	KWastedEnergyImpact float64
}

// Default returns production defaults.
func Default() Config {
	return Config{
		ExplorativeProb:     ExplorativeProb,
		KFactor:             KFactor,
		KWastedEnergyImpact: KWastedEnergyImpact,
	}
}

// Engine chooses a replica count and quorum for a new workunit.
type Engine struct {
	cfg     Config
	history *store.HistoryStore
	rng     *rand.Rand
}

// New returns an Engine backed by history, seeded for deterministic tests.
func New(cfg Config, history *store.HistoryStore, rngSeed uint64) *Engine {
	return &Engine{cfg: cfg, history: history, rng: rand.New(rand.NewSource(rngSeed))}
}

// ChooseReplicas implements spec.md §4.8: build a reward map over
// 1..maxReplicas, then epsilon-greedily select. quorum is always 1.
func (e *Engine) ChooseReplicas(ctx context.Context, workunitID int64, dischargeRate float64, maxReplicas int) (reps int, quorum int, explorative bool, err error) {
	quorum = 1
	if maxReplicas < 1 {
		maxReplicas = 1
	}
	if dischargeRate <= 0 {
		dischargeRate = 600
	}

	rewards := make(map[int]float64, maxReplicas)
	for r := 1; r <= maxReplicas; r++ {
		reward, ok, rerr := e.rewardFor(r, workunitID, dischargeRate)
		if rerr != nil {
			return 1, quorum, false, rerr
		}
		if ok {
			rewards[r] = reward
		}
	}

	draw := e.rng.Float64()
	if draw < e.cfg.ExplorativeProb || len(rewards) == 0 {
		reps = 1 + e.rng.Intn(maxReplicas)
		return reps, quorum, true, nil
	}

	reps = 1
	best := rewards[1]
	hasBest := false
	for r := 1; r <= maxReplicas; r++ {
		v, ok := rewards[r]
		if !ok {
			continue
		}
		if !hasBest || v > best {
			best = v
			reps = r
			hasBest = true
		}
	}
	if !hasBest {
		reps = 1
	}
	return reps, quorum, false, nil
}

// rewardFor computes reward[r] from up to maxPastWorkunits recent past
// workunits with the same replication factor (spec.md §4.8, Open Question
// #1 resolution: the per-replica-count reward is the last evaluated past
// workunit's verdict, unless a QoS failure stops the scan early).
func (e *Engine) rewardFor(r int, excludeID int64, dischargeRate float64) (reward float64, ok bool, err error) {
	past, err := e.history.RecentWorkunitsWithReplication(r, excludeID, maxPastWorkunits)
	if err != nil {
		return 0, false, err
	}
	if len(past) == 0 {
		return 0, false, nil
	}

	for _, wu := range past {
		results, err := e.history.ResultsOf(wu.ID)
		if err != nil {
			return 0, false, err
		}

		if len(results) > r {
			// The client needed extra replicas to complete this workunit:
			// a QoS failure, and decisive — stop scanning further past
			// workunits for this replica count.
			return -e.cfg.KFactor, true, nil
		}

		// Results not yet received are still in flight; this reward pass
		// only ever runs over settled history (results_of orders by
		// descending receive time), so an unreceived result here would be
		// a genuinely stuck replica — treated the same as a QoS failure.
		foundGood := false
		qosFailure := false
		wastedEnergy := 0.0
		for _, res := range results {
			if res.ReceivedTime == 0 {
				qosFailure = true
				break
			}
			roundTrip := res.ReceivedTime - res.SentTime
			if res.Outcome == store.OutcomeSuccess && roundTrip > 0 && roundTrip <= float64(wu.DelayBound) {
				foundGood = true
			}

			if res.Outcome == store.OutcomeSuccess {
				wastedEnergy += res.InitialBatteryChargePct - res.FinalBatteryChargePct
			} else {
				avg := e.history.AvgTurnaroundOrZero(res.HostID)
				wastedEnergy += avg / dischargeRate
			}
		}

		if qosFailure {
			return -e.cfg.KFactor, true, nil
		}
		if foundGood {
			t := wastedEnergy / 100
			if t > 1 {
				t = 1
			}
			reward = e.cfg.KFactor - e.cfg.KWastedEnergyImpact*t
			ok = true
			continue
		}
		reward = -e.cfg.KFactor
		ok = true
	}
	return reward, ok, nil
}
