package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mge-net/mgesched/internal/feeder"
	"github.com/mge-net/mgesched/internal/rlrepl"
	"github.com/mge-net/mgesched/internal/store"
)

func init() {
	rootCmd.AddCommand(benchRLReplCmd)
	benchRLReplCmd.Flags().Int("rounds", 20, "number of ChooseReplicas calls to run")
	benchRLReplCmd.Flags().Int("max-replicas", 4, "max_replicas bound")
}

var benchRLReplCmd = &cobra.Command{
	Use:   "bench-rlrepl",
	Short: "Seed synthetic history and watch RL-Repl's replica-count choices converge",
	RunE:  runBenchRLRepl,
}

func runBenchRLRepl(cmd *cobra.Command, args []string) error {
	rounds, _ := cmd.Flags().GetInt("rounds")
	maxReplicas, _ := cmd.Flags().GetInt("max-replicas")

	db, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	f := feeder.New(db)
	// r=2 is the consistently good choice: clean completions, low wasted
	// energy. r=maxReplicas always burns an extra replica (QoS failure).
	for i := 0; i < 5; i++ {
		if _, err := f.Seed(feeder.Scenario{
			Replicas:                2,
			DelayBound:              86400,
			ResultOutcomes:          []int{store.OutcomeSuccess, store.OutcomeSuccess},
			RoundTripSeconds:        200,
			InitialBatteryChargePct: 90,
			FinalBatteryChargePct:   89,
		}); err != nil {
			return err
		}
		outcomes := make([]int, maxReplicas+1)
		for j := range outcomes {
			outcomes[j] = store.OutcomeFailure
		}
		if _, err := f.Seed(feeder.Scenario{
			Replicas:         maxReplicas,
			DelayBound:       86400,
			ResultOutcomes:   outcomes,
			RoundTripSeconds: 9999,
		}); err != nil {
			return err
		}
	}

	history := store.NewHistoryStore(db)
	engine := rlrepl.New(rlrepl.Default(), history, 1)

	counts := make(map[int]int, maxReplicas)
	for i := 0; i < rounds; i++ {
		reps, _, explorative, err := engine.ChooseReplicas(context.Background(), int64(-(i + 1)), 600, maxReplicas)
		if err != nil {
			return err
		}
		counts[reps]++
		tag := "exploit"
		if explorative {
			tag = "explore"
		}
		fmt.Printf("round %2d: reps=%d (%s)\n", i+1, reps, tag)
	}

	fmt.Println()
	for r := 1; r <= maxReplicas; r++ {
		fmt.Printf("reps=%d chosen %d/%d times\n", r, counts[r], rounds)
	}
	return nil
}
