package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mgesched",
	Short: "Mobile grid extension scheduler (SEAS + RL-Repl)",
	Long: `mgesched schedules jobs to mobile volunteer-compute devices using
SEAS's battery-uptime-aware admission control and RL-Repl's per-replica-count
bandit, over a SQLite-backed workunit/result history.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mgesched.toml", "path to config file")
}
