// Package config loads mgesched's TOML configuration file (SPEC_FULL.md
// Ambient stack: Configuration), following the teacher's BurntSushi/toml
// dependency.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// SEAS holds the SEAS engine's tunables (spec.md §4.7.1).
type SEAS struct {
	ResetGapSeconds         int64   `toml:"reset_gap_seconds"`
	ChargeEpsilonPct        float64 `toml:"charge_epsilon_pct"`
	DefaultDischargeRate    float64 `toml:"default_discharge_rate"`
	BackoffAvoidanceEnabled bool    `toml:"backoff_avoidance_enabled"`
}

// RLRepl holds the RL-Repl bandit's tunables (spec.md §4.8).
type RLRepl struct {
	KFactor             float64 `toml:"k_factor"`
	KWastedEnergyImpact float64 `toml:"k_wasted_energy_impact"`
	ExplorativeProb     float64 `toml:"explorative_prob"`
	MaxReplicas         int     `toml:"max_replicas"`
}

// Config is mgesched's top-level configuration.
type Config struct {
	AdminListenAddr   string `toml:"admin_listen_addr"`
	MetricsListenAddr string `toml:"metrics_listen_addr"`
	SQLiteDSN         string `toml:"sqlite_dsn"`
	WorkCacheSlots    int    `toml:"work_cache_slots"`
	Debug             bool   `toml:"debug"`

	SEAS   SEAS   `toml:"seas"`
	RLRepl RLRepl `toml:"rlrepl"`
}

// Default returns production defaults (spec.md §4.7.1/§4.8 constants).
func Default() Config {
	return Config{
		AdminListenAddr:   ":8080",
		MetricsListenAddr: ":9090",
		SQLiteDSN:         "mgesched.db",
		WorkCacheSlots:    1024,
		Debug:             false,
		SEAS: SEAS{
			ResetGapSeconds:         6 * 3600,
			ChargeEpsilonPct:        0.1,
			DefaultDischargeRate:    300,
			BackoffAvoidanceEnabled: true,
		},
		RLRepl: RLRepl{
			KFactor:             10,
			KWastedEnergyImpact: 7,
			ExplorativeProb:     0.2,
			MaxReplicas:         8,
		},
	}
}

// Load reads a TOML file at path and merges it over Default(). A missing
// file is not an error: it returns the defaults unchanged, matching the
// teacher's config layer's "absent config is fine, ship with defaults"
// behavior.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
