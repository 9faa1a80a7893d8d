package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// historyMigrations returns the read-only workunit/result tables backing
// HistoryStore (spec.md §3, §4.3). In production these mirror BOINC's own
// workunit/result tables; here they are owned by this schema so the store
// can be exercised standalone.
func historyMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS workunit (
			id               INTEGER PRIMARY KEY,
			target_nresults  INTEGER NOT NULL,
			delay_bound      INTEGER NOT NULL,
			mod_time         REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS result (
			id                         INTEGER PRIMARY KEY,
			workunit_id                INTEGER NOT NULL REFERENCES workunit(id),
			host_id                    INTEGER NOT NULL,
			sent_time                  REAL NOT NULL DEFAULT 0,
			received_time              REAL NOT NULL DEFAULT 0,
			initial_battery_charge_pct REAL NOT NULL DEFAULT 0,
			final_battery_charge_pct  REAL NOT NULL DEFAULT 0,
			outcome                    INTEGER NOT NULL DEFAULT 0,
			server_state               INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_result_workunit ON result(workunit_id)`,
		`CREATE INDEX IF NOT EXISTS idx_result_host ON result(host_id, received_time DESC)`,
	}
}

// PastJob is one workunit row relevant to RL-Repl's replica-count scoring
// (spec.md §3 PastJob).
type PastJob struct {
	ID             int64
	TargetNResults int
	DelayBound     int64
	ModTime        float64
}

// PastResult is one result row for a PastJob (spec.md §3 PastResult).
type PastResult struct {
	WorkunitID              int64
	HostID                  int64
	SentTime                float64
	ReceivedTime            float64
	InitialBatteryChargePct float64
	FinalBatteryChargePct   float64
	Outcome                 int
	ServerState             int
}

// Outcome values, mirroring BOINC's RESULT_OUTCOME_* constants (spec.md
// §3 glossary).
const (
	OutcomeSuccess = 1
	OutcomeFailure = 3
)

// HistoryStore is the read-only collaborator (spec.md §4.3, C4) RL-Repl and
// the duration oracle consult for past workunit/result outcomes. It never
// writes.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore returns a HistoryStore over db.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// RecentWorkunitsWithReplication returns up to limit past workunits whose
// target_nresults equals replicas, excluding excludeID, newest first by
// mod_time — the population RL-Repl scores a given replica count against
// (spec.md §4.8, Open Question #1 resolution in DESIGN.md).
func (s *HistoryStore) RecentWorkunitsWithReplication(replicas int, excludeID int64, limit int) ([]PastJob, error) {
	rows, err := s.db.sql.Query(`
		SELECT id, target_nresults, delay_bound, mod_time
		FROM workunit
		WHERE target_nresults = ? AND id != ?
		ORDER BY mod_time DESC
		LIMIT ?
	`, replicas, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent workunits: %w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []PastJob
	for rows.Next() {
		var j PastJob
		if err := rows.Scan(&j.ID, &j.TargetNResults, &j.DelayBound, &j.ModTime); err != nil {
			return nil, fmt.Errorf("store: recent workunits: %w: %v", ErrUnavailable, err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent workunits: %w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// ResultsOf returns every result recorded against workunitID, newest
// received first.
func (s *HistoryStore) ResultsOf(workunitID int64) ([]PastResult, error) {
	rows, err := s.db.sql.Query(`
		SELECT workunit_id, host_id, sent_time, received_time,
		       initial_battery_charge_pct, final_battery_charge_pct,
		       outcome, server_state
		FROM result
		WHERE workunit_id = ?
		ORDER BY received_time DESC
	`, workunitID)
	if err != nil {
		return nil, fmt.Errorf("store: results of %d: %w: %v", workunitID, ErrUnavailable, err)
	}
	defer rows.Close()

	var out []PastResult
	for rows.Next() {
		var r PastResult
		if err := rows.Scan(&r.WorkunitID, &r.HostID, &r.SentTime, &r.ReceivedTime,
			&r.InitialBatteryChargePct, &r.FinalBatteryChargePct, &r.Outcome, &r.ServerState); err != nil {
			return nil, fmt.Errorf("store: results of %d: %w: %v", workunitID, ErrUnavailable, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: results of %d: %w: %v", workunitID, ErrUnavailable, err)
	}
	return out, nil
}

// AvgTurnaround returns the mean received_time-sent_time across hostID's
// completed results, for the duration oracle's authoritative estimate
// (spec.md §4.6). Returns ErrNotFound if the host has no completed results.
func (s *HistoryStore) AvgTurnaround(hostID int64) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.sql.QueryRow(`
		SELECT AVG(received_time - sent_time)
		FROM result
		WHERE host_id = ? AND outcome = ? AND received_time > 0
	`, hostID, OutcomeSuccess).Scan(&avg)
	if errors.Is(err, sql.ErrNoRows) || !avg.Valid {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("store: avg turnaround(%d): %w: %v", hostID, ErrUnavailable, err)
	}
	return avg.Float64, nil
}

// AvgTurnaroundOrZero is AvgTurnaround with errors and "no data" collapsed
// to zero, for callers that treat missing history as a benign fallback
// (spec.md §7: RL-Repl store errors collapse to "no data").
func (s *HistoryStore) AvgTurnaroundOrZero(hostID int64) float64 {
	avg, err := s.AvgTurnaround(hostID)
	if err != nil {
		return 0
	}
	return avg
}
