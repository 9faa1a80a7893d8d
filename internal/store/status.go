package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mge-net/mgesched/internal/device"
)

// hostStatusMigrations returns the device_status table definition from
// spec.md §6: one row per host id, a copy of the last reported DeviceStatus
// plus the opaque SchedBlob and a last-update timestamp.
func hostStatusMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS device_status (
			host_id                     INTEGER PRIMARY KEY,
			on_ac_power                 INTEGER NOT NULL DEFAULT 0,
			on_usb_power                INTEGER NOT NULL DEFAULT 0,
			battery_charge_pct          REAL NOT NULL DEFAULT 0,
			battery_state               INTEGER NOT NULL DEFAULT 0,
			battery_temperature_celsius REAL NOT NULL DEFAULT 0,
			wifi_online                 INTEGER NOT NULL DEFAULT 0,
			user_active                 INTEGER NOT NULL DEFAULT 0,
			last_update_time            REAL NOT NULL DEFAULT 0,
			mge_sched_data              TEXT NOT NULL DEFAULT ''
		)`,
	}
}

// HostStatusRow is one device_status row (spec.md §3 HostStatusRow): the
// last reported DeviceStatus plus the opaque SchedBlob envelope.
type HostStatusRow struct {
	HostID         int64
	Status         device.Status
	SchedData      string // base64 SchedBlob envelope, opaque to this store
	LastUpdateTime float64
}

// HostStatusStore implements spec.md §4.2 (C3): at most one row per host,
// lazily created, updated at the end of every request, never deleted.
type HostStatusStore struct {
	db *DB
}

// NewHostStatusStore returns a HostStatusStore over db.
func NewHostStatusStore(db *DB) *HostStatusStore {
	return &HostStatusStore{db: db}
}

// Get returns the row for hostID, or ErrNotFound if none exists.
func (s *HostStatusStore) Get(hostID int64) (HostStatusRow, error) {
	var row HostStatusRow
	var onAC, onUSB, wifi, active int
	row.HostID = hostID
	err := s.db.sql.QueryRow(`
		SELECT on_ac_power, on_usb_power, battery_charge_pct, battery_state,
		       battery_temperature_celsius, wifi_online, user_active,
		       last_update_time, mge_sched_data
		FROM device_status WHERE host_id = ?
	`, hostID).Scan(
		&onAC, &onUSB, &row.Status.BatteryChargePct, &row.Status.BatteryState,
		&row.Status.BatteryTemperatureCelsius, &wifi, &active,
		&row.LastUpdateTime, &row.SchedData,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return HostStatusRow{}, ErrNotFound
	}
	if err != nil {
		return HostStatusRow{}, fmt.Errorf("store: get(%d): %w: %v", hostID, ErrUnavailable, err)
	}
	row.Status.OnACPower = onAC != 0
	row.Status.OnUSBPower = onUSB != 0
	row.Status.WifiOnline = wifi != 0
	row.Status.UserActive = active != 0
	return row, nil
}

// Ensure creates an empty row for hostID if one does not already exist.
// Returns ErrConflict if a row is already present — benign, per spec.md §7.
func (s *HostStatusStore) Ensure(hostID int64) error {
	res, err := s.db.sql.Exec(`
		INSERT OR IGNORE INTO device_status (host_id) VALUES (?)
	`, hostID)
	if err != nil {
		return fmt.Errorf("store: ensure(%d): %w: %v", hostID, ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: ensure(%d): %w: %v", hostID, ErrUnavailable, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Upsert writes row, creating it if absent. The store guarantees that once
// Upsert returns nil, the next Get observes the new values (spec.md §4.2).
func (s *HostStatusStore) Upsert(row HostStatusRow) error {
	_, err := s.db.sql.Exec(`
		INSERT INTO device_status (
			host_id, on_ac_power, on_usb_power, battery_charge_pct, battery_state,
			battery_temperature_celsius, wifi_online, user_active,
			last_update_time, mge_sched_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(host_id) DO UPDATE SET
			on_ac_power                 = excluded.on_ac_power,
			on_usb_power                = excluded.on_usb_power,
			battery_charge_pct          = excluded.battery_charge_pct,
			battery_state               = excluded.battery_state,
			battery_temperature_celsius = excluded.battery_temperature_celsius,
			wifi_online                 = excluded.wifi_online,
			user_active                 = excluded.user_active,
			last_update_time            = excluded.last_update_time,
			mge_sched_data              = excluded.mge_sched_data
	`,
		row.HostID, boolInt(row.Status.OnACPower), boolInt(row.Status.OnUSBPower),
		row.Status.BatteryChargePct, row.Status.BatteryState,
		row.Status.BatteryTemperatureCelsius, boolInt(row.Status.WifiOnline),
		boolInt(row.Status.UserActive), row.LastUpdateTime, row.SchedData,
	)
	if err != nil {
		return fmt.Errorf("store: upsert(%d): %w: %v", row.HostID, ErrUnavailable, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
