package store

import "errors"

// Sentinel error kinds (spec.md §7): callers decide recovery by kind, not
// by inspecting driver-specific error values.
var (
	// ErrNotFound is benign for HostStatusStore.Get.
	ErrNotFound = errors.New("store: host status row not found")

	// ErrConflict is benign for HostStatusStore.Ensure (row already exists).
	ErrConflict = errors.New("store: row already exists")

	// ErrUnavailable wraps a failure to reach the underlying database.
	ErrUnavailable = errors.New("store: unavailable")
)
