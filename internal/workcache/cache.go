// Package workcache implements the shared WorkCache (spec.md §4.4, C5): a
// fixed-size array of candidate-job slots, guarded by a single mutex, fed by
// an external feeder and drained by concurrent scheduler workers.
package workcache

import (
	"errors"
	"sync"

	"golang.org/x/exp/rand"
)

// SlotState is a slot's position in the EMPTY -> PRESENT -> CLAIMED(pid)
// state machine.
type SlotState int

const (
	Empty SlotState = iota
	Present
	Claimed
)

func (s SlotState) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Present:
		return "PRESENT"
	case Claimed:
		return "CLAIMED"
	default:
		return "UNKNOWN"
	}
}

// Job is the immutable-per-occupancy payload of a slot.
type Job struct {
	WorkunitID     int64
	AppID          int64
	ResultID       int64
	ServerState    int
	Priority       int
	ReportDeadline float64
}

// Slot is one entry in the shared candidate-job cache.
type Slot struct {
	state SlotState
	job   Job
	owner int // claiming pid; meaningful only while state == Claimed
}

var (
	// ErrNotPresent names the "slot not PRESENT" condition. No Cache method
	// returns it: TryClaim reports that case by returning false.
	ErrNotPresent = errors.New("workcache: slot not present")
	// ErrWrongOwner is returned by Release/Restore when pid does not hold
	// the claim — a programmer error, since claims are never shared.
	ErrWrongOwner = errors.New("workcache: pid does not own claim")
)

// Cache is the fixed-size slot array (spec.md §4.4). All fields are guarded
// by mu; the mutex is held only across a fast check and a state transition,
// never across database or other blocking work.
type Cache struct {
	mu    sync.Mutex
	slots []Slot
	rng   *rand.Rand
}

// New returns a Cache with size empty slots. rngSeed seeds the scan-offset
// generator; callers that want determinism in tests pass a fixed seed.
func New(size int, rngSeed uint64) *Cache {
	return &Cache{
		slots: make([]Slot, size),
		rng:   rand.New(rand.NewSource(rngSeed)),
	}
}

// Size returns the number of slots.
func (c *Cache) Size() int { return len(c.slots) }

// Fill writes job into slot i if it is EMPTY, transitioning it to PRESENT.
// The feeder calls this; it never overwrites a CLAIMED slot (invariant b).
func (c *Cache) Fill(i int, job Job) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slots[i].state != Empty {
		return false
	}
	c.slots[i] = Slot{state: Present, job: job}
	return true
}

// ScanOffset returns a random starting offset in [0, Size()) for a per-
// request scan (spec.md §4.4 scan discipline).
func (c *Cache) ScanOffset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.slots) == 0 {
		return 0
	}
	return c.rng.Intn(len(c.slots))
}

// TryClaim attempts to move slot i from PRESENT to CLAIMED(pid), returning
// a copy of the job and true on success. Holds the mutex only for the
// fast check and the transition itself — callers must not do blocking work
// while "inside" this call, and indeed can't: it never blocks.
func (c *Cache) TryClaim(i int, pid int) (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.slots[i]
	if s.state != Present {
		return Job{}, false
	}
	s.state = Claimed
	s.owner = pid
	return s.job, true
}

// Release transitions slot i from CLAIMED(pid) back to EMPTY — the
// scheduler's "no_any" outcome (spec.md §4.5), or the success path once the
// job has been copied into the reply (invariant c: copy before publishing
// EMPTY is the caller's responsibility, since TryClaim already returned the
// copy).
func (c *Cache) Release(i int, pid int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.slots[i]
	if s.state != Claimed || s.owner != pid {
		return ErrWrongOwner
	}
	*s = Slot{state: Empty}
	return nil
}

// Restore transitions slot i from CLAIMED(pid) back to PRESENT — the
// scheduler's "no_host" soft-reject outcome, making the slot available to
// the next scheduler invocation.
func (c *Cache) Restore(i int, pid int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.slots[i]
	if s.state != Claimed || s.owner != pid {
		return ErrWrongOwner
	}
	job := s.job
	*s = Slot{state: Present, job: job}
	return nil
}

// State returns the current state and, if Claimed, the owning pid.
func (c *Cache) State(i int) (SlotState, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[i].state, c.slots[i].owner
}

// Peek returns a copy of slot i's job if it is PRESENT, without claiming it.
// Scan predicates (fast_check, duration estimation) run against this copy
// before the mutex is reacquired for the actual claim (spec.md §4.4).
func (c *Cache) Peek(i int) (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slots[i].state != Present {
		return Job{}, false
	}
	return c.slots[i].job, true
}

// Counts returns the number of slots in each state, for the /debug/workcache
// admin endpoint and the mgesched_workcache_slots gauge.
func (c *Cache) Counts() (empty, present, claimed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		switch s.state {
		case Empty:
			empty++
		case Present:
			present++
		case Claimed:
			claimed++
		}
	}
	return
}
