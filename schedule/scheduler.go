// Package schedule implements the recurring random-interval trigger for
// automated sends.
//
// The scheduler is a two-state machine (disabled, armed) driven by an
// external periodic tick instead of its own timer. That keeps the
// "disabling mid-cycle abandons the pending fire" rule explicit: the owner
// calls Due on every tick and Advance after each fire; nothing fires from
// inside this package.
package schedule

import (
	"math/rand/v2"
	"time"
)

// Scheduler tracks the armed flag, interval bounds, and the pending fire
// time. It is confined to the hub goroutine and holds no locks.
type Scheduler struct {
	armed  bool
	minSec uint
	maxSec uint
	next   time.Time
	last   time.Time
	rng    *rand.Rand
}

// New returns a disabled scheduler with the given interval bounds in seconds.
func New(minSec, maxSec uint) *Scheduler {
	return &Scheduler{
		minSec: minSec,
		maxSec: maxSec,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Arm enables the schedule and rolls the first fire time from now.
func (s *Scheduler) Arm(now time.Time) {
	s.armed = true
	s.reschedule(now)
}

// Disarm disables the schedule and abandons any pending fire.
func (s *Scheduler) Disarm() {
	s.armed = false
	s.next = time.Time{}
}

func (s *Scheduler) Armed() bool {
	return s.armed
}

// SetInterval updates the bounds. A pending fire keeps its already-rolled
// time; the new bounds take effect at the next reschedule.
func (s *Scheduler) SetInterval(minSec, maxSec uint) {
	s.minSec = minSec
	s.maxSec = maxSec
}

// Interval returns the configured bounds in seconds.
func (s *Scheduler) Interval() (minSec, maxSec uint) {
	return s.minSec, s.maxSec
}

// Due reports whether a tick at now should trigger a fire.
func (s *Scheduler) Due(now time.Time) bool {
	return s.armed && !s.next.IsZero() && !now.Before(s.next)
}

// Advance records a completed (or forced) fire cycle: it stamps lastFire and
// re-rolls the next fire time iff still armed. The interval is re-rolled
// every cycle, never fixed.
func (s *Scheduler) Advance(now time.Time) {
	s.last = now
	if s.armed {
		s.reschedule(now)
	} else {
		s.next = time.Time{}
	}
}

// NextIn returns the remaining wait before the pending fire. ok is false
// when the scheduler is disabled.
func (s *Scheduler) NextIn(now time.Time) (time.Duration, bool) {
	if !s.armed || s.next.IsZero() {
		return 0, false
	}
	d := s.next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// LastFire returns when the schedule last fired (zero if never).
func (s *Scheduler) LastFire() time.Time {
	return s.last
}

// reschedule rolls next = now + uniform(minSec, maxSec), clamping a reversed
// range instead of panicking.
func (s *Scheduler) reschedule(now time.Time) {
	min, max := s.minSec, s.maxSec
	if max < min {
		min, max = max, min
	}
	sec := min
	if span := max - min; span > 0 {
		sec += uint(s.rng.Uint64N(uint64(span) + 1))
	}
	s.next = now.Add(time.Duration(sec) * time.Second)
}
