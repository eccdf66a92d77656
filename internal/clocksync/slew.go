// SPDX-License-Identifier: GPL-3.0-or-later

package clocksync

// Slew holds a follower's local-time-to-global-time mapping: a
// (base-local, base-global, rate) anchor plus a pending "restore rate to
// 1" callback, implementing the jump/slew state machine.
type Slew struct {
	baseLocal  float64
	baseGlobal float64
	rate       float64

	restoreGen     int
	restorePending bool
	restoreDue     float64
	restoreActive  int // generation the pending restore belongs to
}

// Lock anchors the mapping at (localNow, referenceNow) with rate 1,
// called once on first lock.
func (s *Slew) Lock(localNow, referenceNow float64) {
	s.baseLocal = localNow
	s.baseGlobal = referenceNow
	s.rate = 1
	s.restorePending = false
}

// Rate returns the current slew rate.
func (s *Slew) Rate() float64 { return s.rate }

// Estimate returns the current estimated global time given localNow.
func (s *Slew) Estimate(localNow float64) float64 {
	return s.baseGlobal + (localNow-s.baseLocal)*s.rate
}

// Update applies a new accepted sample: impliedGlobal is the global time
// implied by the sample (reference-now + rtt/2 style offset already
// folded in by the caller), observed at sampleLocalNow. It returns the
// new rate and, if a restore-to-1 callback was scheduled, the local time
// at which [Slew.Tick] should apply it.
func (s *Slew) Update(sampleLocalNow, impliedGlobal float64) (rate float64, restoreDue float64, hasRestore bool) {
	estimate := s.Estimate(sampleLocalNow)
	advance := impliedGlobal - estimate

	s.restoreGen++
	s.restorePending = false

	switch {
	case advance > 1:
		s.baseLocal = sampleLocalNow
		s.baseGlobal = impliedGlobal
		s.rate = 1
	case advance > 0:
		s.rate = 1.1
		s.scheduleRestore(sampleLocalNow + advance*10)
	case advance > -1:
		s.rate = 0.9
		s.scheduleRestore(sampleLocalNow + (-advance)*10)
	default:
		s.rate = 0
	}

	if s.restorePending {
		return s.rate, s.restoreDue, true
	}
	return s.rate, 0, false
}

func (s *Slew) scheduleRestore(due float64) {
	s.restorePending = true
	s.restoreDue = due
	s.restoreActive = s.restoreGen
}

// Tick restores rate to 1 if a pending restore is due at or before
// localNow and no newer [Slew.Update] call has superseded it: a
// cancellation id on each rate-restore callback ensures that newer
// updates invalidate older pending restores.
func (s *Slew) Tick(localNow float64) {
	if !s.restorePending || s.restoreActive != s.restoreGen || localNow < s.restoreDue {
		return
	}
	s.rate = 1
	s.restorePending = false
}
