// SPDX-License-Identifier: GPL-3.0-or-later

package clocksync

// Role distinguishes the one process that called clock_set (Reference)
// from every other process (Follower).
type Role int

const (
	RoleNone Role = iota
	RoleReference
	RoleFollower
)

// LockNotice is delivered once, on first lock, so the owner can publish
// "/_o2/cs/cs" and recompute "/_o2/si" status for every service.
type LockNotice struct {
	ReferenceNow float64
}

// Clock is one process's clock-sync state: a role, a round-trip filter,
// and (for followers) the rate-slew mapping.
type Clock struct {
	Role     Role
	Synced   bool
	Filter   Filter
	Slew     Slew
	PingsSent int
	StartedAt float64 // local time sync began, for NextPingDelay's elapsed calc
}

// NewFollower returns a Clock in the follower role, not yet synced.
func NewFollower() *Clock {
	return &Clock{Role: RoleFollower}
}

// NewReference returns a Clock in the reference role. A reference is
// considered synced to itself from the start: its own clock is the
// ensemble's global time.
func NewReference() *Clock {
	return &Clock{Role: RoleReference, Synced: true}
}

// AcceptPong folds in one ping/pong round-trip sample. rtt is the
// measured round-trip time; impliedGlobal is the reference time implied
// by the pong, adjusted for half the round trip; sampleLocalNow is this
// process's local clock when the pong arrived. It returns a non-nil
// *LockNotice exactly once: the poll cycle on which synchronization
// first locks.
func (c *Clock) AcceptPong(rtt, impliedGlobal, sampleLocalNow float64) *LockNotice {
	offset := impliedGlobal - sampleLocalNow
	chosenOffset, ready := c.Filter.Add(rtt, offset)
	if !ready {
		return nil
	}
	chosenGlobal := sampleLocalNow + chosenOffset

	if !c.Synced {
		c.Slew.Lock(sampleLocalNow, chosenGlobal)
		c.Synced = true
		return &LockNotice{ReferenceNow: chosenGlobal}
	}

	c.Slew.Update(sampleLocalNow, chosenGlobal)
	return nil
}

// GlobalNow returns this process's best estimate of the ensemble's
// global time. For a reference it is localNow verbatim; for a
// synchronized follower it applies the slew mapping; for an unsynced
// follower it returns false.
func (c *Clock) GlobalNow(localNow float64) (float64, bool) {
	if !c.Synced {
		return 0, false
	}
	if c.Role == RoleReference {
		return localNow, true
	}
	c.Slew.Tick(localNow)
	return c.Slew.Estimate(localNow), true
}
