// SPDX-License-Identifier: GPL-3.0-or-later

package sched

import "github.com/rbdannenberg/o2go/internal/msg"

// Scheduler owns the local-time and global-time wheels and routes a
// message to whichever one its timestamp addresses: messages built on
// local time (no clock sync needed, used
// for self-triggered callbacks) go to Local; timestamped messages meant
// for the synchronized ensemble clock go to Global.
type Scheduler struct {
	Local  *Wheel
	Global *Wheel
}

// NewScheduler returns a Scheduler with both wheels freshly initialized.
func NewScheduler() *Scheduler {
	return &Scheduler{Local: New(false), Global: New(true)}
}

// ScheduleLocal schedules m on the local-time wheel.
func (s *Scheduler) ScheduleLocal(ts float64, m *msg.Message, now float64, deliver func(*msg.Message) error) error {
	return s.Local.Schedule(ts, m, now, deliver)
}

// ScheduleGlobal schedules m on the global-time wheel, failing with
// [ErrNoClock] if clock sync hasn't locked yet.
func (s *Scheduler) ScheduleGlobal(ts float64, m *msg.Message, now float64, deliver func(*msg.Message) error) error {
	return s.Global.Schedule(ts, m, now, deliver)
}

// PollLocal advances the local wheel to localNow.
func (s *Scheduler) PollLocal(localNow float64, deliver func(*msg.Message) error) error {
	return s.Local.Poll(localNow, deliver)
}

// PollGlobal advances the global wheel to globalNow. It is a no-op
// (returns nil without advancing lastTime) until the global clock locks,
// since there is no valid globalNow to advance to before then.
func (s *Scheduler) PollGlobal(globalNow float64, deliver func(*msg.Message) error) error {
	if !s.Global.ClockReady {
		return nil
	}
	return s.Global.Poll(globalNow, deliver)
}

// StartGlobal marks the global wheel as clock-locked starting at
// referenceNow, called once by clocksync on first lock.
func (s *Scheduler) StartGlobal(referenceNow float64) {
	s.Global.ClockReady = true
	s.Global.lastTime = referenceNow
	s.Global.lastBin = Bin(referenceNow)
}
