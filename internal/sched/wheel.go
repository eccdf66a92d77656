// SPDX-License-Identifier: GPL-3.0-or-later

// Package sched implements a timing-wheel scheduler: a 128-bin array of
// time-ordered message lists, advanced one second at a time so a large
// jump in "now" can never scramble dispatch order by wrapping past an
// unprocessed bin.
package sched

import (
	"errors"

	"github.com/rbdannenberg/o2go/internal/msg"
)

// TableLen is O2_SCHED_TABLE_LEN: the number of bins in a wheel.
const TableLen = 128

// ErrNoClock is returned by [Wheel.Schedule] on the global wheel when no
// clock-sync reference time has been established yet.
var ErrNoClock = errors.New("o2/sched: no clock reference yet")

// entry is one scheduled message, linked in timestamp order within its bin.
type entry struct {
	ts   float64
	m    *msg.Message
	next *entry
}

// Wheel is one timing-wheel instance. An ensemble always runs exactly
// two: one on local time, one on global time.
type Wheel struct {
	bins     [TableLen]*entry
	lastTime float64
	lastBin  int64

	// Global reports whether this wheel requires a clock reference before
	// scheduling a future message (true for the global-time wheel, false
	// for the local-time wheel).
	Global     bool
	ClockReady bool
}

// New returns an empty wheel. Set Global true for the global-time instance.
func New(global bool) *Wheel {
	return &Wheel{Global: global}
}

// Bin computes bin(t) = floor(t*100), a fixed-point bin index before
// wrapping into the table.
func Bin(t float64) int64 {
	if t < 0 {
		return 0
	}
	return int64(t * 100)
}

func binIndex(bin int64) int {
	return int(bin & (TableLen - 1))
}

// Schedule inserts m for delivery at ts, or calls deliver immediately if
// ts is zero or already past. Messages within one bin are kept in
// insertion order among equal timestamps: ties always fire in the order
// they were scheduled.
func (w *Wheel) Schedule(ts float64, m *msg.Message, now float64, deliver func(*msg.Message) error) error {
	if ts == 0 || ts <= now {
		return deliver(m)
	}
	if w.Global && !w.ClockReady {
		return ErrNoClock
	}
	bin := Bin(ts)
	idx := binIndex(bin)
	e := &entry{ts: ts, m: m}
	insertSorted(&w.bins[idx], e)
	return nil
}

// insertSorted splices e into the list pointed to by head, keeping
// ascending timestamp order and preserving relative order among equal
// timestamps (append after the last equal entry, never before).
func insertSorted(head **entry, e *entry) {
	for *head != nil && (*head).ts <= e.ts {
		head = &(*head).next
	}
	e.next = *head
	*head = e
}

// Poll advances the wheel to now, draining every bin from the last
// dispatched bin through bin(now) of messages whose timestamp is <= now,
// re-entering the send path for each via deliver. A jump of more than
// one wheel revolution is handled by iteratively advancing one second
// at a time first, so no bin is ever skipped.
func (w *Wheel) Poll(now float64, deliver func(*msg.Message) error) error {
	for w.lastTime+1 < now {
		if err := w.advance(w.lastTime+1, deliver); err != nil {
			return err
		}
	}
	return w.advance(now, deliver)
}

func (w *Wheel) advance(now float64, deliver func(*msg.Message) error) error {
	targetBin := Bin(now)
	for b := w.lastBin; b <= targetBin; b++ {
		idx := binIndex(b)
		if err := w.drainBin(idx, now, deliver); err != nil {
			return err
		}
	}
	w.lastTime = now
	// Rewind by one bin so a bin holding messages timestamped later within
	// the same bin (not yet <= now) is reconsidered on the next poll.
	w.lastBin = targetBin
	if w.lastBin > 0 {
		w.lastBin--
	}
	return nil
}

// drainBin splits bin idx into due (ts <= now) and not-yet-due messages,
// reinstalls the not-yet-due ones (order preserved), then delivers the
// due ones in order. The bin is left correctly updated even if a
// delivery errors partway through.
func (w *Wheel) drainBin(idx int, now float64, deliver func(*msg.Message) error) error {
	var due []*msg.Message
	var keptHead, keptTail *entry
	for e := w.bins[idx]; e != nil; e = e.next {
		if e.ts <= now {
			due = append(due, e.m)
			continue
		}
		n := &entry{ts: e.ts, m: e.m}
		if keptHead == nil {
			keptHead, keptTail = n, n
		} else {
			keptTail.next = n
			keptTail = n
		}
	}
	w.bins[idx] = keptHead

	for _, m := range due {
		if err := deliver(m); err != nil {
			return err
		}
	}
	return nil
}
