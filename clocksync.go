// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"github.com/rbdannenberg/o2go/internal/clocksync"
	"github.com/rbdannenberg/o2go/internal/directory"
	"github.com/rbdannenberg/o2go/internal/msg"
)

// ClockSet makes this process the ensemble's clock reference: it starts
// its own global scheduler immediately (a reference is synchronized to
// itself by definition) and publishes a
// "_cs" service so followers learn, via the ordinary "/_o2/sv"
// mechanism, that a reference now exists and they should start pinging
// it. Calling it again once already the reference is a no-op.
func (e *Ensemble) ClockSet() error {
	if e.Clock.Role == clocksync.RoleReference {
		return nil
	}
	e.Clock = clocksync.NewReference()
	e.Sched.StartGlobal(e.localNowSeconds())
	return e.CreateServiceHandler("_cs", e.handleClockGet, nil)
}

// TimeGet returns this process's current best estimate of the
// ensemble's global time, and false if clock sync hasn't locked yet.
func (e *Ensemble) TimeGet() (float64, bool) {
	return e.Clock.GlobalNow(e.localNowSeconds())
}

// handleClockGet is registered against the local "_cs" service purely so
// it shows up as a directory provider and gets announced to peers.
// Incoming "/_cs/get" pings never actually reach it: recvStream
// intercepts that address directly, because the reply has to go back
// over the requester's own TCP connection rather than through
// directory-resolved addressing (see DESIGN.md).
func (e *Ensemble) handleClockGet(*Message, any) error {
	return nil
}

// handlePingTimer is the follower side of the ping loop: the
// self-rescheduling local "/_o2/ps" message. It is harmless to run
// even before a reference is known; it simply reschedules without
// sending anything until [Ensemble.applyRemoteServiceChange] sees a
// "_cs" service appear.
func (e *Ensemble) handlePingTimer(_ *Message, _ any) error {
	if e.referenceName != "" {
		if err := e.sendClockPing(); err != nil {
			e.logger.Debug("o2 clock ping failed", "err", err)
		}
	}
	return e.scheduleNextPing()
}

func (e *Ensemble) scheduleNextPing() error {
	now := e.localNowSeconds()
	elapsed := now - e.Clock.StartedAt
	delay := clocksync.NextPingDelay(e.Clock.PingsSent, elapsed)
	var b msg.Builder
	b.Start()
	m, err := b.Finish(0, "_o2", "/ps", false)
	if err != nil {
		return err
	}
	return e.Sched.ScheduleLocal(now+delay, m, now, e.deliverEntry)
}

// sendClockPing sends one "/_cs/get" ping to the current reference,
// recording when it was sent so the matching pong can compute round
// trip time.
func (e *Ensemble) sendClockPing() error {
	id := e.pingNextID
	e.pingNextID++
	var b msg.Builder
	b.Start()
	if err := b.AddInt32(id); err != nil {
		return err
	}
	m, err := b.Finish(0, "_cs", "/get", true)
	if err != nil {
		return err
	}
	e.pingSentAt[id] = e.localNowSeconds()
	e.Clock.PingsSent++
	return e.sendControlTo(e.referenceName, m)
}

// handleClockPing is the reference side of "/_cs/get": reply at once
// with our own current time so the follower can estimate round trip.
func (e *Ensemble) handleClockPing(fromPeer string, m *msg.Message) error {
	var ext msg.Extractor
	ext.Reset(m)
	idArg, err := ext.Next('i')
	if err != nil {
		return nil
	}
	var b msg.Builder
	b.Start()
	if err := b.AddInt32(idArg.I32); err != nil {
		return err
	}
	if err := b.AddFloat64(e.localNowSeconds()); err != nil {
		return err
	}
	reply, err := b.Finish(0, "_o2", "/cs/pong", true)
	if err != nil {
		return err
	}
	return e.sendControlTo(fromPeer, reply)
}

// handleClockPong is the follower side of "/_o2/cs/pong": compute round
// trip time and the implied global time, then fold the sample into the
// clock filter.
func (e *Ensemble) handleClockPong(fromPeer string, m *msg.Message) error {
	if fromPeer != e.referenceName {
		return nil
	}
	var ext msg.Extractor
	ext.Reset(m)
	idArg, err := ext.Next('i')
	if err != nil {
		return nil
	}
	refNowArg, err := ext.Next('d')
	if err != nil {
		return nil
	}

	sentAt, ok := e.pingSentAt[idArg.I32]
	if !ok {
		return nil
	}
	delete(e.pingSentAt, idArg.I32)

	now := e.localNowSeconds()
	rtt := now - sentAt
	impliedGlobal := refNowArg.F64 + rtt/2

	notice := e.Clock.AcceptPong(rtt, impliedGlobal, now)
	if notice != nil {
		e.onClockLocked(notice)
	}
	return nil
}

// onClockLocked runs once, the poll cycle synchronization first locks:
// it starts the global scheduler at the reference's clock, tells every
// connected peer we're synced, and recomputes "/_o2/si" status for every
// service, since StatusOf depends on whether this process has a working
// clock.
func (e *Ensemble) onClockLocked(notice *clocksync.LockNotice) {
	e.Sched.StartGlobal(notice.ReferenceNow)
	if err := e.announceSynced(); err != nil {
		e.logger.Debug("o2 announcing clock sync failed", "err", err)
	}
	e.recomputeAllStatuses()
}

// announceSynced broadcasts "/_o2/cs/cs" to every connected peer so they
// can recompute the status of services this process provides.
func (e *Ensemble) announceSynced() error {
	for peerName := range e.peerConnIndex {
		var b msg.Builder
		b.Start()
		if err := b.AddString(e.selfName); err != nil {
			return err
		}
		m, err := b.Finish(0, "_o2", "/cs/cs", true)
		if err != nil {
			return err
		}
		if err := e.sendControlTo(peerName, m); err != nil {
			e.logger.Debug("o2 announcing clock sync failed", "peer", peerName, "err", err)
		}
	}
	return nil
}

// handlePeerSynced applies an incoming "/_o2/cs/cs" announcement: mark
// the announcing process as clock-synced and recompute the status of
// every service it provides.
func (e *Ensemble) handlePeerSynced(m *msg.Message) error {
	var ext msg.Extractor
	ext.Reset(m)
	nameArg, err := ext.Next('s')
	if err != nil {
		return nil
	}
	proc, ok := e.Dir.Processes.Get(nameArg.Str)
	if !ok {
		return nil
	}
	proc.ClockSynced = true
	e.recomputeServiceStatusesFor(nameArg.Str)
	return nil
}

func (e *Ensemble) recomputeAllStatuses() {
	var names []string
	e.Dir.Services.Each(func(name string, _ *directory.ServiceEntry) { names = append(names, name) })
	for _, name := range names {
		e.noteServiceChange(name, true)
	}
}

func (e *Ensemble) recomputeServiceStatusesFor(processName string) {
	var names []string
	e.Dir.Services.Each(func(name string, entry *directory.ServiceEntry) {
		if active := entry.Active(); active != nil && active.ProcessName == processName {
			names = append(names, name)
		}
	})
	for _, name := range names {
		e.noteServiceChange(name, true)
	}
}
