// SPDX-License-Identifier: GPL-3.0-or-later

package sendpipe

import "github.com/rbdannenberg/o2go/internal/msg"

// Reentry implements a re-entry gate: while a delivery
// is already in progress, a handler's own send calls are appended to a
// pending list instead of being dispatched immediately; when the
// outermost delivery completes, the pending list is drained in arrival
// order.
type Reentry struct {
	depth   int
	pending []*msg.Message
}

// Enter must be called before beginning a delivery (including the
// outermost one) and paired with a deferred call to Leave.
func (r *Reentry) Enter() {
	r.depth++
}

// Leave ends one delivery. When depth returns to zero, drain is called
// for each message on the accumulated pending list in order (drain may
// itself grow the list by calling Send again, since each drain call runs
// as a delivery in progress); draining continues until the list is
// exhausted.
func (r *Reentry) Leave(drain func(*msg.Message) error) error {
	r.depth--
	if r.depth > 0 {
		return nil
	}
	for len(r.pending) > 0 {
		next := r.pending[0]
		r.pending = r.pending[1:]
		r.depth++
		err := drain(next)
		r.depth--
		if err != nil {
			return err
		}
	}
	return nil
}

// Send either dispatches immediately (deliver) if no delivery is in
// progress, or appends m to the pending list if depth > 0.
func (r *Reentry) Send(m *msg.Message, deliver func(*msg.Message) error) error {
	if r.depth > 0 {
		r.pending = append(r.pending, m)
		return nil
	}
	return deliver(m)
}
