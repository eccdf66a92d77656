// SPDX-License-Identifier: GPL-3.0-or-later

package sendpipe

import "errors"

// CanSendResult is the result of a can_send query.
type CanSendResult int

const (
	// Success means the peer's queue is empty: a send right now would
	// not block.
	Success CanSendResult = iota
	// Blocked means the peer's queue is non-empty: a send would append
	// to an already-pumping queue rather than go out immediately.
	Blocked
)

// ErrPeerGone is returned by [CanSend] when the named peer has no queue
// at all, meaning its connection has already been torn down.
var ErrPeerGone = errors.New("o2/sendpipe: peer is gone")

// CanSend reports whether sending to q right now would block, or
// ErrPeerGone if q is nil (the caller's registry had no entry for the
// peer).
func CanSend(q *Queue) (CanSendResult, error) {
	if q == nil {
		return Blocked, ErrPeerGone
	}
	if q.Empty() {
		return Success, nil
	}
	return Blocked, nil
}
