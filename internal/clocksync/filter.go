// SPDX-License-Identifier: GPL-3.0-or-later

// Package clocksync implements the follower side of clock
// synchronization: a ring of round-trip samples that picks the
// least-noisy offset, and
// the rate-slew state machine that nudges the local-to-global mapping
// toward each new accepted offset instead of jumping.
package clocksync

// HistoryLen is CLOCK_SYNC_HISTORY_LEN.
const HistoryLen = 5

// sample is one ping/pong round-trip observation.
type sample struct {
	rtt    float64
	offset float64 // implied reference-now - local-now
}

// Filter holds the most recent round-trip samples and picks the
// smallest-RTT offset once it has seen HistoryLen of them.
type Filter struct {
	ring  [HistoryLen]sample
	count int
	next  int
}

// Add records one (rtt, offset) sample. It reports the chosen offset and
// true once the ring has filled for the first time (and on every sample
// after); before that it reports (0, false): samples are ignored until
// the ring fills.
func (f *Filter) Add(rtt, offset float64) (float64, bool) {
	f.ring[f.next] = sample{rtt: rtt, offset: offset}
	f.next = (f.next + 1) % HistoryLen
	if f.count < HistoryLen {
		f.count++
	}
	if f.count < HistoryLen {
		return 0, false
	}
	best := f.ring[0]
	for _, s := range f.ring[1:] {
		if s.rtt < best.rtt {
			best = s
		}
	}
	return best.offset, true
}

// Reset clears all recorded samples, used when a follower re-syncs to a
// new reference process.
func (f *Filter) Reset() {
	*f = Filter{}
}
