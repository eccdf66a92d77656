// SPDX-License-Identifier: GPL-3.0-or-later

package clocksync

// NextPingDelay returns the delay before the next "/_cs/get" ping given
// how many pings have been sent so far and how long synchronization has
// been running: every 0.1s for the first HistoryLen pings, then every
// 0.5s until 5s elapsed, then every 10s.
func NextPingDelay(pingsSent int, elapsed float64) float64 {
	switch {
	case pingsSent < HistoryLen:
		return 0.1
	case elapsed < 5:
		return 0.5
	default:
		return 10
	}
}
