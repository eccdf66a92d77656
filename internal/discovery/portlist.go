// SPDX-License-Identifier: GPL-3.0-or-later

// Package discovery implements the peer-discovery protocol: the fixed
// UDP port list, the broadcast backoff schedule, discovery message
// encoding, and the INFO/HUB/REPLY/CALLBACK/CONNECT handshake decision
// logic. Actual socket I/O is performed by the top-level package's event
// loop; this package is pure protocol state.
package discovery

// Ports is the fixed, ordered list of 16 UDP discovery ports. A process
// binds the first one it can and broadcasts round-robin across ports
// 0..N of this list (N = its own bound index), guaranteeing that between
// any two processes at indices M and N, the one with the higher index
// reaches the other's port.
var Ports = [16]int{
	64541, 60238, 57143, 55764, 56975, 62711, 57571, 53472,
	51779, 63714, 53304, 61696, 50665, 49404, 64828, 54859,
}

// DefaultDiscoveryPeriod is the cap the broadcast interval multiplies up
// to.
const DefaultDiscoveryPeriod = 4.0

// InitialDiscoveryPeriod is the first broadcast interval, before the
// 1.1x-per-cycle backoff begins.
const InitialDiscoveryPeriod = 0.133

// BackoffMultiplier is applied to the broadcast interval every cycle
// until it reaches [DefaultDiscoveryPeriod].
const BackoffMultiplier = 1.1

// NextInterval returns the next broadcast interval given the current
// one, capped at DefaultDiscoveryPeriod.
func NextInterval(current float64) float64 {
	next := current * BackoffMultiplier
	if next > DefaultDiscoveryPeriod {
		return DefaultDiscoveryPeriod
	}
	return next
}

// RoundRobin advances the round-robin index used to pick which of ports
// 0..boundIndex to broadcast to next, per the formula
// next = (next + 1) % (boundIndex + 1).
func RoundRobin(current, boundIndex int) int {
	return (current + 1) % (boundIndex + 1)
}
