//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"fmt"
	"net"
)

// listenDiscoveryUDP binds a plain UDP socket on port. Windows UDP sockets
// allow a broadcast send without an explicit SO_BROADCAST opt-in, unlike
// BSD-derived stacks, so no socket option is required here.
func listenDiscoveryUDP(port int) (net.PacketConn, error) {
	return net.ListenPacket("udp", fmt.Sprintf(":%d", port))
}
