//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenDiscoveryUDP binds a UDP socket on port with SO_BROADCAST set, so
// sends to 255.255.255.255 succeed (the default Go UDP socket has it
// clear, and the kernel refuses a broadcast send without it).
func listenDiscoveryUDP(port int) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.ListenPacket(context.Background(), "udp", fmt.Sprintf(":%d", port))
}
