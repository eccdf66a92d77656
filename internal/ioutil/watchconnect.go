// SPDX-License-Identifier: GPL-3.0-or-later
//

// Package ioutil holds small connection-lifecycle helpers shared by the
// discovery dialer and the blocking branch of the send pipeline.
package ioutil

import (
	"context"
	"net"
)

// WatchConnect binds conn's lifetime to ctx: when ctx is done, conn is
// closed, which unblocks any in-progress read/write immediately instead
// of waiting on the OS's own timeout. This is the one place outside the
// poll loop a context governs a connection directly: the discovery TCP
// dialer accepts a context.Context for the connect step only.
//
// The returned net.Conn wraps conn; closing it unregisters the watcher
// before closing the underlying connection, so it never leaks a
// goroutine even if ctx is never canceled.
func WatchConnect(ctx context.Context, conn net.Conn) net.Conn {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &watchedConn{Conn: conn, stop: stop}
}

type watchedConn struct {
	net.Conn
	stop func() bool
}

func (c *watchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
