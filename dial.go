// SPDX-License-Identifier: GPL-3.0-or-later
//

package o2

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
	"github.com/rbdannenberg/o2go/internal/errclass"
	"github.com/rbdannenberg/o2go/internal/ioutil"
)

// NewDialFunc returns a new [*DialFunc] wired from cfg.
func NewDialFunc(cfg *Config, logger SLogger) *DialFunc {
	return &DialFunc{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// DialFunc dials the discovery layer's client-role TCP connect: when
// this process is the client (the lesser process name), it connects and
// sends CONNECT. It is the only place in this codebase where a
// [context.Context] governs a connection's lifetime directly: once the
// handshake send that follows a successful dial completes, ownership
// passes to the event loop (internal/iomux), which has no notion of
// context.
type DialFunc struct {
	Dialer        Dialer
	ErrClassifier errclass.ErrClassifier
	Logger        SLogger
	TimeNow       func() time.Time
}

var _ Func[string, net.Conn] = &DialFunc{}

// Call implements [Func] by delegating to DialTCP, so callers that only
// hold a Func[string, net.Conn] can drive a DialFunc without depending
// on its concrete type.
func (d *DialFunc) Call(ctx context.Context, address string) (net.Conn, error) {
	return d.DialTCP(ctx, address)
}

// DialTCP connects to address and wraps the result with
// [ioutil.WatchConnect] so ctx continues to govern the connection until
// the caller is done with the handshake window and lets ctx's deadline
// pass or cancels it explicitly.
func (d *DialFunc) DialTCP(ctx context.Context, address string) (net.Conn, error) {
	t0 := d.TimeNow()
	deadline, _ := ctx.Deadline()
	d.logDialStart(address, t0, deadline)
	conn, err := d.Dialer.DialContext(ctx, "tcp", address)
	d.logDialDone(address, t0, deadline, conn, err)
	if err != nil {
		return nil, err
	}
	return ioutil.WatchConnect(ctx, conn), nil
}

func (d *DialFunc) logDialStart(address string, t0, deadline time.Time) {
	d.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (d *DialFunc) logDialDone(address string, t0, deadline time.Time, conn net.Conn, err error) {
	d.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", d.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", d.TimeNow()),
	)
}
