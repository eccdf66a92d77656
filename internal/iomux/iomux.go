// SPDX-License-Identifier: GPL-3.0-or-later

// Package iomux implements the socket event loop: a single poll cycle
// that services UDP recv, UDP send, TCP listen, TCP connect, and TCP
// stream sockets, plus a deferred-close list so a handler can tear down
// a socket mid-cycle without invalidating the slice the cycle is
// iterating.
//
// A classic event loop polls raw file descriptors with a zero timeout.
// Go has no portable non-blocking multi-fd poll primitive exposed at
// this level, so each registered socket owns one goroutine doing a
// blocking read (or accept, or dial) and posting what it saw to a
// shared, buffered events channel; [Loop.Cycle] then drains whatever is
// already buffered, non-blockingly, which is the channel equivalent of
// querying readiness with a zero timeout. Everything that touches
// directory/dispatcher/scheduler state still only ever runs on the
// single goroutine that calls Cycle, preserving a single-threaded
// cooperative model.
package iomux

import (
	"context"
	"encoding/binary"
	"net"

	"github.com/rbdannenberg/o2go/internal/sendpipe"
)

// Logger is the subset of logging behavior iomux needs; satisfied
// structurally by the top-level package's SLogger (and by *slog.Logger),
// without iomux importing the top-level package and creating a cycle.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// ErrClassifier is the subset of error classification iomux needs,
// satisfied structurally by internal/errclass.ErrClassifier.
type ErrClassifier interface {
	Classify(err error) string
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}

type discardClassifier struct{}

func (discardClassifier) Classify(error) string { return "" }

// Tag discriminates the five socket roles, plus Closed for an info
// awaiting removal.
type Tag int

const (
	TagUDPServer Tag = iota
	TagTCPServer
	TagTCPConnecting
	TagTCPClient
	TagTCPAccepted
	TagClosed
)

// Info is the per-socket record the event loop keeps, keyed by the same
// index across its lifetime: a tag, the local port, a partially-received
// incoming stream buffer, and (for TCP) the outgoing queue the send
// pipeline pumps.
type Info struct {
	Tag       Tag
	LocalPort int

	// Index is this info's position in the loop's info array, the same
	// value Loop.register returned when it was created. Callbacks that
	// need to correlate a socket event back to application-level state
	// (e.g. which peer process owns this connection) key off this rather
	// than comparing *Info pointers, since RegisterTCPConnecting's info
	// is reused in place on connect rather than replaced.
	Index int

	conn     net.Conn
	packet   net.PacketConn
	listener net.Listener

	// ServerIndex names the TagTCPServer info this accepted connection
	// came from, so closing the server cascades into closing every
	// connection it accepted.
	ServerIndex int

	Queue   *sendpipe.Queue
	partial []byte

	markedDelete bool
	closed       bool
}

// Conn returns the underlying net.Conn for TCP-tagged infos, or nil.
func (info *Info) Conn() net.Conn { return info.conn }

// PacketConn returns the underlying net.PacketConn for a UDP server, or nil.
func (info *Info) PacketConn() net.PacketConn { return info.packet }

type eventKind int

const (
	eventReadable eventKind = iota
	eventAcceptable
	eventConnected
	eventError
)

type event struct {
	index    int
	kind     eventKind
	data     []byte
	from     net.Addr
	accepted net.Conn
	err      error
}

// Callbacks are the four callouts the event loop exposes to higher
// layers: recv, accept, connected, close.
type Callbacks interface {
	Recv(info *Info, data []byte, from net.Addr) error
	Accept(server *Info, accepted *Info) error
	Connected(info *Info) error
	Close(info *Info) error
}

// Loop owns the parallel info array and the shared events channel every
// registered socket's goroutine posts to.
type Loop struct {
	infos         []*Info
	events        chan event
	logger        Logger
	errClassifier ErrClassifier
}

// New returns an empty Loop. A nil logger/classifier is replaced with a
// discarding default, matching the ambient-stack convention of silent
// unless explicitly wired (the ambient logging convention).
func New(logger Logger, errClassifier ErrClassifier) *Loop {
	if logger == nil {
		logger = discardLogger{}
	}
	if errClassifier == nil {
		errClassifier = discardClassifier{}
	}
	return &Loop{
		events:        make(chan event, 256),
		logger:        logger,
		errClassifier: errClassifier,
	}
}

func (l *Loop) register(info *Info) int {
	idx := len(l.infos)
	info.Index = idx
	l.infos = append(l.infos, info)
	return idx
}

// Info returns the registered info at idx, or nil if out of range or
// already freed.
func (l *Loop) Info(idx int) *Info {
	if idx < 0 || idx >= len(l.infos) {
		return nil
	}
	return l.infos[idx]
}

// RegisterUDPServer adds a bound UDP [net.PacketConn] and starts its
// receive goroutine.
func (l *Loop) RegisterUDPServer(conn net.PacketConn, localPort int) int {
	info := &Info{Tag: TagUDPServer, LocalPort: localPort, packet: conn}
	idx := l.register(info)
	go l.udpReadLoop(idx, conn)
	return idx
}

// RegisterTCPServer adds a listening [net.Listener] and starts its
// accept goroutine.
func (l *Loop) RegisterTCPServer(ln net.Listener, localPort int) int {
	info := &Info{Tag: TagTCPServer, LocalPort: localPort, listener: ln}
	idx := l.register(info)
	go l.acceptLoop(idx, ln)
	return idx
}

// RegisterTCPAccepted adds an already-accepted TCP connection, tagged
// TagTCPAccepted and owned by serverIdx, and starts its read/queue
// goroutine.
func (l *Loop) RegisterTCPAccepted(conn net.Conn, serverIdx int) int {
	info := &Info{Tag: TagTCPAccepted, conn: conn, ServerIndex: serverIdx, Queue: &sendpipe.Queue{}}
	idx := l.register(info)
	go l.streamReadLoop(idx, conn)
	return idx
}

// RegisterTCPConnecting starts an asynchronous dial and reports
// completion as a connected/error event on a future Cycle, matching
// step 4 ("for each writable descriptor that is a connecting TCP
// socket, promote it to connected and notify the discovery layer").
func (l *Loop) RegisterTCPConnecting(ctx context.Context, dial func(context.Context) (net.Conn, error)) int {
	info := &Info{Tag: TagTCPConnecting}
	idx := l.register(info)
	go func() {
		conn, err := dial(ctx)
		if err != nil {
			l.events <- event{index: idx, kind: eventError, err: err}
			return
		}
		l.events <- event{index: idx, kind: eventConnected, accepted: conn}
	}()
	return idx
}

// RegisterTCPClient adds an already-established outgoing TCP connection
// (post-dial, outside the async path above) directly as TagTCPClient.
func (l *Loop) RegisterTCPClient(conn net.Conn) int {
	info := &Info{Tag: TagTCPClient, conn: conn, Queue: &sendpipe.Queue{}}
	idx := l.register(info)
	go l.streamReadLoop(idx, conn)
	return idx
}

// MarkForDelete schedules idx for close on the next (or current)
// deletion pass of Cycle.
func (l *Loop) MarkForDelete(idx int) {
	if info := l.Info(idx); info != nil {
		info.markedDelete = true
	}
}

func (l *Loop) udpReadLoop(idx int, conn net.PacketConn) {
	buf := make([]byte, 65536)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			l.events <- event{index: idx, kind: eventError, err: err}
			return
		}
		data := append([]byte(nil), buf[:n]...)
		l.events <- event{index: idx, kind: eventReadable, data: data, from: addr}
	}
}

func (l *Loop) acceptLoop(idx int, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			l.events <- event{index: idx, kind: eventError, err: err}
			return
		}
		l.events <- event{index: idx, kind: eventAcceptable, accepted: conn}
	}
}

func (l *Loop) streamReadLoop(idx int, conn net.Conn) {
	buf := make([]byte, 65536)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			l.events <- event{index: idx, kind: eventReadable, data: data}
		}
		if err != nil {
			l.events <- event{index: idx, kind: eventError, err: err}
			return
		}
	}
}

// Cycle runs one poll cycle: free deletions, drain readiness events (the
// channel stand-in for a zero-timeout poll), promoting completed connects
// and dispatching reads as each event is handled, pump queued writes,
// then free anything newly marked for deletion.
func (l *Loop) Cycle(cb Callbacks) error {
	if err := l.freeDeleted(cb); err != nil {
		return err
	}

	if err := l.drainEvents(cb); err != nil {
		return err
	}

	if err := l.pumpWrites(); err != nil {
		return err
	}

	return l.freeDeleted(cb)
}

func (l *Loop) drainEvents(cb Callbacks) error {
	for {
		select {
		case ev := <-l.events:
			if err := l.handleEvent(ev, cb); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (l *Loop) handleEvent(ev event, cb Callbacks) error {
	info := l.Info(ev.index)
	if info == nil || info.closed {
		return nil
	}
	switch ev.kind {
	case eventError:
		l.logger.Debug("iomux socket error", "index", ev.index, "errClass", l.errClassifier.Classify(ev.err))
		info.markedDelete = true
		return nil
	case eventConnected:
		info.Tag = TagTCPClient
		info.conn = ev.accepted
		info.Queue = &sendpipe.Queue{}
		go l.streamReadLoop(ev.index, info.conn)
		return cb.Connected(info)
	case eventAcceptable:
		newIdx := l.RegisterTCPAccepted(ev.accepted, ev.index)
		return cb.Accept(info, l.Info(newIdx))
	case eventReadable:
		if info.Tag == TagUDPServer {
			return cb.Recv(info, ev.data, ev.from)
		}
		info.partial = append(info.partial, ev.data...)
		for {
			frame, rest, ok := takeFrame(info.partial)
			if !ok {
				break
			}
			info.partial = rest
			if err := cb.Recv(info, frame, nil); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// pumpWrites takes one non-blocking send step per queued TCP socket,
// attempting to write the whole head frame in a single syscall to avoid
// splitting across TCP segments given NODELAY.
func (l *Loop) pumpWrites() error {
	for _, info := range l.infos {
		if info == nil || info.closed || info.Queue == nil || info.Queue.Empty() {
			continue
		}
		frame := info.Queue.Front()
		n, err := info.conn.Write(frame)
		if n > 0 {
			info.Queue.Advance(n)
		}
		if err != nil {
			if l.errClassifier.Classify(err) == "ERETRY" {
				continue
			}
			info.markedDelete = true
		}
	}
	return nil
}

func (l *Loop) freeDeleted(cb Callbacks) error {
	for {
		progressed := false
		for idx, info := range l.infos {
			if info == nil || info.closed || !info.markedDelete {
				continue
			}
			info.closed = true
			progressed = true
			if info.Tag == TagTCPServer {
				for _, child := range l.infos {
					if child != nil && !child.closed && child.ServerIndex == idx &&
						(child.Tag == TagTCPAccepted) {
						child.markedDelete = true
					}
				}
			}
			l.closeInfo(info)
			if err := cb.Close(info); err != nil {
				return err
			}
		}
		if !progressed {
			return nil
		}
	}
}

func (l *Loop) closeInfo(info *Info) {
	switch {
	case info.conn != nil:
		info.conn.Close()
	case info.packet != nil:
		info.packet.Close()
	case info.listener != nil:
		info.listener.Close()
	}
	info.Tag = TagClosed
}

// takeFrame extracts one length-prefixed frame (the wire format's
// leading u32 length field plus that many bytes) from the front of buf,
// if a complete one is present.
func takeFrame(buf []byte) (frame, rest []byte, ok bool) {
	if len(buf) < 4 {
		return nil, buf, false
	}
	length := binary.BigEndian.Uint32(buf[:4])
	total := 4 + int(length)
	if total > len(buf) {
		return nil, buf, false
	}
	return buf[:total], buf[total:], true
}
