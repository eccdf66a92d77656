// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rbdannenberg/o2go/internal/clocksync"
	"github.com/rbdannenberg/o2go/internal/directory"
	"github.com/rbdannenberg/o2go/internal/discovery"
	"github.com/rbdannenberg/o2go/internal/dispatch"
	"github.com/rbdannenberg/o2go/internal/iomux"
	"github.com/rbdannenberg/o2go/internal/msg"
	"github.com/rbdannenberg/o2go/internal/sched"
	"github.com/rbdannenberg/o2go/internal/sendpipe"
)

// ErrNoDiscoveryPort is returned by [NewEnsemble] when every port in
// [Config.DiscoveryPorts] is already taken on this host.
var ErrNoDiscoveryPort = errors.New("o2: no discovery port available")

// Ensemble is one process's membership in a named O2 ensemble: its own
// identity, the service directory, the address dispatcher, the local and
// global schedulers, the clock-sync state machine, the per-peer send
// queues, and the socket event loop that drives all of them from a
// single goroutine under a single-threaded cooperative model.
//
// Construct one with [NewEnsemble] and drive it with repeated
// [Ensemble.Poll] calls, or hand it to [Ensemble.Run] for a blocking
// loop. All of an Ensemble's methods must be called from that same
// goroutine; nothing here is safe for concurrent use.
type Ensemble struct {
	cfg *Config

	Dir      *directory.Directory
	Dispatch *dispatch.Dispatcher
	Sched    *sched.Scheduler
	Clock    *clocksync.Clock
	Pipe     *sendpipe.Pipeline
	Loop     *iomux.Loop

	reentry sendpipe.Reentry

	dial    *DialFunc
	observe *ObserveConnFunc

	selfName   string
	internalIP string // 8 hex chars
	tcpPort    int

	udpIndex       int
	tcpIndex       int
	boundPortIndex int

	discoveryRR       int
	discoveryInterval float64

	trees map[string]*dispatch.TreeNode

	siHandler func(StatusNotice)

	// connPeerName/peerConnIndex/pendingConnect track the mapping between
	// an iomux connection index and the peer process name it carries,
	// since iomux.Info itself is transport-only and has no notion of O2
	// process identity.
	connPeerName   map[int]string
	peerConnIndex  map[string]int
	pendingConnect map[int]string

	// referenceName is the process name of this ensemble's clock-sync
	// reference, learned when its "_cs" service is seen (or removed) via
	// "/_o2/sv".
	referenceName string
	pingNextID    int32
	pingSentAt    map[int32]float64

	startedAt time.Time
	logger    SLogger

	closed bool
}

// NewEnsemble constructs an [Ensemble]: it detects this host's internal
// address, binds a UDP discovery socket (the first free port in
// [Config.DiscoveryPorts]) and a TCP listener on an ephemeral port, and
// derives this process's immutable name from them; that name is owned by
// the process's own record and stays fixed once the TCP listen port is
// bound.
func NewEnsemble(cfg *Config) (*Ensemble, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if cfg.Ensemble == "" {
		return nil, errors.New("o2: Config.Ensemble must be set")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = DefaultSLogger()
	}

	internalIP, err := detectInternalIP()
	if err != nil {
		return nil, fmt.Errorf("o2: detecting internal address: %w", err)
	}

	var packet net.PacketConn
	boundPortIndex := -1
	for i, port := range cfg.DiscoveryPorts {
		pc, err := listenDiscoveryUDP(port)
		if err != nil {
			continue
		}
		packet = pc
		boundPortIndex = i
		break
	}
	if packet == nil {
		return nil, ErrNoDiscoveryPort
	}

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		packet.Close()
		return nil, fmt.Errorf("o2: binding tcp listener: %w", err)
	}
	tcpPort := ln.Addr().(*net.TCPAddr).Port
	ipHexStr := ipHex(internalIP)
	selfName := fmt.Sprintf("00000000:%s:%d", ipHexStr, tcpPort)

	dir := directory.New(selfName)
	loop := iomux.New(logger, cfg.ErrClassifier)

	e := &Ensemble{
		cfg:               cfg,
		Dir:               dir,
		Dispatch:          dispatch.New(dir),
		Sched:             sched.NewScheduler(),
		Clock:             clocksync.NewFollower(),
		Pipe:              sendpipe.NewPipeline(),
		Loop:              loop,
		dial:              NewDialFunc(cfg, logger),
		observe:           NewObserveConnFunc(cfg, logger),
		selfName:          selfName,
		internalIP:        ipHexStr,
		tcpPort:           tcpPort,
		boundPortIndex:    boundPortIndex,
		discoveryInterval: discovery.InitialDiscoveryPeriod,
		trees:             make(map[string]*dispatch.TreeNode),
		connPeerName:      make(map[int]string),
		peerConnIndex:     make(map[string]int),
		pendingConnect:    make(map[int]string),
		pingSentAt:        make(map[int32]float64),
		startedAt:         cfg.TimeNow(),
		logger:            logger,
	}

	e.udpIndex = loop.RegisterUDPServer(packet, cfg.DiscoveryPorts[boundPortIndex])
	e.tcpIndex = loop.RegisterTCPServer(ln, tcpPort)

	if err := e.MethodNew("_o2", "/ds", "", e.handleDiscoveryTimer, nil); err != nil {
		return nil, err
	}
	if err := e.MethodNew("_o2", "/ps", "", e.handlePingTimer, nil); err != nil {
		return nil, err
	}
	if err := e.scheduleNextDiscoveryBroadcast(); err != nil {
		return nil, err
	}

	logger.Info("o2 ensemble started", "process", selfName, "ensemble", cfg.Ensemble)
	return e, nil
}

// SelfName returns this process's immutable name
// ("<public-ip>:<internal-ip>:<tcp-port>").
func (e *Ensemble) SelfName() string { return e.selfName }

// Close closes the UDP discovery socket and marks the TCP listener for
// deletion by the event loop. Connections to peers are not closed, and
// peers are not notified.
func (e *Ensemble) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if info := e.Loop.Info(e.udpIndex); info != nil {
		if pc := info.PacketConn(); pc != nil {
			pc.Close()
		}
	}
	if info := e.Loop.Info(e.tcpIndex); info != nil {
		e.Loop.MarkForDelete(e.tcpIndex)
	}
	return nil
}

// localNowSeconds returns seconds elapsed since this ensemble was
// constructed, the local-time base every wheel and clock-sync
// computation is built on.
func (e *Ensemble) localNowSeconds() float64 {
	return e.cfg.TimeNow().Sub(e.startedAt).Seconds()
}

// Poll runs one iteration of the event loop: it services sockets, then
// advances the local and (once synchronized) global timing wheels. Call
// this repeatedly, or use
// [Ensemble.Run] to have a goroutine do so on a fixed tick.
func (e *Ensemble) Poll() error {
	if err := e.Loop.Cycle(e); err != nil {
		return err
	}
	now := e.localNowSeconds()
	if err := e.Sched.PollLocal(now, e.deliverScheduled); err != nil {
		return err
	}
	// GlobalNow ticks the slew's pending rate-restore (clocksync.Slew.Tick)
	// as a side effect, so calling it every cycle folds the catch-up
	// adjustment into the normal poll path instead of a separate callback.
	if global, ok := e.Clock.GlobalNow(now); ok {
		if err := e.Sched.PollGlobal(global, e.deliverScheduled); err != nil {
			return err
		}
	}
	return nil
}

// Run drives [Ensemble.Poll] on [Config.PollTick] until ctx is done.
func (e *Ensemble) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Poll(); err != nil {
				return err
			}
		}
	}
}

// Send delivers m: if it carries a nonzero timestamp it is handed to the
// global scheduler (failing with [sched.ErrNoClock] before this process
// has synchronized); otherwise it is dispatched now.
func (e *Ensemble) Send(m *Message) error {
	if m.Timestamp != 0 {
		now := e.localNowSeconds()
		global, ok := e.Clock.GlobalNow(now)
		if !ok {
			return sched.ErrNoClock
		}
		return e.Sched.ScheduleGlobal(m.Timestamp, m, global, e.deliverScheduled)
	}
	return e.deliverEntry(m)
}

// deliverScheduled is the callback the two wheels call once a scheduled
// message's time has arrived; scheduled delivery re-enters the same
// gate as an immediate [Ensemble.Send].
func (e *Ensemble) deliverScheduled(m *msg.Message) error {
	return e.deliverEntry(m)
}

// deliverEntry wraps one dispatch of m in the re-entry gate: a handler
// invoked from within rawDeliver that itself calls Send
// must not recurse into dispatch directly, since the dispatcher's
// own internal state (full-path table, tree walk) is not reentrant-safe
// mid-walk. forwardSend below is what handlers (indirectly, via bundle
// split and tap fan-out) actually call.
func (e *Ensemble) deliverEntry(m *msg.Message) error {
	e.reentry.Enter()
	err := e.rawDeliver(m)
	if leaveErr := e.reentry.Leave(e.rawDeliver); leaveErr != nil && err == nil {
		err = leaveErr
	}
	return err
}

func (e *Ensemble) rawDeliver(m *msg.Message) error {
	return e.Dispatch.Dispatch(m, e.forwardSend, e.routeToTransport)
}

// forwardSend is the dispatcher's [dispatch.SendFunc]: bundle elements
// and tap copies both re-enter the pipeline through here, which defers
// to the reentry queue if a delivery is already in progress instead of
// recursing into rawDeliver directly.
func (e *Ensemble) forwardSend(m *msg.Message) error {
	return e.reentry.Send(m, e.rawDeliver)
}

// routeToTransport is the dispatcher's [dispatch.RouteFunc]: it is only
// ever called once an address has already resolved to a provider that
// lives elsewhere, so it hands off to the send pipeline directly rather
// than calling back into send/dispatch, which would just re-resolve the
// same provider forever.
func (e *Ensemble) routeToTransport(p *directory.Provider, m *msg.Message) error {
	return e.Pipe.Route(p, m, e.oscSend)
}

// oscSend delivers m to an OSC delegate over a one-shot UDP datagram.
// OSC gateway compatibility is out of scope (doc.go, "Scope"); this
// exists only so [directory.ProviderOSC] entries set up by an embedder
// have somewhere to go rather than being silently dropped.
func (e *Ensemble) oscSend(udpAddress string, m *msg.Message) error {
	conn, err := net.Dial("udp", udpAddress)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(m.Marshal())
	return err
}

// CanSend reports whether sending to service right now would block:
// [sendpipe.Success] if the active
// provider is local or its outgoing queue is empty, [sendpipe.Blocked]
// if the queue already holds data, or [sendpipe.ErrPeerGone] if service
// resolves to nothing at all.
func (e *Ensemble) CanSend(service string) (sendpipe.CanSendResult, error) {
	entry, ok := e.Dir.Lookup(service)
	if !ok {
		return sendpipe.Blocked, sendpipe.ErrPeerGone
	}
	active := entry.Active()
	if active == nil {
		return sendpipe.Blocked, sendpipe.ErrPeerGone
	}
	if active.Kind != directory.ProviderRemote {
		return sendpipe.Success, nil
	}
	return e.Pipe.CanSendTo(active.ProcessName)
}

// sendControlTo enqueues m directly onto peerName's outgoing TCP queue,
// bypassing dispatch/addressing entirely. Discovery and clock-sync
// control traffic ("/_o2/sv", "/_o2/cs/cs", "/_cs/get", "/_o2/cs/pong")
// is always point-to-point between two already-connected processes, so
// it has no business being resolved against this process's own service
// directory the way an application message does.
func (e *Ensemble) sendControlTo(peerName string, m *msg.Message) error {
	idx, ok := e.peerConnIndex[peerName]
	if !ok {
		return fmt.Errorf("o2: no connection to %s", peerName)
	}
	info := e.Loop.Info(idx)
	if info == nil || info.Queue == nil {
		return fmt.Errorf("o2: no connection to %s", peerName)
	}
	info.Queue.Enqueue(m.Marshal())
	return nil
}

// ipHex renders ip's 4-byte IPv4 form as 8 lowercase hex characters, the
// format process names use for both IP fields.
func ipHex(ip net.IP) string {
	ip4 := ip.To4()
	if ip4 == nil {
		return "00000000"
	}
	return hex.EncodeToString(ip4)
}

// parseIPHex reverses [ipHex].
func parseIPHex(s string) (net.IP, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 4 {
		return nil, fmt.Errorf("o2: malformed ip hex %q", s)
	}
	return net.IPv4(b[0], b[1], b[2], b[3]), nil
}

// detectInternalIP returns this host's LAN-facing address by opening a
// UDP "connection" to an external address and reading back the local
// endpoint the kernel chose for it; no packet is actually sent, since
// UDP's connect() only consults the routing table.
func detectInternalIP() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}
