// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rbdannenberg/o2go/internal/directory"
	"github.com/rbdannenberg/o2go/internal/discovery"
	"github.com/rbdannenberg/o2go/internal/iomux"
	"github.com/rbdannenberg/o2go/internal/msg"
	"github.com/rbdannenberg/o2go/internal/sendpipe"
)

// Hub unicasts this process's own discovery identity directly to the
// named address:port instead of waiting for the normal broadcast cycle
// to reach it: useful for a process reachable only by a direct address,
// not LAN broadcast. Both sides still run the ordinary greatest-name
// tie-break once they learn each other's identity, so it does not matter
// which side calls Hub.
func (e *Ensemble) Hub(ip string, port int) error {
	return e.sendDatagramTo(ip, port, discovery.TagInfo)
}

// buildDiscoveryDatagram encodes one "/_o2/dy" message, type tag "sssii":
// ensemble, public ip, internal ip, tcp port, discovery tag.
func buildDiscoveryDatagram(ensemble, publicIP, internalIP string, tcpPort int, tag discovery.Tag) (*msg.Message, error) {
	var b msg.Builder
	b.Start()
	if err := b.AddString(ensemble); err != nil {
		return nil, err
	}
	if err := b.AddString(publicIP); err != nil {
		return nil, err
	}
	if err := b.AddString(internalIP); err != nil {
		return nil, err
	}
	if err := b.AddInt32(int32(tcpPort)); err != nil {
		return nil, err
	}
	if err := b.AddInt32(int32(tag)); err != nil {
		return nil, err
	}
	return b.Finish(0, "_o2", "/dy", false)
}

// parseDiscoveryDatagram reverses [buildDiscoveryDatagram].
func parseDiscoveryDatagram(m *msg.Message) (discovery.Datagram, error) {
	var ext msg.Extractor
	ext.Reset(m)
	ensemble, err := ext.Next('s')
	if err != nil {
		return discovery.Datagram{}, err
	}
	publicIP, err := ext.Next('s')
	if err != nil {
		return discovery.Datagram{}, err
	}
	internalIP, err := ext.Next('s')
	if err != nil {
		return discovery.Datagram{}, err
	}
	tcpPort, err := ext.Next('i')
	if err != nil {
		return discovery.Datagram{}, err
	}
	tag, err := ext.Next('i')
	if err != nil {
		return discovery.Datagram{}, err
	}
	return discovery.Datagram{
		Ensemble:   ensemble.Str,
		PublicIP:   publicIP.Str,
		InternalIP: internalIP.Str,
		TCPPort:    int(tcpPort.I32),
		Tag:        discovery.Tag(tag.I32),
	}, nil
}

// sendDatagramTo unicasts a fresh discovery datagram for this process to
// ip:port over the (broadcast-capable) discovery socket.
func (e *Ensemble) sendDatagramTo(ip string, port int, tag discovery.Tag) error {
	target := net.ParseIP(ip)
	if target == nil {
		return fmt.Errorf("o2: invalid address %q", ip)
	}
	m, err := buildDiscoveryDatagram(e.cfg.Ensemble, "00000000", e.internalIP, e.tcpPort, tag)
	if err != nil {
		return err
	}
	info := e.Loop.Info(e.udpIndex)
	if info == nil || info.PacketConn() == nil {
		return errors.New("o2: discovery socket closed")
	}
	_, err = info.PacketConn().WriteTo(m.Marshal(), &net.UDPAddr{IP: target, Port: port})
	return err
}

// sendDatagramBroadcast broadcasts a fresh discovery datagram to the
// ports this process currently round-robins over.
func (e *Ensemble) sendDatagramBroadcast(tag discovery.Tag) error {
	m, err := buildDiscoveryDatagram(e.cfg.Ensemble, "00000000", e.internalIP, e.tcpPort, tag)
	if err != nil {
		return err
	}
	info := e.Loop.Info(e.udpIndex)
	if info == nil || info.PacketConn() == nil {
		return errors.New("o2: discovery socket closed")
	}
	port := e.cfg.DiscoveryPorts[e.discoveryRR]
	_, err = info.PacketConn().WriteTo(m.Marshal(), &net.UDPAddr{IP: net.IPv4bcast, Port: port})
	return err
}

// handleDiscoveryTimer is the "/_o2/ds" self-rescheduling local message:
// broadcast once, back off the interval, round-robin the target port,
// then reschedule.
func (e *Ensemble) handleDiscoveryTimer(_ *Message, _ any) error {
	if err := e.sendDatagramBroadcast(discovery.TagInfo); err != nil {
		e.logger.Debug("o2 discovery broadcast failed", "err", err)
	}
	e.discoveryInterval = discovery.NextInterval(e.discoveryInterval)
	e.discoveryRR = discovery.RoundRobin(e.discoveryRR, e.boundPortIndex)
	return e.scheduleNextDiscoveryBroadcast()
}

func (e *Ensemble) scheduleNextDiscoveryBroadcast() error {
	var b msg.Builder
	b.Start()
	m, err := b.Finish(0, "_o2", "/ds", false)
	if err != nil {
		return err
	}
	now := e.localNowSeconds()
	return e.Sched.ScheduleLocal(now+e.discoveryInterval, m, now, e.deliverEntry)
}

// handleDiscoveryDatagram applies the handshake decision to an incoming
// "/_o2/dy" payload, from either a broadcast or (via [Ensemble.Hub]) a
// direct unicast.
func (e *Ensemble) handleDiscoveryDatagram(dg discovery.Datagram, from *net.UDPAddr) error {
	if dg.Ensemble != e.cfg.Ensemble {
		return nil
	}
	senderName := dg.ProcessName()
	if senderName == e.selfName {
		return nil
	}
	_, known := e.peerConnIndex[senderName]
	switch discovery.DecideOnInfo(e.selfName, senderName, known) {
	case discovery.ActionBecomeClientConnect:
		return e.connectToPeer(dg)
	case discovery.ActionBecomeServerSendCallback:
		// A server role could open a throwaway TCP connection here solely
		// to deliver a reverse-dial callback, then wait for the client to
		// close it and redial; on a LAN the client can always reach our
		// bound TCP port directly, so we just wait for it to dial in. We
		// do reply once, directly to the sender, so it learns our
		// identity immediately instead of waiting for its own next
		// broadcast cycle (the path [Ensemble.Hub] relies on to connect
		// quickly).
		if dg.Tag != discovery.TagReply && from != nil {
			return e.sendDatagramTo(from.IP.String(), from.Port, discovery.TagReply)
		}
		return nil
	default:
		return nil
	}
}

// connectToPeer dials a peer we have decided to be the client for.
func (e *Ensemble) connectToPeer(dg discovery.Datagram) error {
	peerName := dg.ProcessName()
	if _, already := e.peerConnIndex[peerName]; already {
		return nil
	}
	ip, err := parseIPHex(dg.InternalIP)
	if err != nil {
		return err
	}
	address := fmt.Sprintf("%s:%d", ip.String(), dg.TCPPort)
	idx := e.Loop.RegisterTCPConnecting(context.Background(), func(ctx context.Context) (net.Conn, error) {
		conn, err := e.dial.DialTCP(ctx, address)
		if err != nil {
			return nil, err
		}
		return e.observe.Call(ctx, conn)
	})
	e.pendingConnect[idx] = peerName
	return nil
}

// Connected implements [iomux.Callbacks]: our own dial out to a peer has
// completed, so send the CONNECT handshake and adopt the connection's
// queue before anything else can enqueue onto it.
func (e *Ensemble) Connected(info *iomux.Info) error {
	peerName, ok := e.pendingConnect[info.Index]
	if !ok {
		return nil
	}
	delete(e.pendingConnect, info.Index)
	e.establishPeer(peerName, info.Index, info.Queue)
	return e.sendConnect(peerName)
}

// Accept implements [iomux.Callbacks]: a peer dialed us. Its identity
// isn't known until its first frame (the CONNECT handshake) arrives, so
// there is nothing to do here but let the loop start reading it.
func (e *Ensemble) Accept(_ *iomux.Info, accepted *iomux.Info) error {
	e.logger.Debug("o2 tcp accept", "index", accepted.Index)
	return nil
}

// Close implements [iomux.Callbacks]: tear down every provider and tap
// the departing peer owned. A process record is destroyed on TCP
// hang-up, which removes every service it provided.
func (e *Ensemble) Close(info *iomux.Info) error {
	delete(e.pendingConnect, info.Index)

	peerName, ok := e.connPeerName[info.Index]
	if !ok {
		return nil
	}
	delete(e.connPeerName, info.Index)
	delete(e.peerConnIndex, peerName)
	e.Pipe.Forget(peerName)

	if proc, ok := e.Dir.Processes.Get(peerName); ok {
		for _, service := range proc.Services {
			e.Dir.RemoveProvidersForProcess(service, peerName)
			e.noteServiceChange(service, false)
		}
	}
	e.Dir.Processes.Delete(peerName)

	if peerName == e.referenceName {
		e.referenceName = ""
		e.Clock.Filter.Reset()
	}

	e.logger.Info("o2 peer disconnected", "process", peerName)
	return nil
}

// establishPeer records a newly identified connection, in either
// direction, in every bookkeeping structure that keys off process name.
func (e *Ensemble) establishPeer(peerName string, idx int, q *sendpipe.Queue) {
	e.connPeerName[idx] = peerName
	e.peerConnIndex[peerName] = idx
	e.Pipe.AdoptQueue(peerName, q)
	if _, ok := e.Dir.Processes.Get(peerName); !ok {
		e.Dir.Processes.Set(peerName, &directory.Process{Name: peerName})
	}
	e.logger.Info("o2 peer connected", "process", peerName)
}

// sendConnect sends the CONNECT handshake frame (the same shape as a
// discovery datagram, just tagged Connect and sent over the fresh TCP
// stream instead of broadcast) and catches the new peer up on every
// service this process currently provides.
func (e *Ensemble) sendConnect(peerName string) error {
	m, err := buildDiscoveryDatagram(e.cfg.Ensemble, "00000000", e.internalIP, e.tcpPort, discovery.TagConnect)
	if err != nil {
		return err
	}
	if err := e.sendControlTo(peerName, m); err != nil {
		return err
	}
	return e.syncServicesTo(peerName)
}

// Recv implements [iomux.Callbacks]: UDP payloads are discovery
// datagrams; TCP payloads are either the CONNECT handshake (if this
// connection's peer isn't identified yet) or a framed [Message] headed
// for either a reserved control address or the general dispatch path.
func (e *Ensemble) Recv(info *iomux.Info, data []byte, from net.Addr) error {
	if info.Tag == iomux.TagUDPServer {
		return e.recvDiscovery(data, from)
	}
	return e.recvStream(info, data)
}

func (e *Ensemble) recvDiscovery(data []byte, from net.Addr) error {
	m, err := msg.Unmarshal(data)
	if err != nil || m.Address != "/_o2/dy" {
		return nil
	}
	dg, err := parseDiscoveryDatagram(m)
	if err != nil {
		e.logger.Debug("o2 malformed discovery datagram", "err", err)
		return nil
	}
	udpFrom, _ := from.(*net.UDPAddr)
	return e.handleDiscoveryDatagram(dg, udpFrom)
}

func (e *Ensemble) recvStream(info *iomux.Info, data []byte) error {
	m, err := msg.Unmarshal(data)
	if err != nil {
		e.logger.Debug("o2 malformed tcp frame", "err", err)
		e.Loop.MarkForDelete(info.Index)
		return nil
	}

	peerName, known := e.connPeerName[info.Index]
	if !known {
		return e.acceptConnect(info, m)
	}

	switch m.Address {
	case "/_o2/sv":
		return e.handleServiceSync(m)
	case "/_o2/cs/cs":
		return e.handlePeerSynced(m)
	case "/_cs/get":
		return e.handleClockPing(peerName, m)
	case "/_o2/cs/pong":
		return e.handleClockPong(peerName, m)
	default:
		return e.deliverEntry(m)
	}
}

// acceptConnect handles the first frame on a freshly accepted connection,
// which must be the CONNECT handshake (we are the server role; the
// dialing side always speaks first).
func (e *Ensemble) acceptConnect(info *iomux.Info, m *msg.Message) error {
	if m.Address != "/_o2/dy" {
		e.logger.Debug("o2 expected connect handshake", "address", m.Address)
		e.Loop.MarkForDelete(info.Index)
		return nil
	}
	dg, err := parseDiscoveryDatagram(m)
	if err != nil || dg.Tag != discovery.TagConnect {
		e.logger.Debug("o2 malformed connect handshake", "err", err)
		e.Loop.MarkForDelete(info.Index)
		return nil
	}
	peerName := dg.ProcessName()
	e.establishPeer(peerName, info.Index, info.Queue)
	return e.syncServicesTo(peerName)
}

// syncServicesTo announces every service this process currently
// provides to peerName, catching up a newly connected peer on state
// that predates the connection (the broadcast-on-change mechanism in
// service.go/tap.go only covers changes from here on).
func (e *Ensemble) syncServicesTo(peerName string) error {
	var services []string
	e.Dir.Services.Each(func(name string, entry *directory.ServiceEntry) {
		if active := entry.Active(); active != nil && active.ProcessName == e.selfName {
			services = append(services, name)
		}
	})
	for _, service := range services {
		m, err := e.buildServiceSyncMessage(service, true)
		if err != nil {
			return err
		}
		if err := e.sendControlTo(peerName, m); err != nil {
			return err
		}
	}
	return nil
}

// buildServiceSyncMessage encodes one "/_o2/sv" record. The wire shape
// allows a single message to carry a whole batch of (service, add-flag,
// is-service, properties) groups per process; this sends one group per
// message instead (one per service-add/remove event, or one per service
// during catch-up), trading a little extra framing overhead for a much
// simpler encode/decode path. Taps aren't synced remotely, so is-service
// is always true.
func (e *Ensemble) buildServiceSyncMessage(service string, added bool) (*msg.Message, error) {
	var properties string
	if added {
		if entry, ok := e.Dir.Lookup(service); ok {
			if active := entry.Active(); active != nil && active.ProcessName == e.selfName {
				properties = active.Properties
			}
		}
	}
	var b msg.Builder
	b.Start()
	if err := b.AddString(e.selfName); err != nil {
		return nil, err
	}
	if err := b.AddString(service); err != nil {
		return nil, err
	}
	if err := b.AddBool(added); err != nil {
		return nil, err
	}
	if err := b.AddBool(true); err != nil { // is-service; taps aren't synced remotely
		return nil, err
	}
	if err := b.AddString(properties); err != nil {
		return nil, err
	}
	return b.Finish(0, "_o2", "/sv", true)
}

// broadcastServiceChange announces a locally-originated service add or
// remove to every connected peer. Remote-originated changes flow through
// [Ensemble.applyRemoteServiceChange] instead, which does not call this,
// since relaying a received change back out would loop forever between
// processes with no hop count to stop it.
func (e *Ensemble) broadcastServiceChange(service string, added bool) {
	for peerName := range e.peerConnIndex {
		m, err := e.buildServiceSyncMessage(service, added)
		if err != nil {
			e.logger.Debug("o2 building service sync message failed", "err", err)
			return
		}
		if err := e.sendControlTo(peerName, m); err != nil {
			e.logger.Debug("o2 sending service sync failed", "peer", peerName, "err", err)
		}
	}
}

func (e *Ensemble) handleServiceSync(m *msg.Message) error {
	var ext msg.Extractor
	ext.Reset(m)
	processArg, err := ext.Next('s')
	if err != nil {
		return nil
	}
	serviceArg, err := ext.Next(0)
	if err != nil {
		return nil
	}
	addedArg, err := ext.Next(0)
	if err != nil {
		return nil
	}
	if _, err := ext.Next(0); err != nil { // is-service, unused
		return nil
	}
	propertiesArg, err := ext.Next('s')
	if err != nil {
		return nil
	}
	return e.applyRemoteServiceChange(processArg.Str, serviceArg.Str, addedArg.Bool, propertiesArg.Str)
}

// applyRemoteServiceChange mirrors a peer-originated "/_o2/sv" record
// into the local directory without re-broadcasting it: every connected
// peer already announces its own changes directly, so relaying a
// received one back out would loop forever between processes with no
// hop count to stop it.
func (e *Ensemble) applyRemoteServiceChange(processName, service string, added bool, properties string) error {
	if added {
		e.Dir.AddProvider(service, &directory.Provider{Kind: directory.ProviderRemote, ProcessName: processName, Properties: properties})
		if proc, ok := e.Dir.Processes.Get(processName); ok {
			proc.Services = appendIfMissing(proc.Services, service)
		}
		if service == "_cs" && processName != e.selfName {
			hadReference := e.referenceName != ""
			e.referenceName = processName
			e.Clock.Filter.Reset()
			e.Clock.StartedAt = e.localNowSeconds()
			e.Clock.PingsSent = 0
			if !hadReference {
				if err := e.scheduleNextPing(); err != nil {
					return err
				}
			}
		}
	} else {
		e.Dir.RemoveProvidersForProcess(service, processName)
		if proc, ok := e.Dir.Processes.Get(processName); ok {
			proc.Services = removeString(proc.Services, service)
		}
		if service == "_cs" && processName == e.referenceName {
			e.referenceName = ""
		}
	}
	e.noteServiceChange(service, added)
	return nil
}

func appendIfMissing(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func removeString(list []string, s string) []string {
	for i, existing := range list {
		if existing == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
