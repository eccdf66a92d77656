// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

// Action is what a process should do in response to an incoming INFO
// datagram, per the handshake state machine.
type Action int

const (
	// ActionIgnore covers self-broadcast and already-known peers.
	ActionIgnore Action = iota
	// ActionBecomeServerSendCallback: we are the server (greater process
	// name); open a fresh TCP connection to the sender solely to deliver
	// CALLBACK, then let the sender close it and reconnect to us.
	ActionBecomeServerSendCallback
	// ActionBecomeClientConnect: we are the client (lesser process name);
	// connect to the sender and send CONNECT, followed by our services
	// and clock-sync state.
	ActionBecomeClientConnect
)

// DecideOnInfo implements the INFO branch of the handshake: selfName
// and senderName are full process names
// ("<public-ip>:<internal-ip>:<tcp-port>"); known reports whether the
// sender is already a connected peer.
func DecideOnInfo(selfName, senderName string, known bool) Action {
	if senderName == selfName {
		return ActionIgnore
	}
	if known {
		return ActionIgnore
	}
	if selfName > senderName {
		return ActionBecomeServerSendCallback
	}
	return ActionBecomeClientConnect
}

// HubAction is the reply a hub process makes upon receiving a one-time
// HUB datagram: reply REPLY to the sender, then broadcast the identity
// of every other known peer to the new peer using the normal INFO
// mechanism.
type HubAction struct {
	ReplyTo    string   // the process that sent HUB
	AnnounceTo []string // every other known peer's process name
}

// OnHubRequest builds the HubAction for a hub receiving a HUB datagram
// from sender, given the full list of currently known peer process names
// (senderName is left out of AnnounceTo if it appears in knownPeers).
func OnHubRequest(senderName string, knownPeers []string) HubAction {
	announce := make([]string, 0, len(knownPeers))
	for _, p := range knownPeers {
		if p != senderName {
			announce = append(announce, p)
		}
	}
	return HubAction{ReplyTo: senderName, AnnounceTo: announce}
}
