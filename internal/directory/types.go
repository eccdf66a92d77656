// SPDX-License-Identifier: GPL-3.0-or-later

// Package directory implements the service directory: for each service
// name, an ordered list of providers (the first is active) plus a list
// of taps, replicated across peers via "/_o2/sv" messages and exposing
// "/_o2/si" status-change notifications.
package directory

// ProviderKind discriminates the five provider shapes a service can have.
type ProviderKind int

const (
	// ProviderLocalTree is a local handler tree rooted at LocalTreeRoot
	// (an opaque pointer owned and interpreted by internal/dispatch; this
	// package never looks inside it, which keeps directory from importing
	// dispatch and dispatch importing directory without a cycle).
	ProviderLocalTree ProviderKind = iota
	// ProviderLocalHandler is a single handler for every path under the
	// service (LocalHandler, also opaque here).
	ProviderLocalHandler
	// ProviderRemote is a reference to a service hosted by another process.
	ProviderRemote
	// ProviderOSC is an OSC delegate (UDP address or TCP stream).
	ProviderOSC
	// ProviderBridge is a non-IP transport endpoint.
	ProviderBridge
)

// Provider is one implementation of a service, owned by one process.
type Provider struct {
	Kind ProviderKind

	// ProcessName is the name of the process that owns this provider; used
	// both for teardown (when a process disconnects, every provider it owns
	// is removed) and for the "greatest process name wins" tie-break when
	// selecting the active provider among several.
	ProcessName string

	// LocalTreeRoot holds a *dispatch.TreeNode when Kind ==
	// ProviderLocalTree; opaque to this package.
	LocalTreeRoot any
	// LocalHandler holds a dispatch.Handler when Kind == ProviderLocalHandler.
	LocalHandler any

	OSC    *OSCDelegate
	Bridge *BridgeEndpoint

	// Properties is this provider's property string ("" if none set),
	// always of the normalized ";attr:value;..." form properties.go
	// produces; see [SetProperty]/[GetProperty].
	Properties string
}

// OSCDelegate describes a provider that forwards to an OSC peer.
type OSCDelegate struct {
	UDPAddress string // non-empty for UDP delegation
	TCPStream  bool   // true if delegation uses a TCP stream instead
}

// BridgeEndpoint describes a provider reached through a non-IP transport.
type BridgeEndpoint struct {
	Name string
	Send func(data []byte) error
}

// SendMode selects whether a tap uses its own reliability class or
// inherits the original message's.
type SendMode int

const (
	// SendModeKeep reuses the original message's TCP/UDP hint.
	SendModeKeep SendMode = iota
	// SendModeReliable forces TCP regardless of the original hint.
	SendModeReliable
	// SendModeBestEffort forces UDP regardless of the original hint.
	SendModeBestEffort
)

// Tap is a (tappee-service, tapper-service, send-mode) triple attached to
// the tappee's ServiceEntry.
type Tap struct {
	TapperName string // the service name used as the rewritten prefix
	Mode       SendMode
}

// ServiceEntry is the directory's record for one service name: an ordered
// list of providers (index 0 is active) plus the taps attached to it.
type ServiceEntry struct {
	Name      string
	Providers []*Provider
	Taps      []*Tap
}

// Empty reports whether the entry has neither providers nor taps, the
// condition under which it must be removed from the directory.
func (e *ServiceEntry) Empty() bool {
	return len(e.Providers) == 0 && len(e.Taps) == 0
}

// Active returns the active provider (Providers[0]), or nil if there are
// none.
func (e *ServiceEntry) Active() *Provider {
	if len(e.Providers) == 0 {
		return nil
	}
	return e.Providers[0]
}
