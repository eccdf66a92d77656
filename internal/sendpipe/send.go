// SPDX-License-Identifier: GPL-3.0-or-later

package sendpipe

import (
	"github.com/rbdannenberg/o2go/internal/directory"
	"github.com/rbdannenberg/o2go/internal/htable"
	"github.com/rbdannenberg/o2go/internal/msg"
)

// Pipeline routes an outgoing message to its destination: local delivery
// (handled by the caller's dispatcher, not here), a remote process's TCP
// queue, an OSC delegate, or a bridge callback.
type Pipeline struct {
	queues *htable.Table[*Queue]
}

// NewPipeline returns an empty per-peer queue registry.
func NewPipeline() *Pipeline {
	return &Pipeline{queues: htable.New[*Queue]()}
}

// QueueFor returns (creating if necessary) the outgoing queue for a
// remote process name.
func (p *Pipeline) QueueFor(processName string) *Queue {
	if q, ok := p.queues.Get(processName); ok {
		return q
	}
	q := &Queue{}
	p.queues.Set(processName, q)
	return q
}

// Forget removes processName's queue entirely, called on disconnect.
func (p *Pipeline) Forget(processName string) {
	p.queues.Delete(processName)
}

// AdoptQueue registers q as processName's outgoing queue, replacing
// whatever was there. The event loop (internal/iomux) allocates its own
// *Queue per connection before a peer's identity is known; once the
// discovery handshake resolves that identity, the caller adopts the
// connection's queue here so that [Pipeline.Route]'s ProviderRemote case
// and [Pipeline.CanSendTo] both observe the same queue iomux is
// actually draining, rather than a second, never-pumped one QueueFor
// would otherwise create.
func (p *Pipeline) AdoptQueue(processName string, q *Queue) {
	p.queues.Set(processName, q)
}

// CanSendTo is [CanSend] against the named process's queue, reporting
// [ErrPeerGone] if the process is not currently queued at all.
func (p *Pipeline) CanSendTo(processName string) (CanSendResult, error) {
	q, _ := p.queues.Get(processName)
	return CanSend(q)
}

// Route classifies provider and either enqueues m's wire frame onto the
// owning process's queue (ProviderRemote), hands it to oscSend
// (ProviderOSC), or hands it to the bridge's own Send callback
// (ProviderBridge). Local provider kinds are the dispatcher's
// responsibility, not the send pipeline's, and Route does nothing for
// them.
func (p *Pipeline) Route(provider *directory.Provider, m *msg.Message, oscSend func(udpAddress string, m *msg.Message) error) error {
	switch provider.Kind {
	case directory.ProviderRemote:
		p.QueueFor(provider.ProcessName).Enqueue(m.Marshal())
		return nil
	case directory.ProviderOSC:
		if provider.OSC == nil {
			return nil
		}
		return oscSend(provider.OSC.UDPAddress, m)
	case directory.ProviderBridge:
		if provider.Bridge == nil || provider.Bridge.Send == nil {
			return nil
		}
		return provider.Bridge.Send(m.Marshal())
	default:
		return nil
	}
}
