// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"strings"

	"github.com/rbdannenberg/o2go/internal/directory"
	"github.com/rbdannenberg/o2go/internal/msg"
)

// SendFunc re-enters the send pipeline with a message that has already
// been dispatched once: bundle elements and tap copies both need this.
type SendFunc func(m *msg.Message) error

// RouteFunc hands m to provider's transport (remote process queue, OSC
// delegate, or bridge) without re-entering dispatch: m's address already
// resolved to provider, so running it back through Dispatch would just
// resolve the same provider and call RouteFunc again, forever.
type RouteFunc func(provider *directory.Provider, m *msg.Message) error

// Dispatcher ties a service directory to the path-tree/full-path-table
// pair that resolves an address to a provider.
type Dispatcher struct {
	Dir      *directory.Directory
	FullPath *fullPathTable
}

// New returns a Dispatcher backed by dir.
func New(dir *directory.Directory) *Dispatcher {
	return &Dispatcher{Dir: dir, FullPath: newFullPathTable()}
}

// Dispatch routes m through the full resolve-and-deliver algorithm.
// send re-enters the pipeline for split bundle elements and tap copies;
// route hands m itself to its transport when the active provider is not
// local to this process.
func (d *Dispatcher) Dispatch(m *msg.Message, send SendFunc, route RouteFunc) error {
	if m.IsBundle() {
		nested, err := msg.SplitBundle(m)
		if err != nil {
			return err
		}
		for _, elem := range nested {
			if err := send(elem); err != nil {
				return err
			}
		}
		return nil
	}

	literal := strings.HasPrefix(m.Address, "!")
	addr := m.Address
	if literal {
		addr = addr[1:]
	}
	service, rest := splitAddress(addr)
	if service == "" {
		return nil
	}

	// Service names starting with a digit name a process directly rather
	// than a registered service; the process table, not the service
	// table, resolves them. Direct process addressing carries no local
	// handler or taps, so the message is simply forwarded onto that
	// process's own queue once it is known.
	if service[0] >= '0' && service[0] <= '9' {
		if _, ok := d.Dir.Processes.Get(service); !ok {
			return nil
		}
		return route(&directory.Provider{Kind: directory.ProviderRemote, ProcessName: service}, m)
	}

	entry, ok := d.Dir.Lookup(service)
	if !ok {
		return nil
	}

	if active := entry.Active(); active != nil {
		switch active.Kind {
		case directory.ProviderLocalHandler:
			if h, _ := active.LocalHandler.(Handler); h != nil {
				if err := h(m, nil); err != nil {
					return err
				}
			}
		case directory.ProviderRemote, directory.ProviderOSC, directory.ProviderBridge:
			// The active provider lives elsewhere; this process is not the
			// owner, so the message is handed to its transport directly.
			// Calling send here instead would re-resolve the same address,
			// land back on this same provider, and loop forever.
			if err := route(active, m); err != nil {
				return err
			}
		case directory.ProviderLocalTree:
			if literal {
				if fp, ok := d.FullPath.get("/" + strings.TrimPrefix(addr, "/")); ok {
					if err := fp.handler(m, fp.userData); err != nil {
						return err
					}
				}
			} else if root, _ := active.LocalTreeRoot.(*TreeNode); root != nil {
				var walkErr error
				root.Walk(rest, func(n *TreeNode) {
					if walkErr == nil && n.Handler != nil {
						walkErr = n.Handler(m, n.UserData)
					}
				})
				if walkErr != nil {
					return walkErr
				}
			}
		}
	}

	return d.fanOutTaps(entry, m, send)
}

// fanOutTaps re-enters send for every tap on entry, with the message's
// service name rewritten to the tapper's.
func (d *Dispatcher) fanOutTaps(entry *directory.ServiceEntry, m *msg.Message, send SendFunc) error {
	for _, tap := range entry.Taps {
		copied := *m
		copied.Address = rewriteService(m.Address, tap.TapperName)
		switch tap.Mode {
		case directory.SendModeReliable:
			copied.Flags |= msg.FlagTCP
		case directory.SendModeBestEffort:
			copied.Flags &^= msg.FlagTCP
		}
		if err := send(&copied); err != nil {
			return err
		}
	}
	return nil
}

// splitAddress returns the leading service name and the remaining
// components of addr (which must start with '/').
func splitAddress(addr string) (service string, rest []string) {
	trimmed := strings.TrimPrefix(addr, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil
	}
	return parts[0], parts[1:]
}

// rewriteService replaces addr's leading service component with
// newService, preserving everything after it.
func rewriteService(addr, newService string) string {
	_, rest := splitAddress(addr)
	out := "/" + newService
	for _, r := range rest {
		out += "/" + r
	}
	return out
}
