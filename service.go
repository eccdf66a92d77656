// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import (
	"strings"

	"github.com/rbdannenberg/o2go/internal/directory"
	"github.com/rbdannenberg/o2go/internal/dispatch"
)

// CreateServiceHandler registers h as the single handler for every
// address under service (a "ProviderLocalHandler" provider): every
// message addressed to service, regardless of the remaining path,
// reaches h.
func (e *Ensemble) CreateServiceHandler(service string, h Handler, userData any) error {
	e.Dir.AddProvider(service, &directory.Provider{
		Kind:        directory.ProviderLocalHandler,
		ProcessName: e.selfName,
		LocalHandler: dispatch.Handler(func(m *Message, ud any) error {
			return h(m, ud)
		}),
	})
	e.noteServiceChange(service, true)
	e.broadcastServiceChange(service, true)
	return nil
}

// CreateServiceTree registers service as a tree-structured provider with
// no methods yet installed; call [Ensemble.MethodNew] afterward to
// populate it. It is also implicitly created by the first MethodNew call
// on a service that doesn't exist yet, so most callers never need this
// directly.
func (e *Ensemble) CreateServiceTree(service string) error {
	e.treeRootFor(service)
	e.noteServiceChange(service, true)
	e.broadcastServiceChange(service, true)
	return nil
}

// RemoveService drops every provider this process owns for service and
// forgets its local method tree. Taps are left in place, both those on
// service and those that deliver to it.
func (e *Ensemble) RemoveService(service string) error {
	e.Dir.RemoveProvidersForProcess(service, e.selfName)
	delete(e.trees, service)
	e.noteServiceChange(service, false)
	e.broadcastServiceChange(service, false)
	return nil
}

// treeRootFor returns the *dispatch.TreeNode backing service's local
// tree provider, creating both the node and the provider entry on first
// use.
func (e *Ensemble) treeRootFor(service string) *dispatch.TreeNode {
	if root, ok := e.trees[service]; ok {
		return root
	}
	root := dispatch.NewTreeNode()
	e.trees[service] = root
	e.Dir.AddProvider(service, &directory.Provider{
		Kind:          directory.ProviderLocalTree,
		ProcessName:   e.selfName,
		LocalTreeRoot: root,
	})
	return root
}

// addTreeHandler installs h at service+path in the tree provider,
// creating the service on first use, and mirrors the registration into
// the full-path table when path carries no wildcard.
func (e *Ensemble) addTreeHandler(service, path string, h Handler, userData any) error {
	root := e.treeRootFor(service)
	components := splitPathComponents(path)
	wrapped := dispatch.Handler(func(m *Message, ud any) error {
		return h(m, ud)
	})
	root.AddPath(components, wrapped, userData)

	full := "/" + service + path
	if !dispatch.HasWildcard(full) {
		e.Dispatch.FullPath.Set(full, wrapped, userData)
	}
	return nil
}

func splitPathComponents(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
