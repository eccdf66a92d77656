// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import "github.com/rbdannenberg/o2go/internal/htable"

// TreeNode is one node of a service's path-component tree. A node whose
// Handler is non-nil is a registered method; a node may have both a
// handler and children, since e.g. "/synth" and "/synth/freq" can both
// be registered.
type TreeNode struct {
	Children *htable.Table[*TreeNode]
	Handler  Handler
	UserData any
}

// NewTreeNode returns an empty node with no handler and no children.
func NewTreeNode() *TreeNode {
	return &TreeNode{Children: htable.New[*TreeNode]()}
}

// AddPath walks (creating as needed) the child chain named by
// components and installs h at the final node, returning it.
func (n *TreeNode) AddPath(components []string, h Handler, userData any) *TreeNode {
	cur := n
	for _, c := range components {
		child, ok := cur.Children.Get(c)
		if !ok {
			child = NewTreeNode()
			cur.Children.Set(c, child)
		}
		cur = child
	}
	cur.Handler = h
	cur.UserData = userData
	return cur
}

// RemovePath clears the handler at the node named by components, if it
// exists. It does not prune now-childless intermediate nodes; O2's tree
// is rebuilt wholesale on any service-structure change rather than
// incrementally compacted: providers are replicated as whole records.
func (n *TreeNode) RemovePath(components []string) bool {
	cur := n
	for _, c := range components {
		child, ok := cur.Children.Get(c)
		if !ok {
			return false
		}
		cur = child
	}
	if cur.Handler == nil {
		return false
	}
	cur.Handler = nil
	cur.UserData = nil
	return true
}

// Walk finds the node reached by following components from n, matching
// literal components by hash lookup and wildcarded components (as
// judged by HasWildcard) against every child via MatchComponent. fn is
// called for every handler reached this way; a wildcarded component can
// fan out to more than one child, so Walk may call fn more than once.
func (n *TreeNode) Walk(components []string, fn func(*TreeNode)) {
	if len(components) == 0 {
		if n.Handler != nil {
			fn(n)
		}
		return
	}
	head, rest := components[0], components[1:]
	if !HasWildcard(head) {
		if child, ok := n.Children.Get(head); ok {
			child.Walk(rest, fn)
		}
		return
	}
	n.Children.Each(func(name string, child *TreeNode) {
		if MatchComponent(head, name) {
			child.Walk(rest, fn)
		}
	})
}
