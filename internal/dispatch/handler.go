// SPDX-License-Identifier: GPL-3.0-or-later

// Package dispatch implements the address dispatcher: a full-path hash
// table for literal addresses, a per-service tree of path components
// for everything else, the glob matcher those trees walk against, and
// tap fan-out.
package dispatch

import "github.com/rbdannenberg/o2go/internal/msg"

// Handler is a message callback registered against a path. It receives
// the raw message; handlers that want typed arguments build their own
// msg.Extractor from it rather than have the dispatcher pre-parse types
// it cannot know in advance.
type Handler func(m *msg.Message, userData any) error
