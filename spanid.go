// SPDX-License-Identifier: GPL-3.0-or-later
//

package o2

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying one handshake attempt, clock-
// sync round, or scheduled-bundle expansion, so log lines from the same
// logical operation can be correlated via [*slog.Logger.With].
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
