// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import "github.com/rbdannenberg/o2go/internal/directory"

// SendMode selects whether a tap forces its own reliability class or
// keeps whatever the original message used.
type SendMode = directory.SendMode

const (
	SendModeKeep         = directory.SendModeKeep
	SendModeReliable     = directory.SendModeReliable
	SendModeBestEffort   = directory.SendModeBestEffort
)

// Tap attaches a non-destructive copy of every message delivered to
// tappee: each delivery is also re-sent to tapperService with its
// service component rewritten.
func (e *Ensemble) Tap(tappee, tapperService string, mode SendMode) error {
	e.Dir.AddTap(tappee, &directory.Tap{TapperName: tapperService, Mode: mode})
	e.noteServiceChange(tappee, true)
	return nil
}

// Untap removes a previously installed tap.
func (e *Ensemble) Untap(tappee, tapperService string) error {
	e.Dir.RemoveTap(tappee, tapperService)
	e.noteServiceChange(tappee, false)
	return nil
}
