// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import "github.com/rbdannenberg/o2go/internal/htable"

// fpEntry is one full-path table entry: the handler reached via a
// literal ("!"-prefixed) address with no wildcard characters.
type fpEntry struct {
	handler  Handler
	userData any
}

// fullPathTable is a flat address-to-handler map holding only paths with
// no '*?[{' characters, the fast path used for literal ('!'-prefixed)
// addresses.
type fullPathTable struct {
	table *htable.Table[fpEntry]
}

func newFullPathTable() *fullPathTable {
	return &fullPathTable{table: htable.New[fpEntry]()}
}

// Set installs h at address (without a leading '!'; the table stores
// bare addresses like "/synth/lfo/freq").
func (t *fullPathTable) Set(address string, h Handler, userData any) {
	t.table.Set(address, fpEntry{handler: h, userData: userData})
}

// Remove deletes address's entry, if any.
func (t *fullPathTable) Remove(address string) bool {
	return t.table.Delete(address)
}

func (t *fullPathTable) get(address string) (fpEntry, bool) {
	return t.table.Get(address)
}
