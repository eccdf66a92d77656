// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import "fmt"

// SetProperty attaches (or replaces) attr's value on service's local
// provider record by splicing its property string, then replicates the
// change to every connected peer and delivers a "/_o2/si" status notice,
// the same way a fresh provider add would.
func (e *Ensemble) SetProperty(service, attr, value string) error {
	if !e.Dir.SetProperty(service, e.selfName, attr, value) {
		return fmt.Errorf("o2: no local provider for service %q", service)
	}
	e.noteServiceChange(service, true)
	e.broadcastServiceChange(service, true)
	return nil
}

// RemoveProperty strips attr from service's local provider record and
// replicates the change.
func (e *Ensemble) RemoveProperty(service, attr string) error {
	if !e.Dir.RemoveProperty(service, e.selfName, attr) {
		return fmt.Errorf("o2: no local provider for service %q", service)
	}
	e.noteServiceChange(service, true)
	e.broadcastServiceChange(service, true)
	return nil
}

// GetProperty returns attr's value from service's local provider record.
func (e *Ensemble) GetProperty(service, attr string) (string, bool) {
	return e.Dir.GetProperty(service, e.selfName, attr)
}

// FindService scans the current list of known services' active providers
// for one whose attr property contains needle, resuming a multi-result
// scan from startIndex. ok is false once the scan is exhausted.
func (e *Ensemble) FindService(attr, needle string, startIndex int) (service string, nextIndex int, ok bool) {
	return e.Dir.FindService(attr, needle, startIndex)
}
