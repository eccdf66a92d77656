// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import "github.com/rbdannenberg/o2go/internal/directory"

// Status is the O2 service status code delivered to "/_o2/si" handlers
// and returned by [Ensemble.Status].
type Status = directory.Status

const (
	StatusUnknown      = directory.StatusUnknown
	StatusLocal        = directory.StatusLocal
	StatusLocalNotime  = directory.StatusLocalNotime
	StatusRemote       = directory.StatusRemote
	StatusRemoteNotime = directory.StatusRemoteNotime
	StatusToOSC        = directory.StatusToOSC
	StatusBridge       = directory.StatusBridge
)

// StatusNotice is the payload delivered to a "/_o2/si" handler on every
// service or clock-sync status change.
type StatusNotice = directory.StatusNotice

// Status reports the current [Status] of service, or [StatusUnknown] if
// it isn't known at all.
func (e *Ensemble) Status(service string) Status {
	entry, ok := e.Dir.Lookup(service)
	if !ok {
		return StatusUnknown
	}
	active := entry.Active()
	if active == nil {
		return StatusUnknown
	}
	var owner *directory.Process
	if active.Kind == directory.ProviderRemote {
		owner, _ = e.Dir.Processes.Get(active.ProcessName)
	}
	return directory.StatusOf(entry, e.Clock.Synced, owner)
}

// noteServiceChange recomputes service's status and, if a "/_o2/si"
// handler is installed, delivers a [StatusNotice] for it. Called after
// every local mutation to the directory (add/remove provider, add/remove
// tap) and whenever the active provider or the clock-sync status of the
// service changes.
func (e *Ensemble) noteServiceChange(service string, _ bool) {
	status := e.Status(service)
	process := e.selfName
	var properties string
	if entry, ok := e.Dir.Lookup(service); ok {
		if active := entry.Active(); active != nil {
			process = active.ProcessName
			properties = active.Properties
		}
	}
	e.deliverStatusInfo(service, status, process, properties)
}

func (e *Ensemble) deliverStatusInfo(service string, status Status, process, properties string) {
	if e.siHandler == nil {
		return
	}
	e.siHandler(StatusNotice{Service: service, Status: status, Process: process, Properties: properties})
}

// OnStatusChange installs fn as the local process's "/_o2/si" callback,
// replacing any previously installed one.
func (e *Ensemble) OnStatusChange(fn func(StatusNotice)) {
	e.siHandler = fn
}
