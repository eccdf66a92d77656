// SPDX-License-Identifier: GPL-3.0-or-later

package directory

// Status is the O2 service status code reported by "/_o2/si"
// notifications and by the public status query, matching the
// O2_LOCAL/O2_REMOTE/*_NOTIME distinctions from the original status enum.
type Status int

const (
	StatusUnknown Status = iota
	StatusLocal
	StatusLocalNotime
	StatusRemote
	StatusRemoteNotime
	StatusToOSC
	StatusBridge
)

// StatusOf computes the status of e's active provider, given whether the
// owning process (selfName for local providers) has completed clock sync.
func StatusOf(e *ServiceEntry, selfSynced bool, owner *Process) Status {
	p := e.Active()
	if p == nil {
		return StatusUnknown
	}
	switch p.Kind {
	case ProviderLocalTree, ProviderLocalHandler:
		if selfSynced {
			return StatusLocal
		}
		return StatusLocalNotime
	case ProviderOSC:
		return StatusToOSC
	case ProviderBridge:
		return StatusBridge
	case ProviderRemote:
		if owner != nil && owner.ClockSynced {
			return StatusRemote
		}
		return StatusRemoteNotime
	default:
		return StatusUnknown
	}
}

// StatusNotice is the payload of an "/_o2/si" notification: service name,
// new status, the process name responsible for the change, and the
// active provider's current property string.
type StatusNotice struct {
	Service    string
	Status     Status
	Process    string
	Properties string
}
