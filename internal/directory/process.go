// SPDX-License-Identifier: GPL-3.0-or-later

package directory

import (
	"sort"

	"github.com/rbdannenberg/o2go/internal/htable"
)

// Process is the directory's record for one peer, keyed by its process
// name ("<public-ip>:<local-ip>:<tcp-port>").
type Process struct {
	Name        string
	Services    []string // services this process currently provides; used for teardown
	ClockSynced bool      // true once this peer has announced clock sync via "/_o2/cs/cs"
	NoTime      bool      // true if this peer never claims clock sync (O2_NOTIME-style)
}

// Directory is the full service directory owned by one O2 process: every
// known service and every known peer process, keyed by name.
type Directory struct {
	Services  *htable.Table[*ServiceEntry]
	Processes *htable.Table[*Process]
	SelfName  string
}

// New returns an empty directory for a process named self.
func New(self string) *Directory {
	return &Directory{
		Services:  htable.New[*ServiceEntry](),
		Processes: htable.New[*Process](),
		SelfName:  self,
	}
}

func (d *Directory) entry(service string) *ServiceEntry {
	if e, ok := d.Services.Get(service); ok {
		return e
	}
	e := &ServiceEntry{Name: service}
	d.Services.Set(service, e)
	return e
}

// AddProvider inserts p into service's provider list and re-runs the
// tie-break so the greatest process name is active: when two processes
// offer the same service, the one with the greatest name, compared as a
// string, is active.
func (d *Directory) AddProvider(service string, p *Provider) {
	e := d.entry(service)
	e.Providers = append(e.Providers, p)
	sortProvidersByTieBreak(e.Providers)
}

// RemoveProvidersForProcess drops every provider owned by processName
// from service, and deletes the entry entirely if it ends up empty.
func (d *Directory) RemoveProvidersForProcess(service, processName string) {
	e, ok := d.Services.Get(service)
	if !ok {
		return
	}
	kept := e.Providers[:0]
	for _, p := range e.Providers {
		if p.ProcessName != processName {
			kept = append(kept, p)
		}
	}
	e.Providers = kept
	d.pruneIfEmpty(service, e)
}

// AddTap attaches a tap to service's entry.
func (d *Directory) AddTap(service string, t *Tap) {
	e := d.entry(service)
	e.Taps = append(e.Taps, t)
}

// RemoveTap detaches the first tap on service whose tapper matches
// tapperName.
func (d *Directory) RemoveTap(service, tapperName string) {
	e, ok := d.Services.Get(service)
	if !ok {
		return
	}
	for i, t := range e.Taps {
		if t.TapperName == tapperName {
			e.Taps = append(e.Taps[:i], e.Taps[i+1:]...)
			break
		}
	}
	d.pruneIfEmpty(service, e)
}

func (d *Directory) pruneIfEmpty(service string, e *ServiceEntry) {
	if e.Empty() {
		d.Services.Delete(service)
	}
}

// Lookup returns the ServiceEntry for name, if any.
func (d *Directory) Lookup(name string) (*ServiceEntry, bool) {
	return d.Services.Get(name)
}

func (d *Directory) findProvider(service, processName string) *Provider {
	e, ok := d.Services.Get(service)
	if !ok {
		return nil
	}
	for _, p := range e.Providers {
		if p.ProcessName == processName {
			return p
		}
	}
	return nil
}

// SetProperty splices attr=value into the property string of the
// provider processName owns for service, and reports whether such a
// provider exists.
func (d *Directory) SetProperty(service, processName, attr, value string) bool {
	p := d.findProvider(service, processName)
	if p == nil {
		return false
	}
	p.Properties = SetProperty(p.Properties, attr, value)
	return true
}

// RemoveProperty strips attr from processName's property string for
// service, if a matching provider exists.
func (d *Directory) RemoveProperty(service, processName, attr string) bool {
	p := d.findProvider(service, processName)
	if p == nil {
		return false
	}
	p.Properties = RemoveProperty(p.Properties, attr)
	return true
}

// GetProperty returns attr's value from processName's property string for
// service.
func (d *Directory) GetProperty(service, processName, attr string) (string, bool) {
	p := d.findProvider(service, processName)
	if p == nil {
		return "", false
	}
	return GetProperty(p.Properties, attr)
}

// FindService scans every known service's active provider, in a stable
// name-sorted order, for one whose property string has attr containing
// needle, resuming from startIndex for a resumable multi-result scan.
func (d *Directory) FindService(attr, needle string, startIndex int) (service string, nextIndex int, ok bool) {
	var names []string
	d.Services.Each(func(name string, _ *ServiceEntry) { names = append(names, name) })
	sort.Strings(names)

	entries := make([]PropEntry, 0, len(names))
	for _, name := range names {
		e, _ := d.Services.Get(name)
		var props string
		if active := e.Active(); active != nil {
			props = active.Properties
		}
		entries = append(entries, PropEntry{Name: name, Props: props})
	}

	idx := Search(entries, startIndex, attr, needle)
	if idx < 0 {
		return "", 0, false
	}
	return entries[idx].Name, idx + 1, true
}

// sortProvidersByTieBreak orders providers so the greatest ProcessName is
// first; it's a small insertion sort since provider lists are typically
// one or two entries long.
func sortProvidersByTieBreak(providers []*Provider) {
	for i := 1; i < len(providers); i++ {
		for j := i; j > 0 && providers[j].ProcessName > providers[j-1].ProcessName; j-- {
			providers[j], providers[j-1] = providers[j-1], providers[j]
		}
	}
}
