// SPDX-License-Identifier: GPL-3.0-or-later

// Package o2 implements the O2 peer-to-peer message plane: a process
// joins a named ensemble, discovers peers on the LAN (or through an
// explicit hub), advertises named services, and exchanges typed,
// optionally time-stamped messages addressed by OSC-style hierarchical
// paths.
//
// # Core abstraction
//
// An [Ensemble] is one process's view of the ensemble: its own process
// identity, the service directory, the address dispatcher, the
// scheduler, the clock-sync state, and the socket event loop that
// drives all of the above. Construct one with [NewEnsemble] and drive
// it by repeatedly calling [Ensemble.Poll], or hand it to [Ensemble.Run]
// for a blocking loop.
//
// # Message construction
//
// [Builder] accumulates typed arguments ([Builder.AddInt32],
// [Builder.AddString], ...) and finishes into a [Message] with
// [Builder.Finish] or, for bundles, [Builder.FinishBundle]. [Extractor]
// walks an inbound [Message]'s arguments back out, coercing between
// numeric types on request.
//
// # Services and taps
//
// [Ensemble.CreateServiceHandler] and [Ensemble.CreateServiceTree]
// register a provider for a service name; [Ensemble.MethodNew] attaches
// a [Handler] to a path under one of the ensemble's own services.
// [Ensemble.Tap] forwards a copy of every message accepted for one
// service to another, named service.
//
// # Clock synchronization
//
// One process calls [Ensemble.ClockSet] to become the ensemble's time
// reference; every other process estimates and tracks the offset with
// bounded drift. [Ensemble.TimeGet] returns the current best estimate
// of global time, or false before this process has synchronized.
//
// # Observability
//
// Every component is threaded a [SLogger] via [Config], exactly as the
// rest of this codebase's ambient stack: Info for lifecycle events
// (process discovered/removed, service added/removed, clock
// synchronized, connection opened/closed), Debug for per-message and
// per-poll-cycle events. By default logging is disabled; set
// [Config.Logger] to a real [log/slog.Logger] to enable it. Transport
// errors are classified with [Config.ErrClassifier]
// (github.com/rbdannenberg/o2go/internal/errclass.Default by default)
// so log lines carry a short, stable errClass alongside the raw error.
//
// # Scope
//
// This package is the process-level message plane only: OSC gateway
// compatibility, MQTT relay, STUN public-IP discovery, the o2lite
// minimal client, web-socket bridging, and durable message storage are
// all out of scope and have no analogue here.
package o2
