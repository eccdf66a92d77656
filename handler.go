// SPDX-License-Identifier: GPL-3.0-or-later

package o2

import "github.com/rbdannenberg/o2go/internal/msg"

// Message is the decoded form of one O2 message: a timestamp, an
// address, a type string, and raw argument bytes. Build one with
// [Builder] and read it back with [Extractor].
type Message = msg.Message

// Arg is one argument extracted (and possibly coerced) from a [Message]
// by [Extractor.Next].
type Arg = msg.Arg

// Builder constructs one [Message] at a time; see internal/msg for the
// full Add* surface (AddInt32, AddString, AddBlob, ...).
type Builder = msg.Builder

// Extractor reads arguments back out of a [Message], coercing between
// compatible numeric types on request.
type Extractor = msg.Extractor

// Handler is a message callback registered at a path with
// [Ensemble.MethodNew] or [Ensemble.CreateServiceHandler]. userData is
// whatever was passed at registration time.
type Handler func(m *Message, userData any) error

// MethodNew installs h at path under service, creating the service's
// handler tree on first use. path is given without the leading service
// component (e.g. "/lfo/freq" registers under "synth" as
// "/synth/lfo/freq"). Pass typespec to document the expected argument
// types for callers; it is not currently enforced.
func (e *Ensemble) MethodNew(service, path string, typespec string, h Handler, userData any) error {
	return e.addTreeHandler(service, path, h, userData)
}
