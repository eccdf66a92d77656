// SPDX-License-Identifier: GPL-3.0-or-later

// Package msg implements the O2 message wire format and the
// build/extract pipeline: a zero-padded address and type string,
// followed by argument bytes whose layout is driven by the type string,
// with bundles as a recursive special case.
//
// Rather than keeping one shared in-memory message representation and
// swapping bytes in place only at the socket boundary, this package
// always marshals to/from an explicit big-endian wire
// encoding ([Message.Marshal] / [Unmarshal]): Go's encoding/binary makes
// that just as cheap as an in-place swap and removes an entire class of
// "did we swap this already" bugs, without changing a single byte that
// ends up on the wire.
package msg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/rbdannenberg/o2go/internal/wireutil"
)

// Flag bits carried in a message's flags word.
const (
	// FlagTCP hints that this message was (or should be) delivered over
	// TCP rather than UDP; set by the sender, consulted by the send
	// pipeline (internal/sendpipe) when no more specific routing
	// information is available.
	FlagTCP uint32 = 1 << 0
	// FlagBundle marks the address as the literal "#bundle" shell; set
	// automatically by [Builder.FinishBundle].
	FlagBundle uint32 = 1 << 1
)

// BundleAddress is the literal address prefix that marks a bundle.
const BundleAddress = "#bundle"

// Message is a decoded (or about-to-be-encoded) O2 message: a timestamp,
// an address, a type string (including its leading comma), and the raw
// argument bytes laid out according to the type string. A bundle is a
// Message whose Address is [BundleAddress]; its Data is a timestamp
// followed by length-prefixed nested messages (see bundle.go).
type Message struct {
	Timestamp float64
	Flags     uint32
	Address   string
	TypeTag   string // includes the leading ',' for non-bundle messages
	Data      []byte
}

// IsBundle reports whether m is a bundle shell.
func (m *Message) IsBundle() bool {
	return m.Address == BundleAddress
}

// TCP reports whether [FlagTCP] is set.
func (m *Message) TCP() bool { return m.Flags&FlagTCP != 0 }

// ErrTruncated is returned by [Unmarshal] when buf is shorter than its own
// declared length field claims.
var ErrTruncated = errors.New("o2/msg: truncated message")

// ErrBadPadding is returned when a padded string segment does not contain a
// terminating zero byte within bounds, which would desynchronize the
// cursor for every field that follows.
var ErrBadPadding = errors.New("o2/msg: string is not zero-padded/terminated")

// Marshal encodes m into the wire format: length, flags, timestamp,
// padded address, padded type string, argument bytes. The returned
// length field does not include itself: a reader adds 4 to know how
// many bytes to skip.
func (m *Message) Marshal() []byte {
	body := make([]byte, 0, 16+len(m.Address)+len(m.TypeTag)+len(m.Data))
	var tmp [8]byte
	binary.BigEndian.PutUint32(tmp[:4], m.Flags)
	body = append(body, tmp[:4]...)
	binary.BigEndian.PutUint64(tmp[:8], math.Float64bits(m.Timestamp))
	body = append(body, tmp[:8]...)
	body = wireutil.AppendPadded(body, m.Address)
	body = wireutil.AppendPadded(body, m.TypeTag)
	body = append(body, m.Data...)

	out := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	out = append(out, body...)
	return out
}

// Unmarshal decodes a single message (not a length-prefixed stream) from
// buf, which must contain exactly the framed message beginning with its
// length field.
func Unmarshal(buf []byte) (*Message, error) {
	if len(buf) < 4 {
		return nil, ErrTruncated
	}
	length := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < length {
		return nil, ErrTruncated
	}
	buf = buf[:length]
	if len(buf) < 12 {
		return nil, ErrTruncated
	}
	flags := binary.BigEndian.Uint32(buf[:4])
	ts := math.Float64frombits(binary.BigEndian.Uint64(buf[4:12]))
	cur := buf[12:]

	addr, n, err := readPadded(cur)
	if err != nil {
		return nil, err
	}
	cur = cur[n:]

	types, n, err := readPadded(cur)
	if err != nil {
		return nil, err
	}
	cur = cur[n:]

	return &Message{
		Timestamp: ts,
		Flags:     flags,
		Address:   addr,
		TypeTag:   types,
		Data:      append([]byte(nil), cur...),
	}, nil
}

// readPadded reads one zero-padded, 4-byte-aligned string starting at
// buf[0], returning the unpadded string and the number of bytes (including
// padding) consumed.
func readPadded(buf []byte) (string, int, error) {
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0 {
			continue
		}
		padded := wireutil.Pad4Len(i)
		if padded > len(buf) {
			return "", 0, ErrBadPadding
		}
		return string(buf[:i]), padded, nil
	}
	return "", 0, ErrBadPadding
}

// String renders m for log lines, e.g. "/synth/freq ,f (4 arg bytes)".
func (m *Message) String() string {
	return fmt.Sprintf("%s %s (%d arg bytes)", m.Address, m.TypeTag, len(m.Data))
}
