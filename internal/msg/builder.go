// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrMixedBuilderUse is returned when a caller mixes argument-append calls
// ([Builder.AddInt32] etc.) with bundle-append calls ([Builder.AddBundleElement])
// on the same [Builder] between [Builder.Start] and a Finish call.
var ErrMixedBuilderUse = errors.New("o2/msg: builder cannot mix argument and bundle operations")

// mode tracks which family of Add* calls a Builder has committed to
// since the last Start, enforcing the no-mixing rule between argument
// and bundle appends.
type mode int

const (
	modeNone mode = iota
	modeArgs
	modeBundle
)

// Builder is a non-reentrant scratch buffer for
// constructing one message at a time. Callers needing concurrent
// construction (e.g. one per goroutine) should use separate Builder
// instances; the top-level API keeps one per call path.
type Builder struct {
	types       []byte // type characters only, no leading comma
	data        []byte
	mode        mode
	bundleTS    float64
	bundleElems []byte // length-prefixed encoded nested messages
}

// Start resets the builder to begin a new message.
func (b *Builder) Start() {
	b.types = b.types[:0]
	b.data = b.data[:0]
	b.mode = modeNone
	b.bundleElems = b.bundleElems[:0]
}

func (b *Builder) enterArgMode() error {
	if b.mode == modeBundle {
		return ErrMixedBuilderUse
	}
	b.mode = modeArgs
	return nil
}

// AddInt32 appends a 32-bit integer argument.
func (b *Builder) AddInt32(v int32) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'i')
	b.data = appendUint32(b.data, uint32(v))
	return nil
}

// AddInt64 appends a 64-bit integer argument.
func (b *Builder) AddInt64(v int64) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'h')
	b.data = appendUint64(b.data, uint64(v))
	return nil
}

// AddFloat32 appends a 32-bit float argument.
func (b *Builder) AddFloat32(v float32) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'f')
	b.data = appendUint32(b.data, math.Float32bits(v))
	return nil
}

// AddFloat64 appends a 64-bit double argument.
func (b *Builder) AddFloat64(v float64) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'd')
	b.data = appendUint64(b.data, math.Float64bits(v))
	return nil
}

// AddTime appends a timestamp argument (type 't', same layout as a double).
func (b *Builder) AddTime(v float64) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 't')
	b.data = appendUint64(b.data, math.Float64bits(v))
	return nil
}

// AddChar appends a char argument, stored as a 32-bit int as the wire
// format dictates.
func (b *Builder) AddChar(v byte) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'c')
	b.data = appendUint32(b.data, uint32(v))
	return nil
}

// AddBool appends a 'T' or 'F' type character; these carry no data.
func (b *Builder) AddBool(v bool) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	if v {
		b.types = append(b.types, 'T')
	} else {
		b.types = append(b.types, 'F')
	}
	return nil
}

// AddNil appends the 'N' (nil) type character, which carries no data.
func (b *Builder) AddNil() error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'N')
	return nil
}

// AddInfinitum appends the 'I' (infinitum) type character.
func (b *Builder) AddInfinitum() error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'I')
	return nil
}

// AddMidi appends a 4-byte MIDI message.
func (b *Builder) AddMidi(bytes4 [4]byte) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'm')
	b.data = append(b.data, bytes4[:]...)
	return nil
}

// AddString appends a string argument (type 's').
func (b *Builder) AddString(s string) error {
	return b.addStringLike('s', s)
}

// AddSymbol appends a symbol argument (type 'S'); symbols and strings share
// a wire layout and differ only in how handlers interpret them.
func (b *Builder) AddSymbol(s string) error {
	return b.addStringLike('S', s)
}

func (b *Builder) addStringLike(typ byte, s string) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, typ)
	b.data = appendPaddedData(b.data, s)
	return nil
}

// AddBlob appends a length-prefixed, zero-padded byte blob (type 'b').
func (b *Builder) AddBlob(data []byte) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'b')
	b.data = appendUint32(b.data, uint32(len(data)))
	b.data = appendBlobPadded(b.data, data)
	return nil
}

// AddVector appends a homogeneous vector: element type character, then the
// byte length of the vector, then the raw element bytes (already
// individually big-endian encoded by the caller via repeated use of the
// element-sized helpers, or constructed with [AppendVectorElement]).
func (b *Builder) AddVector(elemType byte, elemBytes []byte) error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, 'v', elemType)
	b.data = appendUint32(b.data, uint32(len(elemBytes)))
	b.data = append(b.data, elemBytes...)
	return nil
}

// AppendVectorElement encodes one element of elemType, coercing v's
// decoded value from whatever wire type it actually holds, and appends
// the result to dst. Callers building a vector one element at a time
// (or the extractor's own array-to-vector transcoding) accumulate
// elemBytes this way before handing them to AddVector.
func AppendVectorElement(dst []byte, elemType byte, v Arg) ([]byte, error) {
	coerced, ok := coerce(v, v.Type, elemType)
	if !ok {
		return nil, ErrExtractFailed
	}
	switch elemType {
	case 'i', 'c':
		return appendUint32(dst, uint32(coerced.I32)), nil
	case 'h':
		return appendUint64(dst, uint64(coerced.I64)), nil
	case 'f':
		return appendUint32(dst, math.Float32bits(coerced.F32)), nil
	case 'd', 't':
		return appendUint64(dst, math.Float64bits(coerced.F64)), nil
	default:
		return nil, ErrExtractFailed
	}
}

// ArrayStart appends the '[' array-start delimiter.
func (b *Builder) ArrayStart() error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, '[')
	return nil
}

// ArrayEnd appends the ']' array-end delimiter.
func (b *Builder) ArrayEnd() error {
	if err := b.enterArgMode(); err != nil {
		return err
	}
	b.types = append(b.types, ']')
	return nil
}

// Finish packs the accumulated type string and argument bytes into a
// [Message] addressed at "/"+service+address (service message), zero-padded,
// with the given timestamp and TCP hint. It does not reset the builder;
// call [Builder.Start] before building the next message.
func (b *Builder) Finish(ts float64, service, address string, tcp bool) (*Message, error) {
	if b.mode == modeBundle {
		return nil, ErrMixedBuilderUse
	}
	flags := uint32(0)
	if tcp {
		flags |= FlagTCP
	}
	return &Message{
		Timestamp: ts,
		Flags:     flags,
		Address:   "/" + service + address,
		TypeTag:   "," + string(b.types),
		Data:      append([]byte(nil), b.data...),
	}, nil
}

func appendUint32(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

func appendUint64(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

// appendPaddedData zero-fills the padded region before copying so
// trailing garbage past the string terminator is always defined as zero.
func appendPaddedData(dst []byte, s string) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, paddedLen(len(s)))...)
	for i := start; i < len(dst); i++ {
		dst[i] = 0
	}
	copy(dst[start:], s)
	return dst
}

// appendBlobPadded pads raw bytes (not a zero-terminated string) out to a
// 4-byte boundary: 0-3 zero bytes, with zero padding when data is already
// aligned (unlike strings, a blob needs no terminator).
func appendBlobPadded(dst []byte, data []byte) []byte {
	dst = append(dst, data...)
	pad := (4 - len(data)%4) % 4
	for i := 0; i < pad; i++ {
		dst = append(dst, 0)
	}
	return dst
}

func paddedLen(n int) int {
	return ((n + 4) / 4) * 4
}
