// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrExtractFailed is returned by [Extractor.Next] once a bounds
// violation or type mismatch has occurred: the Extractor latches into a
// failed state rather than trying to resynchronize.
var ErrExtractFailed = errors.New("o2/msg: extraction failed (bounds or type mismatch)")

// Arg is one extracted, possibly-coerced argument value. Exactly one field
// is meaningful, selected by Type (the *requested* type, which may differ
// from the wire type when coercion applied).
type Arg struct {
	Type  byte
	I32   int32
	I64   int64
	F32   float32
	F64   float64
	Bool  bool
	Str   string
	Blob  []byte
	Vec   []byte // raw vector element bytes; VecElemType describes their layout
	VecElemType byte
}

// Extractor walks the type string and argument bytes of one [Message],
// coercing between compatible numeric types on request (int32, int64,
// float32, float64, bool all freely inter-coerce).
// Like [Builder], this is a non-reentrant, single-message scratch: start a
// new one (or call [Extractor.Reset]) before extracting from the next
// message.
type Extractor struct {
	types  string // type chars only, no leading comma
	data   []byte
	typeAt int
	dataAt int
	failed bool

	// Vector-as-array iteration state: set by beginVectorAsArray once a
	// 'v' argument is requested as '[', and consulted by Next ahead of
	// the normal type-string walk until the vector is exhausted.
	vecActive   bool
	vecElemType byte
	vecData     []byte
	vecAt       int
}

// Reset points the extractor at m's type string and argument bytes.
func (e *Extractor) Reset(m *Message) {
	e.types = trimLeadingComma(m.TypeTag)
	e.data = m.Data
	e.typeAt = 0
	e.dataAt = 0
	e.failed = false
	e.vecActive = false
	e.vecElemType = 0
	e.vecData = nil
	e.vecAt = 0
}

func trimLeadingComma(s string) string {
	if len(s) > 0 && s[0] == ',' {
		return s[1:]
	}
	return s
}

// Done reports whether every type character has been consumed. A vector
// mid-iteration as an array counts as not-done even though its single 'v'
// and elemType characters are already behind typeAt.
func (e *Extractor) Done() bool {
	return e.failed || (!e.vecActive && e.typeAt >= len(e.types))
}

// Failed reports whether a previous [Extractor.Next] call hit a bounds
// violation or type mismatch.
func (e *Extractor) Failed() bool { return e.failed }

// PeekType returns the next wire type character without consuming it, or 0
// if there are none left.
func (e *Extractor) PeekType() byte {
	if e.typeAt >= len(e.types) {
		return 0
	}
	return e.types[e.typeAt]
}

// Next reads the next argument, coercing it to expected if possible.
// expected may be 0 to mean "whatever is actually on the wire, no
// coercion". Array delimiters '[' and ']' are emitted as zero-value Args
// with Type set to the delimiter itself and never coerced.
//
// A 'v' argument requested as '[' is transcoded into an array: Next
// returns Arg{Type: '['} and each following call (regardless of
// expected) yields one vector element until a synthetic Arg{Type: ']'}
// closes it. Conversely a '[' requested as 'v' consumes the whole
// bracketed run — coercing each element to a common numeric type
// inferred from the first one — and returns it as a single vector Arg.
func (e *Extractor) Next(expected byte) (Arg, error) {
	if e.failed {
		return Arg{}, ErrExtractFailed
	}
	if e.vecActive {
		return e.nextVectorElement(expected)
	}
	if e.typeAt >= len(e.types) {
		e.failed = true
		return Arg{}, ErrExtractFailed
	}
	wire := e.types[e.typeAt]

	if wire == 'v' && expected == '[' {
		e.typeAt++
		return e.beginVectorAsArray()
	}
	if wire == '[' && expected == 'v' {
		e.typeAt++
		return e.collectArrayAsVector()
	}

	e.typeAt++
	if wire == '[' || wire == ']' {
		return Arg{Type: wire}, nil
	}

	raw, err := e.readRaw(wire)
	if err != nil {
		e.failed = true
		return Arg{}, err
	}
	if expected == 0 || expected == wire {
		raw.Type = wire
		return raw, nil
	}
	coerced, ok := coerce(raw, wire, expected)
	if !ok {
		e.failed = true
		return Arg{}, ErrExtractFailed
	}
	return coerced, nil
}

// beginVectorAsArray consumes a vector's elemType character and
// length-prefixed payload exactly as takeVector does, but stores the
// payload for per-element iteration instead of returning it whole, and
// reports the opening '[' immediately.
func (e *Extractor) beginVectorAsArray() (Arg, error) {
	if e.typeAt >= len(e.types) {
		e.failed = true
		return Arg{}, ErrExtractFailed
	}
	elemType := e.types[e.typeAt]
	e.typeAt++
	n, err := e.takeUint32()
	if err != nil {
		e.failed = true
		return Arg{}, err
	}
	if len(e.data)-e.dataAt < int(n) {
		e.failed = true
		return Arg{}, ErrExtractFailed
	}
	e.vecData = e.data[e.dataAt : e.dataAt+int(n)]
	e.dataAt += int(n)
	e.vecElemType = elemType
	e.vecAt = 0
	e.vecActive = true
	return Arg{Type: '['}, nil
}

// nextVectorElement decodes one element out of the active vector's raw
// bytes, independent of the type-string cursor, closing the array with a
// synthetic ']' once the payload is exhausted.
func (e *Extractor) nextVectorElement(expected byte) (Arg, error) {
	size := vectorElemSize(e.vecElemType)
	if e.vecAt >= len(e.vecData) {
		e.vecActive = false
		return Arg{Type: ']'}, nil
	}
	if size == 0 || e.vecAt+size > len(e.vecData) {
		e.failed = true
		return Arg{}, ErrExtractFailed
	}
	raw, err := decodeScalar(e.vecElemType, e.vecData[e.vecAt:e.vecAt+size])
	if err != nil {
		e.failed = true
		return Arg{}, err
	}
	e.vecAt += size
	if expected == 0 || expected == e.vecElemType {
		raw.Type = e.vecElemType
		return raw, nil
	}
	coerced, ok := coerce(raw, e.vecElemType, expected)
	if !ok {
		e.failed = true
		return Arg{}, ErrExtractFailed
	}
	return coerced, nil
}

// collectArrayAsVector reads raw elements from the type string until the
// matching ']', coercing each to the numeric type of the first element,
// and packs them into a single vector Arg.
func (e *Extractor) collectArrayAsVector() (Arg, error) {
	var elemType byte
	var encoded []byte
	for {
		if e.typeAt >= len(e.types) {
			e.failed = true
			return Arg{}, ErrExtractFailed
		}
		wire := e.types[e.typeAt]
		if wire == ']' {
			e.typeAt++
			break
		}
		e.typeAt++
		raw, err := e.readRaw(wire)
		if err != nil {
			e.failed = true
			return Arg{}, err
		}
		raw.Type = wire
		if elemType == 0 {
			elemType = vectorElemTypeFor(wire)
			if elemType == 0 {
				e.failed = true
				return Arg{}, ErrExtractFailed
			}
		}
		encoded, err = AppendVectorElement(encoded, elemType, raw)
		if err != nil {
			e.failed = true
			return Arg{}, err
		}
	}
	if elemType == 0 {
		e.failed = true
		return Arg{}, ErrExtractFailed
	}
	return Arg{Type: 'v', Vec: encoded, VecElemType: elemType}, nil
}

// vectorElemTypeFor reports the vector element type a scalar wire type
// can be packed as, or 0 if that type has no fixed-size vector form
// (strings, blobs and the nullary markers cannot live in a vector).
func vectorElemTypeFor(wire byte) byte {
	switch wire {
	case 'i', 'h', 'f', 'd', 't', 'c':
		return wire
	default:
		return 0
	}
}

// vectorElemSize returns the wire byte width of one vector element, or 0
// for an unrecognized element type.
func vectorElemSize(elemType byte) int {
	switch elemType {
	case 'i', 'c', 'f':
		return 4
	case 'h', 'd', 't':
		return 8
	default:
		return 0
	}
}

// decodeScalar decodes one fixed-size vector element from b, which must
// be exactly vectorElemSize(elemType) bytes.
func decodeScalar(elemType byte, b []byte) (Arg, error) {
	switch elemType {
	case 'i', 'c':
		return Arg{I32: int32(binary.BigEndian.Uint32(b))}, nil
	case 'h':
		return Arg{I64: int64(binary.BigEndian.Uint64(b))}, nil
	case 'f':
		return Arg{F32: math.Float32frombits(binary.BigEndian.Uint32(b))}, nil
	case 'd', 't':
		return Arg{F64: math.Float64frombits(binary.BigEndian.Uint64(b))}, nil
	default:
		return Arg{}, ErrExtractFailed
	}
}

// readRaw decodes the wire-native representation for a single type
// character, advancing the data cursor.
func (e *Extractor) readRaw(wire byte) (Arg, error) {
	switch wire {
	case 'i', 'c':
		v, err := e.takeUint32()
		if err != nil {
			return Arg{}, err
		}
		return Arg{I32: int32(v)}, nil
	case 'h':
		v, err := e.takeUint64()
		if err != nil {
			return Arg{}, err
		}
		return Arg{I64: int64(v)}, nil
	case 'f':
		v, err := e.takeUint32()
		if err != nil {
			return Arg{}, err
		}
		return Arg{F32: math.Float32frombits(v)}, nil
	case 'd', 't':
		v, err := e.takeUint64()
		if err != nil {
			return Arg{}, err
		}
		return Arg{F64: math.Float64frombits(v)}, nil
	case 'T':
		return Arg{Bool: true}, nil
	case 'F':
		return Arg{Bool: false}, nil
	case 'B':
		v, err := e.takeUint32()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Bool: v != 0}, nil
	case 'N', 'I':
		return Arg{}, nil
	case 's', 'S':
		s, err := e.takeString()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Str: s}, nil
	case 'b':
		blob, err := e.takeBlob()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Blob: blob}, nil
	case 'm':
		if len(e.data)-e.dataAt < 4 {
			return Arg{}, ErrExtractFailed
		}
		blob := append([]byte(nil), e.data[e.dataAt:e.dataAt+4]...)
		e.dataAt += 4
		return Arg{Blob: blob}, nil
	case 'v':
		return e.takeVector()
	default:
		return Arg{}, ErrExtractFailed
	}
}

func (e *Extractor) takeUint32() (uint32, error) {
	if len(e.data)-e.dataAt < 4 {
		return 0, ErrExtractFailed
	}
	v := binary.BigEndian.Uint32(e.data[e.dataAt : e.dataAt+4])
	e.dataAt += 4
	return v, nil
}

func (e *Extractor) takeUint64() (uint64, error) {
	if len(e.data)-e.dataAt < 8 {
		return 0, ErrExtractFailed
	}
	v := binary.BigEndian.Uint64(e.data[e.dataAt : e.dataAt+8])
	e.dataAt += 8
	return v, nil
}

func (e *Extractor) takeString() (string, error) {
	rest := e.data[e.dataAt:]
	for i := 0; i < len(rest); i++ {
		if rest[i] != 0 {
			continue
		}
		padded := paddedLen(i)
		if padded > len(rest) {
			return "", ErrExtractFailed
		}
		e.dataAt += padded
		return string(rest[:i]), nil
	}
	return "", ErrExtractFailed
}

func (e *Extractor) takeBlob() ([]byte, error) {
	n, err := e.takeUint32()
	if err != nil {
		return nil, err
	}
	padded := (int(n) + 3) / 4 * 4
	if len(e.data)-e.dataAt < padded {
		return nil, ErrExtractFailed
	}
	blob := append([]byte(nil), e.data[e.dataAt:e.dataAt+int(n)]...)
	e.dataAt += padded
	return blob, nil
}

func (e *Extractor) takeVector() (Arg, error) {
	if e.typeAt >= len(e.types) {
		return Arg{}, ErrExtractFailed
	}
	elemType := e.types[e.typeAt]
	e.typeAt++
	n, err := e.takeUint32()
	if err != nil {
		return Arg{}, err
	}
	if len(e.data)-e.dataAt < int(n) {
		return Arg{}, ErrExtractFailed
	}
	vec := append([]byte(nil), e.data[e.dataAt:e.dataAt+int(n)]...)
	e.dataAt += int(n)
	return Arg{Vec: vec, VecElemType: elemType}, nil
}
