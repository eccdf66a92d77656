// SPDX-License-Identifier: GPL-3.0-or-later

package msg

import (
	"encoding/binary"
	"math"
)

// AddBundleElement appends an already-encoded nested message (the output
// of [Message.Marshal], or a nested bundle's own Marshal) to the bundle
// under construction. Must be preceded by [Builder.StartBundle] and may not
// be mixed with argument Add* calls on the same Builder between Start and
// Finish calls.
func (b *Builder) AddBundleElement(encodedNested []byte) error {
	if b.mode == modeArgs {
		return ErrMixedBuilderUse
	}
	if b.mode != modeBundle {
		return ErrMixedBuilderUse
	}
	b.bundleElems = append(b.bundleElems, encodedNested...)
	return nil
}

// StartBundle begins building a bundle with the given shared timestamp.
// Must be called before any [Builder.AddBundleElement] call and may not be
// combined with argument Add* calls.
func (b *Builder) StartBundle(ts float64) error {
	if b.mode == modeArgs {
		return ErrMixedBuilderUse
	}
	b.mode = modeBundle
	b.bundleTS = ts
	return nil
}

// FinishBundle packs the accumulated bundle elements into a [Message]
// whose Address is [BundleAddress]: a bundle message has an address
// beginning #bundle; its payload is a timestamp followed by
// length-prefixed nested messages.
func (b *Builder) FinishBundle(tcp bool) (*Message, error) {
	if b.mode != modeBundle {
		return nil, ErrMixedBuilderUse
	}
	flags := FlagBundle
	if tcp {
		flags |= FlagTCP
	}
	data := appendUint64(nil, math.Float64bits(b.bundleTS))
	data = append(data, b.bundleElems...)
	return &Message{
		Timestamp: b.bundleTS,
		Flags:     flags,
		Address:   BundleAddress,
		TypeTag:   "",
		Data:      data,
	}, nil
}

// SplitBundle walks the nested messages of a bundle [Message], returning
// each fully decoded. Each nested element inherits the outer TCP flag.
func SplitBundle(bundle *Message) ([]*Message, error) {
	if !bundle.IsBundle() {
		return nil, nil
	}
	var out []*Message
	data := bundle.Data
	if len(data) < 8 {
		return nil, ErrTruncated
	}
	data = data[8:] // skip the shared bundle timestamp; each nested msg carries its own too
	for len(data) > 0 {
		nested, n, err := unmarshalOne(data)
		if err != nil {
			return nil, err
		}
		if bundle.TCP() {
			nested.Flags |= FlagTCP
		}
		out = append(out, nested)
		data = data[n:]
	}
	return out, nil
}

// unmarshalOne decodes one length-prefixed message from the front of buf
// and reports how many bytes it consumed.
func unmarshalOne(buf []byte) (*Message, int, error) {
	if len(buf) < 4 {
		return nil, 0, ErrTruncated
	}
	length := binary.BigEndian.Uint32(buf[:4])
	total := 4 + int(length)
	if total > len(buf) {
		return nil, 0, ErrTruncated
	}
	m, err := Unmarshal(buf[:total])
	if err != nil {
		return nil, 0, err
	}
	return m, total, nil
}
