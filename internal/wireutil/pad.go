// SPDX-License-Identifier: GPL-3.0-or-later

// Package wireutil holds the small byte-level primitives that the message
// codec (internal/msg) and the hash tables (internal/htable) both depend on:
// zero-padding to a 4-byte boundary and the word-accumulator hash that only
// works correctly because every key is padded that way.
package wireutil

// Pad4Len returns the total padded length for a string of n data bytes
// followed by a terminating zero, rounded up to the next multiple of 4.
// Every in-memory O2 string carries at least one and at most four zero
// bytes of padding; this is what lets HashBytes and the wire codec both
// consume whole 4-byte words without a separate length field.
func Pad4Len(n int) int {
	return ((n + 4) / 4) * 4
}

// AppendPadded appends s to dst, followed by zero padding out to the next
// 4-byte boundary (at least one zero byte, at most four).
func AppendPadded(dst []byte, s string) []byte {
	dst = append(dst, s...)
	pad := Pad4Len(len(s)) - len(s)
	for i := 0; i < pad; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// hashMultiplier is the fixed odd 32-bit constant the accumulator hash
// multiplies by before folding in each successive 4-byte word. Any odd
// constant works; this one is carried over unchanged from the reference
// implementation so that two processes running compatible builds derive
// the same hash for the same padded key (the hash itself is never sent on
// the wire, but keeping it identical avoids gratuitous divergence from the
// system this was distilled from).
const hashMultiplier uint32 = 0x1000193

// HashBytes hashes a zero-padded, 4-byte-aligned key. Callers must pass a
// buffer whose length is already a multiple of 4 (e.g. via AppendPadded);
// the loop stops as soon as it reads the word containing the string's
// terminating zero byte so that two keys differing only in what garbage
// follows their terminator still hash identically.
func HashBytes(key []byte) uint32 {
	var h uint32
	for i := 0; i+4 <= len(key); i += 4 {
		word := uint32(key[i]) | uint32(key[i+1])<<8 | uint32(key[i+2])<<16 | uint32(key[i+3])<<24
		h = h*hashMultiplier + word
		if key[i] == 0 || key[i+1] == 0 || key[i+2] == 0 || key[i+3] == 0 {
			break
		}
	}
	return h
}

// HashString is a convenience wrapper that pads s before hashing.
func HashString(s string) uint32 {
	return HashBytes(AppendPadded(nil, s))
}
