// SPDX-License-Identifier: GPL-3.0-or-later

package msg

// coerce converts a raw Arg decoded as wire type `from` into the value
// requested as `to`. Only the numeric family (i/h/f/d/t/c/B) interconverts,
// with T and F also accepted as sources (as 1 and 0); strings, blobs, and
// the nullary markers N/I never coerce into anything else. Vector/array transcoding is a separate concern, handled
// by [Extractor.Next] and [AppendVectorElement] (which itself calls
// coerce per element) rather than by this function.
func coerce(raw Arg, from, to byte) (Arg, bool) {
	fromVal, ok := numericValue(raw, from)
	if !ok {
		return Arg{}, false
	}
	switch to {
	case 'i':
		return Arg{Type: to, I32: int32(fromVal)}, true
	case 'h':
		return Arg{Type: to, I64: int64(fromVal)}, true
	case 'f':
		return Arg{Type: to, F32: float32(fromVal)}, true
	case 'd', 't':
		return Arg{Type: to, F64: fromVal}, true
	case 'c':
		return Arg{Type: to, I32: int32(fromVal)}, true
	case 'B':
		return Arg{Type: to, Bool: fromVal != 0}, true
	default:
		return Arg{}, false
	}
}

// numericValue extracts the decoded raw value as a float64, the common
// currency for coercion, or reports that `from` is not a numeric type.
func numericValue(raw Arg, from byte) (float64, bool) {
	switch from {
	case 'i', 'c':
		return float64(raw.I32), true
	case 'h':
		return float64(raw.I64), true
	case 'f':
		return float64(raw.F32), true
	case 'd', 't':
		return raw.F64, true
	case 'T':
		return 1, true
	case 'F':
		return 0, true
	case 'B':
		if raw.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
