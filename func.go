// SPDX-License-Identifier: GPL-3.0-or-later
//

package o2

import "context"

// Func is a generic operation that accepts an input and returns a result.
// [*DialFunc] and [*ObserveConnFunc] both satisfy this shape; it exists so
// their Call methods can be asserted against a common interface in tests
// and swapped for adapters in callers that need custom behavior.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a function as a [Func] implementation.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
