// Package oracle defines the interestingness predicate consumed by the
// reduction engine and its external-command and caching implementations.
package oracle

import "context"

// Oracle decides whether a rendered candidate still reproduces the property
// under investigation. Implementations may be slow (spawning a compiler is
// typical) and are always invoked outside of any engine lock. An error
// return means the predicate itself faulted and is fatal to the run; "not
// interesting" is the (false, nil) result, never an error.
type Oracle interface {
	Test(ctx context.Context, source []byte) (bool, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, source []byte) (bool, error)

// Test implements Oracle.
func (f Func) Test(ctx context.Context, source []byte) (bool, error) {
	return f(ctx, source)
}
