package io

import "github.com/behrlich/ioruntime/internal/op"

// Canceller and CancelHandle re-export internal/op's cancellation pair
// at the public surface: Op[T].OpCanceller already builds one of these,
// this package just gives external callers a name for the type that
// doesn't require importing internal/op directly.
type Canceller = op.Canceller

// CancelHandle is the cloneable half of a Canceller pair that triggers
// cancellation (it can also report it, via Canceled). It
// satisfies the top-level Cancellable interface (Cancel() error), so a
// handle can stand in as the loser side of a Select.
type CancelHandle = op.CancelHandle
