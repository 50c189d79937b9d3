/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package gate provides a one-shot atomic open/close latch.
//
// The typical use case is guarding idempotent start/stop of a background
// loop: many goroutines may race to start the loop, exactly one TryOpen call
// succeeds, and after the loop exits and TryClose is called the latch can be
// opened again.
package gate

import (
	"go.uber.org/atomic"
)

// Gate is a lock-free one-shot boolean latch.
// The zero value is a closed gate, ready for use.
// A Gate must not be copied after first use.
type Gate struct {
	open atomic.Bool
}

// TryOpen transitions the gate from closed to open.
// It returns true for exactly one of any set of concurrent callers racing on
// a closed gate; all others get false with no side effects.
func (g *Gate) TryOpen() bool {
	return g.open.CompareAndSwap(false, true)
}

// TryClose transitions the gate from open to closed.
// It is the mirror of TryOpen: exactly one concurrent caller succeeds per
// open/close cycle.
func (g *Gate) TryClose() bool {
	return g.open.CompareAndSwap(true, false)
}

// IsOpen reports the current state of the gate.
// It is a snapshot: the state may change immediately after the call returns.
func (g *Gate) IsOpen() bool {
	return g.open.Load()
}
