/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package inflight provides keyed admission control for concurrent calls.
//
// A Limiter bounds how many invocations of the same logical operation
// (grouped by an identity key) may be in flight at once. Calls beyond the
// limit are bounced: they return immediately without executing the work and
// without queuing. Bouncing is the intended backpressure behavior, not an
// error.
//
// Each Limiter owns its own private registry; call sites that want to share
// admission state must share a Limiter instance.
package inflight
