/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package memoize provides keyed time-bounded memoized execution.
//
// A Cache runs a unit of work at most once per key inside a validity window
// and serves the cached result to concurrent and subsequent callers until it
// expires. Expired entries are reclaimed eagerly on every call and,
// optionally, by a background cleanup loop whose idempotent start/stop is
// guarded by a gate.Gate.
//
// There is no size bound and no capacity-based eviction: a live entry is
// removed only when its expiry passes. Each Cache owns its own private
// table; unrelated call sites cannot collide on keys unless they share a
// Cache instance.
package memoize
