/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package inflight

import (
	"reflect"
	"sync"
)

// Limiter is a per-key bounded concurrency gate for units of work.
//
// For every key it tracks the number of calls currently executing and admits
// a new call only while that number does not exceed the configured extra
// admission limit (a key with c calls in flight admits a new one iff
// c <= extraLimit, so at most extraLimit+1 calls run concurrently per key).
// Excess calls are bounced.
//
// The registry mutation regions are constant-time (map lookup, increment,
// delete); the work itself always runs with no lock held, so a long-running
// call never blocks admission decisions for other keys.
type Limiter[K comparable, V any] struct {
	mu    sync.Mutex
	slots map[K]int

	metricsCollector MetricsCollector
}

// NewLimiter creates a new Limiter with metrics disabled.
func NewLimiter[K comparable, V any]() *Limiter[K, V] {
	return NewLimiterWithMetrics[K, V](nil)
}

// NewLimiterWithMetrics creates a new Limiter with the provided metrics collector.
// The collector may be nil, in which case metrics are disabled.
func NewLimiterWithMetrics[K comparable, V any](metricsCollector MetricsCollector) *Limiter[K, V] {
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	return &Limiter[K, V]{
		slots:            make(map[K]int),
		metricsCollector: metricsCollector,
	}
}

// Do executes fn if no other call for the same key is currently in flight.
// It is shorthand for DoWithLimit(key, 0, fn).
func (l *Limiter[K, V]) Do(key K, fn func() (V, error)) (value V, admitted bool, err error) {
	return l.DoWithLimit(key, 0, fn)
}

// DoWithLimit executes fn if the number of calls currently in flight for key
// does not exceed extraLimit, and returns fn's result.
//
// A bounced call returns the zero value of V, admitted=false, and a nil
// error; fn is not executed. An error returned by fn propagates to the
// caller of the admitted call.
func (l *Limiter[K, V]) DoWithLimit(key K, extraLimit int, fn func() (V, error)) (value V, admitted bool, err error) {
	if fn == nil {
		panic("inflight: fn must not be nil")
	}
	if !l.acquire(key, extraLimit) {
		return value, false, nil
	}
	defer l.release(key)
	value, err = fn()
	return value, true, err
}

// Exec is the side-effecting flavor of Do.
func (l *Limiter[K, V]) Exec(key K, fn func() error) (admitted bool, err error) {
	return l.ExecWithLimit(key, 0, fn)
}

// ExecWithLimit is the side-effecting flavor of DoWithLimit.
func (l *Limiter[K, V]) ExecWithLimit(key K, extraLimit int, fn func() error) (admitted bool, err error) {
	if fn == nil {
		panic("inflight: fn must not be nil")
	}
	if !l.acquire(key, extraLimit) {
		return false, nil
	}
	defer l.release(key)
	return true, fn()
}

// InFlight returns the number of calls currently in flight for key.
func (l *Limiter[K, V]) InFlight(key K) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slots[key]
}

func (l *Limiter[K, V]) acquire(key K, extraLimit int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.slots[key]
	if count > extraLimit {
		l.metricsCollector.IncBounced()
		return false
	}
	l.slots[key] = count + 1
	l.metricsCollector.IncAdmitted()
	l.metricsCollector.SetKeysAmount(len(l.slots))
	return true
}

// release runs deferred on every completion path, including a panicking fn,
// so a slot is never leaked.
func (l *Limiter[K, V]) release(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.slots[key] - 1
	if count <= 0 {
		delete(l.slots, key)
	} else {
		l.slots[key] = count
	}
	l.metricsCollector.SetKeysAmount(len(l.slots))
}

// FuncKey returns the identity of a unit of work, usable as a Limiter or
// memoize.Cache key when the caller does not supply an explicit one.
//
// The identity is the address of the function's code, not of its captured
// arguments: closures produced by the same closure expression share one
// code address, while method values and distinct closure instances may not.
// Callers whose work closures differ only by captured argument values should
// supply an explicit key instead.
func FuncKey(fn any) uintptr {
	if fn == nil {
		panic("inflight: fn must not be nil")
	}
	return reflect.ValueOf(fn).Pointer()
}
