/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package inflight

// Result is a handle to the eventual completion of a dispatched call.
type Result[V any] struct {
	done     chan struct{}
	value    V
	admitted bool
	err      error
}

// Done returns a channel that is closed when the dispatched call completes
// (or is bounced).
func (r *Result[V]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the dispatched call completes and returns its outcome:
// the value produced by the work, whether the call was admitted, and the
// error raised by the work, if any. A panic inside the dispatched work is
// carried as a *PanicError rather than crashing the worker goroutine.
func (r *Result[V]) Wait() (value V, admitted bool, err error) {
	<-r.done
	return r.value, r.admitted, r.err
}

// DoAsync is the dispatched flavor of Do: the admission decision is made
// synchronously, fn runs on its own goroutine, and the returned handle
// carries the eventual outcome.
func (l *Limiter[K, V]) DoAsync(key K, fn func() (V, error)) *Result[V] {
	return l.DoAsyncWithLimit(key, 0, fn)
}

// DoAsyncWithLimit is the dispatched flavor of DoWithLimit.
//
// Admission happens before the method returns, so concurrent dispatches for
// one key are bounded exactly like synchronous calls. A bounced dispatch
// returns an already-completed handle.
func (l *Limiter[K, V]) DoAsyncWithLimit(key K, extraLimit int, fn func() (V, error)) *Result[V] {
	if fn == nil {
		panic("inflight: fn must not be nil")
	}
	res := &Result[V]{done: make(chan struct{})}
	if !l.acquire(key, extraLimit) {
		close(res.done)
		return res
	}
	res.admitted = true
	go func() {
		defer close(res.done)
		defer l.release(key)
		defer func() {
			if p := recover(); p != nil {
				res.err = newPanicError(p)
			}
		}()
		res.value, res.err = fn()
	}()
	return res
}

// ExecAsync is the dispatched side-effecting flavor of Exec.
func (l *Limiter[K, V]) ExecAsync(key K, fn func() error) *Result[struct{}] {
	return l.ExecAsyncWithLimit(key, 0, fn)
}

// ExecAsyncWithLimit is the dispatched side-effecting flavor of ExecWithLimit.
func (l *Limiter[K, V]) ExecAsyncWithLimit(key K, extraLimit int, fn func() error) *Result[struct{}] {
	if fn == nil {
		panic("inflight: fn must not be nil")
	}
	res := &Result[struct{}]{done: make(chan struct{})}
	if !l.acquire(key, extraLimit) {
		close(res.done)
		return res
	}
	res.admitted = true
	go func() {
		defer close(res.done)
		defer l.release(key)
		defer func() {
			if p := recover(); p != nil {
				res.err = newPanicError(p)
			}
		}()
		res.err = fn()
	}()
	return res
}
