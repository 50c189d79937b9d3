/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package timeout provides a cooperative deadline wrapper for units of work.
//
// A unit of work is raced against a timer: whichever finishes first wins.
// On timeout, an optional fallback callback is invoked and the work's
// context is canceled, letting the abandoned work wind down cooperatively.
// There is no forceful termination of in-flight work.
package timeout

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the work does not complete before the deadline.
var ErrTimeout = errors.New("work timed out")

type result[V any] struct {
	value V
	err   error
}

// Do runs work on its own goroutine and waits for the first of three
// completions: the work finishing, the deadline passing, or ctx being
// canceled.
//
// On timeout, onTimeout is invoked (it may be nil) and ErrTimeout is
// returned; the context passed to work is canceled so it can stop early.
// A nil ctx defaults to context.Background.
func Do[V any](ctx context.Context, timeout time.Duration, work func(ctx context.Context) (V, error), onTimeout func()) (V, error) {
	if work == nil {
		panic("timeout: work must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resCh := make(chan result[V], 1)
	go func() {
		value, err := work(workCtx)
		resCh <- result[V]{value, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		return res.value, res.err
	case <-timer.C:
		if onTimeout != nil {
			onTimeout()
		}
		var zero V
		return zero, ErrTimeout
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Exec is the side-effecting flavor of Do.
func Exec(ctx context.Context, timeout time.Duration, work func(ctx context.Context) error, onTimeout func()) error {
	if work == nil {
		panic("timeout: work must not be nil")
	}
	_, err := Do(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	}, onTimeout)
	return err
}
