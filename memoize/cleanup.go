/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"context"
	"time"
)

var alreadyRunning = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// EnableAutoCleanup starts a background loop that removes expired entries
// every interval. The start is idempotent: if the loop is already running,
// an already-closed channel is returned and nothing is started. Otherwise
// the returned channel is closed when the loop exits.
//
// The loop stops when ctx is canceled or DisableAutoCleanup (or Close) is
// called; after it stops, EnableAutoCleanup can start it again. A nil ctx
// and a non-positive interval default to context.Background and
// DefaultCleanupInterval.
func (c *Cache[K, V]) EnableAutoCleanup(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if !c.cleanupGate.TryOpen() {
		return alreadyRunning
	}
	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cleanupMu.Lock()
	c.cleanupCancel = cancel
	c.cleanupMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer c.cleanupGate.TryClose()
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				c.RemoveExpired()
			}
		}
	}()
	return done
}

// DisableAutoCleanup signals the auto-cleanup loop to stop.
// It is a no-op when the loop is not running.
func (c *Cache[K, V]) DisableAutoCleanup() {
	if !c.cleanupGate.IsOpen() {
		return
	}
	c.cleanupMu.Lock()
	cancel := c.cleanupCancel
	c.cleanupMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close stops the auto-cleanup loop if it is running.
// It is safe to call multiple times and never panics; the cache itself
// remains usable after Close.
func (c *Cache[K, V]) Close() {
	c.DisableAutoCleanup()
}
