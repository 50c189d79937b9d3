/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package inflight

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestLimiter_Do(t *testing.T) {
	l := NewLimiter[string, int]()

	value, admitted, err := l.Do("key", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	require.True(t, admitted)
	require.Equal(t, 42, value)
	require.Equal(t, 0, l.InFlight("key"))
}

func TestLimiter_DoWithLimit_AdmissionBound(t *testing.T) {
	for _, extraLimit := range []int{0, 1, 2} {
		t.Run(fmt.Sprintf("extraLimit=%d", extraLimit), func(t *testing.T) {
			l := NewLimiter[string, int]()

			started := make(chan struct{}, extraLimit+1)
			release := make(chan struct{})
			var execCount atomic.Int32
			blockingFn := func() (int, error) {
				execCount.Inc()
				started <- struct{}{}
				<-release
				return 42, nil
			}

			type outcome struct {
				value    int
				admitted bool
				err      error
			}
			outcomes := make(chan outcome, extraLimit+1)
			for i := 0; i <= extraLimit; i++ {
				go func() {
					value, admitted, err := l.DoWithLimit("key", extraLimit, blockingFn)
					outcomes <- outcome{value, admitted, err}
				}()
			}
			for i := 0; i <= extraLimit; i++ {
				<-started // Wait until all admitted calls are executing.
			}
			require.Equal(t, extraLimit+1, l.InFlight("key"))

			// The (extraLimit+2)-th concurrent call is bounced without executing the work.
			value, admitted, err := l.DoWithLimit("key", extraLimit, blockingFn)
			require.NoError(t, err)
			require.False(t, admitted)
			require.Equal(t, 0, value)
			require.Equal(t, int32(extraLimit+1), execCount.Load())

			close(release)
			for i := 0; i <= extraLimit; i++ {
				got := <-outcomes
				require.NoError(t, got.err)
				require.True(t, got.admitted)
				require.Equal(t, 42, got.value)
			}

			// All admitted calls completed, the slot is fully reclaimed.
			require.Equal(t, 0, l.InFlight("key"))
			value, admitted, err = l.DoWithLimit("key", extraLimit, func() (int, error) { return 7, nil })
			require.NoError(t, err)
			require.True(t, admitted)
			require.Equal(t, 7, value)
		})
	}
}

func TestLimiter_Exec_BounceScenario(t *testing.T) {
	l := NewLimiter[string, struct{}]()

	started := make(chan struct{})
	release := make(chan struct{})
	var execCount atomic.Int32
	slowWork := func() error {
		execCount.Inc()
		close(started)
		<-release
		return nil
	}

	execErr := make(chan error)
	go func() {
		_, err := l.Exec("x", slowWork)
		execErr <- err
	}()
	<-started // Wait until slowWork blocks.

	// Two more concurrent calls for the same key are bounced.
	for i := 0; i < 2; i++ {
		admitted, err := l.Exec("x", slowWork)
		require.NoError(t, err)
		require.False(t, admitted)
	}
	require.Equal(t, int32(1), execCount.Load())

	close(release)
	require.NoError(t, <-execErr)

	// Repeating after completion admits a new call.
	admitted, err := l.Exec("x", func() error { return nil })
	require.NoError(t, err)
	require.True(t, admitted)
	require.Equal(t, int32(1), execCount.Load())
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter[string, string]()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = l.Do("a", func() (string, error) {
			close(started)
			<-release
			return "", nil
		})
	}()
	<-started

	// A call for another key is not affected by the in-flight call for "a".
	value, admitted, err := l.Do("b", func() (string, error) { return "b-value", nil })
	require.NoError(t, err)
	require.True(t, admitted)
	require.Equal(t, "b-value", value)

	close(release)
	<-done
}

func TestLimiter_WorkErrorPropagation(t *testing.T) {
	l := NewLimiter[string, int]()
	wantErr := errors.New("work failed")

	_, admitted, err := l.Do("key", func() (int, error) { return 0, wantErr })
	require.True(t, admitted)
	require.ErrorIs(t, err, wantErr)

	admitted, err = l.Exec("key", func() error { return wantErr })
	require.True(t, admitted)
	require.ErrorIs(t, err, wantErr)

	// The slot is released even on failure.
	require.Equal(t, 0, l.InFlight("key"))
}

func TestLimiter_WorkPanicReleasesSlot(t *testing.T) {
	l := NewLimiter[string, int]()

	require.Panics(t, func() {
		_, _, _ = l.Do("key", func() (int, error) { panic("boom") })
	})
	require.Equal(t, 0, l.InFlight("key"))

	_, admitted, err := l.Do("key", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	require.True(t, admitted)
}

func TestLimiter_NilFn(t *testing.T) {
	l := NewLimiter[string, int]()
	require.Panics(t, func() { _, _, _ = l.Do("key", nil) })
	require.Panics(t, func() { _, _ = l.Exec("key", nil) })
	require.Panics(t, func() { l.DoAsync("key", nil) })
	require.Panics(t, func() { l.ExecAsync("key", nil) })
	require.Equal(t, 0, l.InFlight("key"))
}

func TestLimiter_DoAsync(t *testing.T) {
	l := NewLimiter[string, int]()

	t.Run("admitted", func(t *testing.T) {
		res := l.DoAsync("key", func() (int, error) { return 42, nil })
		value, admitted, err := res.Wait()
		require.NoError(t, err)
		require.True(t, admitted)
		require.Equal(t, 42, value)
	})

	t.Run("bounced", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		res1 := l.DoAsync("key", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		<-started

		res2 := l.DoAsync("key", func() (int, error) { return 2, nil })
		select {
		case <-res2.Done():
		case <-time.After(time.Second):
			t.Fatal("bounced handle should complete immediately")
		}
		value, admitted, err := res2.Wait()
		require.NoError(t, err)
		require.False(t, admitted)
		require.Equal(t, 0, value)

		close(release)
		value, admitted, err = res1.Wait()
		require.NoError(t, err)
		require.True(t, admitted)
		require.Equal(t, 1, value)
	})

	t.Run("panic is carried on the handle", func(t *testing.T) {
		res := l.DoAsync("key", func() (int, error) { panic(errors.New("boom")) })
		_, admitted, err := res.Wait()
		require.True(t, admitted)
		var panicErr *PanicError
		require.ErrorAs(t, err, &panicErr)
		require.ErrorContains(t, err, "boom")
		require.Equal(t, 0, l.InFlight("key"))
	})
}

func TestLimiter_ExecAsync(t *testing.T) {
	l := NewLimiter[string, struct{}]()
	wantErr := errors.New("work failed")

	res := l.ExecAsync("key", func() error { return wantErr })
	_, admitted, err := res.Wait()
	require.True(t, admitted)
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 0, l.InFlight("key"))
}

func TestLimiter_ConcurrentMixedKeys(t *testing.T) {
	const goroutinesNum = 100

	l := NewLimiter[int, int]()
	var admittedCount, bouncedCount atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < goroutinesNum; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, admitted, _ := l.Do(i%10, func() (int, error) {
				time.Sleep(time.Millisecond)
				return i, nil
			})
			if admitted {
				admittedCount.Inc()
			} else {
				bouncedCount.Inc()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(goroutinesNum), admittedCount.Load()+bouncedCount.Load())
	require.GreaterOrEqual(t, admittedCount.Load(), int32(10)) // At least one admission per key.
	for i := 0; i < 10; i++ {
		require.Equal(t, 0, l.InFlight(i))
	}
}

func TestFuncKey(t *testing.T) {
	fn := func() (int, error) { return 0, nil }
	require.Equal(t, FuncKey(fn), FuncKey(fn))

	other := func() (int, error) { return 1, nil }
	require.NotEqual(t, FuncKey(fn), FuncKey(other))

	require.Panics(t, func() { FuncKey(nil) })
}
