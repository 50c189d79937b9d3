/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package inflight

import (
	"fmt"
)

func Example() {
	limiter := NewLimiter[string, int]()

	started := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan struct{})

	// The first call for the key is admitted and blocks on the release channel.
	go func() {
		defer close(firstDone)
		_, _, _ = limiter.Do("report", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	// While the first call is in flight, a second call for the same key is bounced.
	_, admitted, _ := limiter.Do("report", func() (int, error) { return 2, nil })
	fmt.Println("second call admitted:", admitted)

	close(release)
	<-firstDone

	// After the first call completes, the key admits again.
	_, admitted, _ = limiter.Do("report", func() (int, error) { return 3, nil })
	fmt.Println("third call admitted:", admitted)

	// Output:
	// second call admitted: false
	// third call admitted: true
}
