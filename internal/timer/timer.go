// Package timer implements the deadline bookkeeping for connection reads.
// An absolute expiry is computed once per request and checked before every
// read, so a stalling client is cut off no matter how many partial reads it
// produces, while a fresh request on the same connection starts with a full
// budget again.
package timer

import (
	"errors"
	"sync/atomic"
	"time"
)

// Time contains the unix-time in milliseconds updated every [Resolution].
// Deadline math runs before every socket read, so it uses this coarse clock
// instead of time.Now.
var Time = new(atomic.Int64)

// Resolution is the frequency at which Time is updated. 500ms is precise
// enough for I/O deadlines.
const Resolution = 500 * time.Millisecond

func init() {
	// there is no guarantee that the goroutine will be started immediately.
	// If it won't, some rapid usage of the timer will result in zero-time
	Time.Store(time.Now().UnixMilli())

	go func() {
		for {
			Time.Store(time.Now().UnixMilli())
			time.Sleep(Resolution)
		}
	}()
}

func Now() time.Time {
	millis := Time.Load()
	return time.Unix(millis/1000, (millis%1000)*1e6)
}

// Expiry is an absolute point in time, in unix milliseconds. The zero value
// is Never: reads wait indefinitely.
type Expiry int64

const Never Expiry = 0

var ErrExpired = errors.New("deadline expired")

// Compute returns the expiry lying timeout ahead of now, or Never for
// non-positive timeouts.
func Compute(timeout time.Duration) Expiry {
	if timeout <= 0 {
		return Never
	}

	return Expiry(Time.Load() + timeout.Milliseconds())
}

// Remaining returns how long a read may still wait before the expiry passes.
// Expired deadlines fail with ErrExpired. For Never, the returned zero
// duration means "no limit".
func Remaining(expiry Expiry) (time.Duration, error) {
	if expiry == Never {
		return 0, nil
	}

	left := int64(expiry) - Time.Load()
	if left <= 0 {
		return 0, ErrExpired
	}

	return time.Duration(left) * time.Millisecond, nil
}
