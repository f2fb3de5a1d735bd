// Package poll provides bounded retry-with-timeout waiting on a predicate.
package poll

import (
	"context"
	"time"
)

// Predicate reports whether the awaited condition holds.
type Predicate func(ctx context.Context) bool

// Until evaluates cond immediately and then every interval until it returns
// true, the timeout elapses, or ctx is done. It reports whether cond held.
// A panicking predicate counts as false.
func Until(ctx context.Context, timeout, interval time.Duration, cond Predicate) bool {
	if cond == nil {
		return false
	}
	if interval <= 0 {
		interval = timeout
	}

	if check(ctx, cond) {
		return true
	}
	if timeout <= 0 {
		return false
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			// One last look so a change landing on the boundary is not missed.
			return check(ctx, cond)
		case <-ticker.C:
			if check(ctx, cond) {
				return true
			}
		}
	}
}

func check(ctx context.Context, cond Predicate) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if ctx.Err() != nil {
		return false
	}
	return cond(ctx)
}
