// Package lock provides per-key single-flight locks. Bolus validation for a
// user holds one so that the audit record of request N is durable before
// request N+1 reads its history.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock is still held after the wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Release frees a held lock. Calling it more than once is a no-op.
type Release func()

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}
