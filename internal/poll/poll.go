// Package poll implements the bounded wait loop shared by the device
// remount checks.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout is returned by Until when the condition did not hold within
// the maximum wait.
var ErrTimeout = errors.New("condition not met before timeout")

var errPending = errors.New("condition pending")

// Condition reports whether the awaited state has been reached. A non-nil
// error stops the wait immediately and is returned by Until.
type Condition func() (bool, error)

// Until evaluates cond every interval until it returns true, it returns an
// error, ctx is done, or maxWait has elapsed. The condition is always
// evaluated at least once, and ErrTimeout is only returned once more than
// maxWait has passed since the first evaluation.
func Until(ctx context.Context, maxWait, interval time.Duration, cond Condition) error {
	start := time.Now()
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)

	return backoff.Retry(func() error {
		ok, err := cond()
		switch {
		case err != nil:
			return backoff.Permanent(err)
		case ok:
			return nil
		case time.Since(start) > maxWait:
			return backoff.Permanent(ErrTimeout)
		}
		return errPending
	}, b)
}
