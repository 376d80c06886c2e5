// Package retry runs operations with bounded attempts and capped exponential backoff with jitter
package retry

import (
	"context"
	stderrs "errors"
	"fmt"
	"math/rand"
	"time"

	perr "stockpipe/internal/platform/errors"
)

// Policy bounds a retried operation
type Policy struct {
	Attempts int           // total attempts including the first; <=0 -> 1
	Base     time.Duration // first backoff; <=0 -> 500ms
	Cap      time.Duration // backoff ceiling; <=0 -> 30s

	// Seams; nil uses the defaults
	Sleep    func(ctx context.Context, d time.Duration) error
	Jitter   func(d time.Duration) time.Duration
	Classify func(ctx context.Context, err error) bool

	// OnRetry observes every failed attempt that will be retried
	OnRetry func(attempt int, wait time.Duration, err error)
}

// ExhaustedError reports that every attempt failed with a transient error
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Exhausted reports whether err came from a policy that ran out of attempts
func Exhausted(err error) (*ExhaustedError, bool) {
	var ex *ExhaustedError
	if stderrs.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

// Transient is the default classifier: coded transient errors, backend-specific
// transient errors, and per-attempt deadlines while the parent context is still live
func Transient(ctx context.Context, err error) bool {
	if perr.Retryable(err) {
		return true
	}
	return stderrs.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

// Backoff returns the capped exponential delay before attempt i+1 (i is zero based)
func (p Policy) Backoff(i int) time.Duration {
	base, ceil := p.Base, p.Cap
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if ceil <= 0 {
		ceil = 30 * time.Second
	}
	if i > 30 {
		return ceil
	}
	return min(base<<i, ceil)
}

// Do runs fn until it succeeds, fails permanently, or the attempts are spent.
// Non-transient errors are returned as is; spent attempts yield *ExhaustedError;
// cancellation while backing off yields a Canceled error
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.Attempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepCtx
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = Jitter
	}
	classify := p.Classify
	if classify == nil {
		classify = Transient
	}

	var last error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeCanceled, "canceled before attempt %d", i+1)
		}
		err := fn(ctx, i+1)
		if err == nil {
			return nil
		}
		last = err

		if !classify(ctx, err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		wait := jitter(p.Backoff(i))
		if p.OnRetry != nil {
			p.OnRetry(i+1, wait, err)
		}
		if se := sleep(ctx, wait); se != nil {
			return perr.Wrapf(se, perr.ErrorCodeCanceled, "canceled after %d attempts (last: %v)", i+1, last)
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: last}
}

// Jitter spreads d over [d/2, d)
func Jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

// SleepCtx waits for d or until ctx is done
func SleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
